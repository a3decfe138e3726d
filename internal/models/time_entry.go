package models

import (
	"time"

	"gorm.io/gorm"
)

// AppUsage is one application sample attached to a time entry.
type AppUsage struct {
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
}

// URLVisit is one URL sample attached to a time entry.
type URLVisit struct {
	URL     string `json:"url"`
	Seconds int64  `json:"seconds"`
}

// TimeEntry is open while EndTime is nil. Duration is set exactly once,
// when the entry is closed.
type TimeEntry struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string     `gorm:"not null;type:varchar(36);index:idx_time_entries_user_start,priority:1" json:"user_id"`
	ProjectID     string     `gorm:"not null;type:varchar(36);index" json:"project_id"`
	TaskID        *string    `gorm:"type:varchar(36)" json:"task_id"`
	StartTime     time.Time  `gorm:"not null;index:idx_time_entries_user_start,priority:2" json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Duration      *int64     `json:"duration"` // seconds
	Description   string     `json:"description,omitempty"`
	IsManual      bool       `gorm:"not null;default:false" json:"is_manual"`
	ActivityLevel *float64   `json:"activity_level"`
	AppsUsed      []AppUsage `gorm:"serializer:json" json:"apps_used"`
	URLsVisited   []URLVisit `gorm:"serializer:json" json:"urls_visited"`
	Screenshots   []string   `gorm:"serializer:json" json:"screenshots"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *TimeEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.AppsUsed == nil {
		e.AppsUsed = []AppUsage{}
	}
	if e.URLsVisited == nil {
		e.URLsVisited = []URLVisit{}
	}
	if e.Screenshots == nil {
		e.Screenshots = []string{}
	}
	return nil
}

func (e *TimeEntry) IsOpen() bool {
	return e.EndTime == nil
}

// Hours returns the closed duration in hours, or 0 while the entry is open.
func (e *TimeEntry) Hours() float64 {
	if e.Duration == nil {
		return 0
	}
	return float64(*e.Duration) / 3600
}

// TimeEntryPatch is the set of fields a user may change on an existing entry.
type TimeEntryPatch struct {
	EndTime       *time.Time  `json:"end_time,omitempty"`
	Description   *string     `json:"description,omitempty"`
	ActivityLevel *float64    `json:"activity_level,omitempty" validate:"omitempty,gte=0,lte=100"`
	AppsUsed      *[]AppUsage `json:"apps_used,omitempty"`
	URLsVisited   *[]URLVisit `json:"urls_visited,omitempty"`
}

func (p TimeEntryPatch) Empty() bool {
	return p.EndTime == nil && p.Description == nil && p.ActivityLevel == nil &&
		p.AppsUsed == nil && p.URLsVisited == nil
}

type EntryFilter struct {
	UserID    string
	ProjectID string
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int
}

type ActivityData struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID          string    `gorm:"not null;type:varchar(36);index" json:"user_id"`
	TimeEntryID     string    `gorm:"not null;type:varchar(36);index" json:"time_entry_id"`
	Timestamp       time.Time `gorm:"not null" json:"timestamp"`
	MouseClicks     int       `gorm:"not null;default:0" json:"mouse_clicks"`
	KeyboardStrokes int       `gorm:"not null;default:0" json:"keyboard_strokes"`
	ActiveApp       string    `json:"active_app,omitempty"`
	ActiveURL       string    `json:"active_url,omitempty"`
	ScreenshotURL   string    `json:"screenshot_url,omitempty"`
	ActivityScore   float64   `gorm:"not null;default:0" json:"activity_score"`
}

func (a *ActivityData) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}

type Screenshot struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string    `gorm:"not null;type:varchar(36);index" json:"user_id"`
	TimeEntryID   string    `gorm:"not null;type:varchar(36);index" json:"time_entry_id"`
	URL           string    `gorm:"not null" json:"url"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
	ActivityLevel *float64  `json:"activity_level,omitempty"`
}

func (s *Screenshot) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}
