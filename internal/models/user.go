package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// WorkStatus is derived from timer state. It is deliberately separate from
// the websocket presence flag (User.Online).
type WorkStatus string

const (
	WorkStatusActive  WorkStatus = "active"
	WorkStatusIdle    WorkStatus = "idle"
	WorkStatusOffline WorkStatus = "offline"
)

type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type UserSettings struct {
	ScreenshotInterval int  `json:"screenshot_interval"` // minutes
	ActivityTracking   bool `json:"activity_tracking"`
	IdleTimeout        int  `json:"idle_timeout"` // minutes
	Notifications      bool `json:"notifications"`
}

func DefaultUserSettings() UserSettings {
	return UserSettings{
		ScreenshotInterval: 10,
		ActivityTracking:   true,
		IdleTimeout:        5,
		Notifications:      true,
	}
}

type User struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string       `gorm:"not null" json:"name"`
	Email        string       `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string       `gorm:"not null" json:"-"`
	Role         Role         `gorm:"not null;default:user;index" json:"role"`
	Status       WorkStatus   `gorm:"not null;default:offline" json:"status"`
	Online       bool         `gorm:"not null;default:false" json:"online"`
	LastSeenAt   *time.Time   `json:"last_seen_at,omitempty"`
	Avatar       string       `json:"avatar,omitempty"`
	Company      string       `json:"company,omitempty"`
	Timezone     string       `gorm:"not null;default:UTC" json:"timezone"`
	WorkingHours WorkingHours `gorm:"serializer:json" json:"working_hours"`
	Settings     UserSettings `gorm:"serializer:json" json:"settings"`
	LastActive   *time.Time   `json:"last_active,omitempty"`
	CreatedAt    time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = WorkStatusOffline
	}
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	if u.WorkingHours == (WorkingHours{}) {
		u.WorkingHours = WorkingHours{Start: "09:00", End: "17:00"}
	}
	if u.Settings == (UserSettings{}) {
		u.Settings = DefaultUserSettings()
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsAdminOrManager() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

// UserUpdate is a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Name         *string       `json:"name,omitempty"`
	Role         *Role         `json:"role,omitempty" validate:"omitempty,oneof=admin manager user"`
	Timezone     *string       `json:"timezone,omitempty"`
	Avatar       *string       `json:"avatar,omitempty"`
	Company      *string       `json:"company,omitempty"`
	WorkingHours *WorkingHours `json:"working_hours,omitempty"`
	Settings     *UserSettings `json:"settings,omitempty"`
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role   Role
	Offset int
	Limit  int
}
