package models

import (
	"time"

	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCancelled ProjectStatus = "cancelled"
)

type Project struct {
	ID           string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string        `gorm:"not null" json:"name"`
	Description  string        `json:"description,omitempty"`
	Client       string        `gorm:"not null" json:"client"`
	Budget       float64       `gorm:"not null;default:0" json:"budget"`
	Spent        float64       `gorm:"not null;default:0" json:"spent"`
	HoursTracked float64       `gorm:"not null;default:0" json:"hours_tracked"`
	Status       ProjectStatus `gorm:"not null;default:active;index" json:"status"`
	CreatedBy    string        `gorm:"not null;index;type:varchar(36)" json:"created_by"`
	TeamMembers  []string      `gorm:"serializer:json" json:"team_members"`
	Deadline     *time.Time    `json:"deadline,omitempty"`
	CreatedAt    time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Status == "" {
		p.Status = ProjectActive
	}
	if p.TeamMembers == nil {
		p.TeamMembers = []string{}
	}
	return nil
}

// HasMember reports whether the user created the project or is on its team.
func (p *Project) HasMember(userID string) bool {
	if p.CreatedBy == userID {
		return true
	}
	for _, id := range p.TeamMembers {
		if id == userID {
			return true
		}
	}
	return false
}

type ProjectUpdate struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Client      *string        `json:"client,omitempty"`
	Budget      *float64       `json:"budget,omitempty" validate:"omitempty,gte=0"`
	Spent       *float64       `json:"spent,omitempty" validate:"omitempty,gte=0"`
	Status      *ProjectStatus `json:"status,omitempty" validate:"omitempty,oneof=active completed paused cancelled"`
	Deadline    *time.Time     `json:"deadline,omitempty"`
	TeamMembers *[]string      `json:"team_members,omitempty"`
}

type ProjectFilter struct {
	// MemberID restricts results to projects the user created or belongs to.
	MemberID string
	Status   ProjectStatus
	Offset   int
	Limit    int
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type Task struct {
	ID             string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProjectID      string       `gorm:"not null;index;type:varchar(36)" json:"project_id"`
	Title          string       `gorm:"not null" json:"title"`
	Description    string       `json:"description,omitempty"`
	AssigneeID     string       `gorm:"index;type:varchar(36)" json:"assignee_id"`
	Status         TaskStatus   `gorm:"not null;default:todo;index" json:"status"`
	Priority       TaskPriority `gorm:"not null;default:medium" json:"priority"`
	EstimatedHours *float64     `json:"estimated_hours,omitempty"`
	ActualHours    float64      `gorm:"not null;default:0" json:"actual_hours"`
	CreatedBy      string       `gorm:"not null;type:varchar(36)" json:"created_by"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	CreatedAt      time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Status == "" {
		t.Status = TaskTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return nil
}

type TaskUpdate struct {
	Title          *string       `json:"title,omitempty"`
	Description    *string       `json:"description,omitempty"`
	AssigneeID     *string       `json:"assignee_id,omitempty"`
	Status         *TaskStatus   `json:"status,omitempty" validate:"omitempty,oneof=todo in-progress completed"`
	Priority       *TaskPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	EstimatedHours *float64      `json:"estimated_hours,omitempty" validate:"omitempty,gte=0"`
	DueDate        *time.Time    `json:"due_date,omitempty"`
}
