package models

import (
	"time"

	"gorm.io/gorm"
)

type IntegrationKind string

const (
	IntegrationSlack  IntegrationKind = "slack"
	IntegrationTrello IntegrationKind = "trello"
	IntegrationGitHub IntegrationKind = "github"
)

func (k IntegrationKind) Valid() bool {
	switch k {
	case IntegrationSlack, IntegrationTrello, IntegrationGitHub:
		return true
	}
	return false
}

// Integration is a per-user connector record. Disconnecting clears Active
// instead of deleting the row.
type Integration struct {
	ID        string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string            `gorm:"not null;type:varchar(36);index:idx_integrations_user_type,priority:1" json:"user_id"`
	Type      IntegrationKind   `gorm:"not null;index:idx_integrations_user_type,priority:2" json:"type"`
	Config    map[string]string `gorm:"serializer:json" json:"config"`
	Active    bool              `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Integration) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = newID()
	}
	return nil
}

// secretKeys are config keys never returned to clients.
var secretKeys = map[string]bool{
	"token":       true,
	"api_key":     true,
	"webhook_url": true,
}

// Masked returns a copy safe for API responses.
func (i Integration) Masked() Integration {
	cfg := make(map[string]string, len(i.Config))
	for k, v := range i.Config {
		if secretKeys[k] {
			v = "***"
		}
		cfg[k] = v
	}
	i.Config = cfg
	return i
}
