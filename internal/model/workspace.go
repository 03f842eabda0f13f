package model

import (
	"time"

	"gorm.io/datatypes"
)

// Workspace scopes a Slack team binding and its own translation counter.
// Quota comes from the owning account's subscription.
type Workspace struct {
	ID        string `json:"id" gorm:"primaryKey"`
	AccountID string `json:"account_id" gorm:"index;not null"`

	Name string `json:"name" gorm:"not null"`
	Slug string `json:"slug" gorm:"index"`

	SlackTeamID   string `json:"slack_team_id" gorm:"index"`
	SlackTeamName string `json:"slack_team_name"`

	// Usage maps a month key to translations recorded in this workspace.
	Usage datatypes.JSONMap `json:"usage"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Account Account `json:"-" gorm:"foreignKey:AccountID"`
}

func (w *Workspace) BumpUsage(monthKey string) {
	if w.Usage == nil {
		w.Usage = datatypes.JSONMap{}
	}
	w.Usage[monthKey] = float64(w.TranslationsUsed(monthKey) + 1)
}

func (w *Workspace) TranslationsUsed(monthKey string) int {
	if w.Usage == nil {
		return 0
	}
	switch v := w.Usage[monthKey].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
