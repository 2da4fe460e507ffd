package models

import (
	"time"
)

// PlatformConnection is the single shared (brand-wide) connection of one
// platform. There is at most one row per platform.
type PlatformConnection struct {
	ID             int64              `db:"id" json:"id"`
	Platform       string             `db:"platform" json:"platform"`
	AccountName    string             `db:"account_name" json:"account_name"`
	AccessToken    string             `db:"access_token" json:"-"`
	RefreshToken   string             `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time         `db:"token_expires_at" json:"token_expires_at,omitempty"`
	Targets        []ConnectionTarget `db:"targets" json:"targets"`
	ConnectedBy    int64              `db:"connected_by" json:"connected_by"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// ConnectionTarget is a Facebook page or a LinkedIn organization.
type ConnectionTarget struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token,omitempty"`
}

func (c *PlatformConnection) FindTarget(id string) (*ConnectionTarget, bool) {
	for i := range c.Targets {
		if c.Targets[i].ID == id {
			return &c.Targets[i], true
		}
	}
	return nil, false
}
