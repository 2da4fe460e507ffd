package transfer

import "time"

type ConnectionRequest struct {
	AccountName    string             `json:"account_name"`
	AccessToken    string             `json:"access_token"`
	RefreshToken   string             `json:"refresh_token,omitempty"`
	TokenExpiresAt *time.Time         `json:"token_expires_at,omitempty"`
	Targets        []ConnectionTarget `json:"targets"`
}

type ConnectionTarget struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token,omitempty"`
}
