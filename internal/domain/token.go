package domain

import "time"

// TokenResponse models the HighLevel token endpoint response. Tokens are
// opaque strings; refresh_token may be absent on some grants.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
	UserID       string
	LocationID   string
	CompanyID    string
	UserType     string
	Raw          map[string]any
}

// LocationToken is the cached result of a Company→Location token conversion.
// It is a derived credential keyed by installation id, never the source of truth.
type LocationToken struct {
	InstallationID int64     `json:"installation_id"`
	LocationID     string    `json:"location_id"`
	AccessToken    string    `json:"access_token"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Fresh reports whether the token is still valid for at least the safety
// margin from now.
func (t LocationToken) Fresh() bool {
	return time.Until(t.ExpiresAt) >= TokenRefreshMargin
}

// InstallState is the short-lived state payload persisted while an install
// flow started by /api/oauth/url is in flight.
type InstallState struct {
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
