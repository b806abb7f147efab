package domain

import "time"

// Installation is one completed OAuth grant for one HighLevel user/location pair.
// Access and refresh tokens are decrypted on load and never serialized; use
// ToSummary for anything that leaves the process.
type Installation struct {
	ID           int64      `json:"id,string"`
	UserID       string     `json:"user_id"`
	UserEmail    string     `json:"user_email,omitempty"`
	UserName     string     `json:"user_name,omitempty"`
	LocationID   string     `json:"location_id"`
	LocationName string     `json:"location_name,omitempty"`
	CompanyID    string     `json:"company_id,omitempty"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenType    string     `json:"token_type"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Scopes       string     `json:"scopes"`
	IsActive     bool       `json:"is_active"`
	InstalledAt  time.Time  `json:"installed_at"`
	RefreshedAt  *time.Time `json:"refreshed_at,omitempty"`
}

// InstallationSummary is the secret-free view used for listing.
type InstallationSummary struct {
	ID           int64      `json:"id,string"`
	UserID       string     `json:"user_id"`
	UserEmail    string     `json:"user_email,omitempty"`
	LocationID   string     `json:"location_id"`
	LocationName string     `json:"location_name,omitempty"`
	CompanyID    string     `json:"company_id,omitempty"`
	TokenType    string     `json:"token_type"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Scopes       string     `json:"scopes"`
	IsActive     bool       `json:"is_active"`
	InstalledAt  time.Time  `json:"installed_at"`
	RefreshedAt  *time.Time `json:"refreshed_at,omitempty"`
}

// TokenRefreshMargin is the window before expiry inside which tokens are
// treated as stale and refreshed or reconverted.
const TokenRefreshMargin = 5 * time.Minute

// ToSummary strips the token material from an installation.
func (i Installation) ToSummary() InstallationSummary {
	return InstallationSummary{
		ID:           i.ID,
		UserID:       i.UserID,
		UserEmail:    i.UserEmail,
		LocationID:   i.LocationID,
		LocationName: i.LocationName,
		CompanyID:    i.CompanyID,
		TokenType:    i.TokenType,
		ExpiresAt:    i.ExpiresAt,
		Scopes:       i.Scopes,
		IsActive:     i.IsActive,
		InstalledAt:  i.InstalledAt,
		RefreshedAt:  i.RefreshedAt,
	}
}

// NeedsRefresh reports whether the Company token is within the safety margin
// of expiry and should be refreshed before use.
func (i Installation) NeedsRefresh() bool {
	if i.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(i.ExpiresAt) < TokenRefreshMargin
}

// IsExpired reports whether the Company token has already expired.
func (i Installation) IsExpired() bool {
	if i.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(i.ExpiresAt)
}
