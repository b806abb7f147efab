package domain

import "time"

// Directory is one configured directory listing surface for a location. The
// Config blob holds presentation settings the admin UI edits (logo URL,
// action button color, enabled features) and is passed through opaquely.
type Directory struct {
	ID         int64          `json:"id,string"`
	LocationID string         `json:"location_id"`
	Name       string         `json:"name"`
	Slug       string         `json:"slug"`
	Config     map[string]any `json:"config,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
