package models

import "time"

// CredentialRecord holds the OAuth tokens granted by a single HubSpot
// portal. One record exists per portal id; records are replaced wholesale
// on refresh, never mutated field by field.
type CredentialRecord struct {
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" db:"refresh_token"`
	// ExpiresAt is fixed at issuance or refresh time as obtained_at +
	// expires_in. It is never recomputed against a later "now".
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	Scope      string    `json:"scope,omitempty" db:"scope"`
	ObtainedAt time.Time `json:"obtained_at" db:"obtained_at"`
	// RefreshFailures counts consecutive failed refresh attempts and
	// drives the eviction policy for unrefreshable portals.
	RefreshFailures int `json:"refresh_failures" db:"refresh_failures"`
}

// Expired reports whether the access token is past its validity window.
func (r *CredentialRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Refreshable reports whether a renewal can even be attempted.
func (r *CredentialRecord) Refreshable() bool {
	return r.RefreshToken != ""
}
