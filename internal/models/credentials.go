package models

import "time"

// CredentialRecord is the persisted OAuth token bundle for one account.
// It is a pass-through of the authorization server response plus the
// ExpiresAt stamp computed at save time.
type CredentialRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

// Stamp sets ExpiresAt from ExpiresIn relative to the given issuance time.
func (r *CredentialRecord) Stamp(issuedAt time.Time) {
	r.ExpiresAt = issuedAt.Add(time.Duration(r.ExpiresIn) * time.Second)
}

// Expired reports whether the record's ExpiresAt has passed.
// A record without a stamp is treated as expired.
func (r *CredentialRecord) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return true
	}
	return !r.ExpiresAt.After(now)
}

// Refreshable reports whether an expired record can still be renewed.
func (r *CredentialRecord) Refreshable() bool {
	return r.RefreshToken != ""
}
