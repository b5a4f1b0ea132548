package model

import "time"

// Access key roles. An admin-role key grants the same category privileges as
// a password login when redeemed.
const (
	KeyRoleUser  = "user"
	KeyRoleAdmin = "admin"
)

// AccessKey is a shareable, time-limited secret code. Redeeming it mints a
// starlight Token bound to the redeeming IP (single-device rule).
type AccessKey struct {
	ID           int64     `json:"-" db:"id"`
	Code         string    `json:"code" db:"code"`
	Username     string    `json:"username" db:"username"`
	DisplayName  string    `json:"name" db:"display_name"`
	Role         string    `json:"userType" db:"role"`
	Percentage   int       `json:"percentage" db:"percentage"` // 0..100 share of percentage-controlled categories
	DurationDays int       `json:"duration" db:"duration_days"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt    time.Time `json:"expiresAt" db:"expires_at"`
}

// Expired reports whether the key is past its expiry at the given instant.
func (k *AccessKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// KeyInfo is the read-only snapshot of an access key returned to the client
// that redeemed it.
type KeyInfo struct {
	Code         string    `json:"code"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Role         string    `json:"userType"`
	Percentage   int       `json:"percentage"`
	DurationDays int       `json:"duration"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Info returns the client-facing snapshot of the key.
func (k *AccessKey) Info() KeyInfo {
	return KeyInfo{
		Code:         k.Code,
		Username:     k.Username,
		Name:         k.DisplayName,
		Role:         k.Role,
		Percentage:   k.Percentage,
		DurationDays: k.DurationDays,
		CreatedAt:    k.CreatedAt,
		ExpiresAt:    k.ExpiresAt,
	}
}
