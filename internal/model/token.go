package model

import "time"

// Token kinds. Admin tokens come from a password login and never expire on
// their own; starlight tokens are minted by redeeming an access key and die
// with the key.
const (
	TokenKindAdmin     = "admin"
	TokenKindStarlight = "starlight"
)

// Token is an opaque bearer credential stored server-side. The value itself
// is the handle; there is nothing to decode client-side, which is what lets
// the server revoke or rebind a session at any time.
type Token struct {
	ID            int64      `json:"-" db:"id"`
	Value         string     `json:"-" db:"value"` // never expose in list output or logs
	Kind          string     `json:"kind" db:"kind"`
	BoundIP       string     `json:"-" db:"bound_ip"`
	SourceKeyCode string     `json:"-" db:"source_key_code"` // set only for starlight tokens
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty" db:"expires_at"` // nil = valid until logout
}

// Live reports whether the token is valid at the given instant.
func (t *Token) Live(now time.Time) bool {
	return t.ExpiresAt == nil || t.ExpiresAt.After(now)
}
