package service

import (
	"context"
	"errors"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/store"
)

// PrivilegeLevel is the resolved access tier of a caller.
type PrivilegeLevel int

const (
	LevelAnonymous PrivilegeLevel = iota
	LevelUser
	LevelAdmin
)

// How an admin privilege was obtained.
const (
	ViaPassword = "password"
	ViaKey      = "key"
)

// Privilege is the resolved identity of a request. Admin privilege has two
// sources: a password login or an admin-role access key. Callers must check
// Level, never the raw token kind, so both paths behave identically.
type Privilege struct {
	Level      PrivilegeLevel
	Via        string // set when Level == LevelAdmin
	KeyCode    string // set when the privilege came from an access key
	Percentage int    // disclosure share; 100 for admins and anonymous open reads
	Key        *model.AccessKey
}

// Anonymous is the privilege of an unauthenticated caller.
func Anonymous() Privilege {
	return Privilege{Level: LevelAnonymous, Percentage: 100}
}

// IsAdmin reports whether the caller has admin privilege from either path.
func (p Privilege) IsAdmin() bool {
	return p.Level == LevelAdmin
}

// ResolvePrivilege maps a bearer token value to a Privilege. Invalid or
// expired tokens resolve to Anonymous rather than an error so that public
// reads degrade instead of failing. Starlight privileges read the key live,
// so a percentage change takes effect on the next request.
func (s *AuthService) ResolvePrivilege(ctx context.Context, tokenValue string) (Privilege, error) {
	if tokenValue == "" {
		return Anonymous(), nil
	}

	token, err := s.Verify(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return Anonymous(), nil
		}
		return Privilege{}, err
	}

	if token.Kind == model.TokenKindAdmin {
		return Privilege{Level: LevelAdmin, Via: ViaPassword, Percentage: 100}, nil
	}

	key, err := s.store.GetAccessKey(ctx, token.SourceKeyCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Key deleted out from under the token; treat as logged out.
			return Anonymous(), nil
		}
		return Privilege{}, err
	}
	if key.Expired(s.now().UTC()) {
		return Anonymous(), nil
	}

	priv := Privilege{
		Level:      LevelUser,
		KeyCode:    key.Code,
		Percentage: key.Percentage,
		Key:        key,
	}
	if key.Role == model.KeyRoleAdmin {
		priv.Level = LevelAdmin
		priv.Via = ViaKey
		priv.Percentage = 100
	}
	return priv, nil
}
