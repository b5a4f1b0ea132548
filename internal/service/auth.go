package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrKeyExpired         = errors.New("access key expired")
	ErrKeyInUse           = errors.New("access key in use on another device")
	ErrTokenInvalid       = errors.New("token invalid or expired")
)

// AuthService owns bearer token issuance, verification, and revocation, and
// the access key lifecycle behind them.
type AuthService struct {
	store  *store.Store
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time

	// keyLocks serializes redemption per key code so two concurrent
	// redemptions of the same code cannot both pass the single-device check.
	keyLocks sync.Map // code -> *sync.Mutex
}

// NewAuthService creates an AuthService backed by the given store.
func NewAuthService(st *store.Store, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// newTokenValue returns a fresh 64-hex-char opaque token.
func newTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// newKeyCode returns a fresh 32-hex-char uppercase access key code.
func newKeyCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

func (s *AuthService) lockForCode(code string) *sync.Mutex {
	mu, _ := s.keyLocks.LoadOrStore(code, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// IssueAdminToken verifies the admin password and, on success, mints a
// non-expiring admin token bound to the caller's IP.
func (s *AuthService) IssueAdminToken(ctx context.Context, password, ip string) (*model.Token, error) {
	ok, err := s.VerifyAdminPassword(ctx, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}
	token := &model.Token{
		Value:     value,
		Kind:      model.TokenKindAdmin,
		BoundIP:   ip,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertToken(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info("admin token issued", "ip", ip)
	return token, nil
}

// RedeemAccessKey exchanges a key code for a starlight token bound to ip.
//
// Single-device rule: if the key already has a live token bound to a
// different IP, redemption fails with ErrKeyInUse. A live token bound to
// the same IP is replaced, so re-login from the same device is idempotent.
// The minted token inherits the key's expiry.
func (s *AuthService) RedeemAccessKey(ctx context.Context, code, ip string) (*model.Token, *model.AccessKey, error) {
	code = store.NormalizeKeyCode(code)
	if code == "" {
		return nil, nil, ErrInvalidCredentials
	}

	mu := s.lockForCode(code)
	mu.Lock()
	defer mu.Unlock()

	now := s.now().UTC()

	key, err := s.store.GetAccessKey(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if key.Expired(now) {
		// Lazy cleanup; the sweeper would get it eventually.
		_ = s.store.DeleteAccessKey(ctx, code)
		return nil, nil, ErrKeyExpired
	}

	live, err := s.store.LiveStarlightTokensForKey(ctx, code, now)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range live {
		if t.BoundIP != ip {
			s.logger.Warn("access key redemption blocked", "code", code, "ip", ip, "bound_ip", t.BoundIP)
			return nil, nil, ErrKeyInUse
		}
	}
	if len(live) > 0 {
		if _, err := s.store.DeleteTokensForKeyIP(ctx, code, ip); err != nil {
			return nil, nil, err
		}
	}

	value, err := newTokenValue()
	if err != nil {
		return nil, nil, err
	}
	expiresAt := key.ExpiresAt
	token := &model.Token{
		Value:         value,
		Kind:          model.TokenKindStarlight,
		BoundIP:       ip,
		SourceKeyCode: code,
		CreatedAt:     now,
		ExpiresAt:     &expiresAt,
	}
	if err := s.store.InsertToken(ctx, token); err != nil {
		return nil, nil, err
	}

	s.logger.Info("access key redeemed", "code", code, "ip", ip, "role", key.Role)
	return token, key, nil
}

// Verify returns the token row for a bearer value if it is live.
func (s *AuthService) Verify(ctx context.Context, value string) (*model.Token, error) {
	if value == "" {
		return nil, ErrTokenInvalid
	}
	token, err := s.store.GetLiveToken(ctx, value, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	return token, nil
}

// Revoke deletes one token by value. Unknown values are a no-op.
func (s *AuthService) Revoke(ctx context.Context, value string) error {
	return s.store.DeleteToken(ctx, value)
}

// RevokeAllForKey deletes every starlight token minted from the key code.
// Called when a key is deleted so its sessions die with it.
func (s *AuthService) RevokeAllForKey(ctx context.Context, code string) (int64, error) {
	return s.store.DeleteTokensForKey(ctx, store.NormalizeKeyCode(code))
}

// GenerateAccessKey mints and persists a new access key. Duration is in
// days; percentage is clamped by the store. An empty role defaults to user.
func (s *AuthService) GenerateAccessKey(ctx context.Context, username, name, role string, percentage, durationDays int) (*model.AccessKey, error) {
	if role == "" {
		role = model.KeyRoleUser
	}
	if role != model.KeyRoleUser && role != model.KeyRoleAdmin {
		return nil, fmt.Errorf("unknown key role %q", role)
	}
	if durationDays <= 0 {
		durationDays = 30
	}

	code, err := newKeyCode()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	key := &model.AccessKey{
		Code:         code,
		Username:     username,
		DisplayName:  name,
		Role:         role,
		Percentage:   percentage,
		DurationDays: durationDays,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(durationDays) * 24 * time.Hour),
	}
	if err := s.store.InsertAccessKey(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("access key generated", "code", key.Code, "role", role, "percentage", key.Percentage, "days", durationDays)
	return key, nil
}

// DeleteAccessKey removes a key and revokes every token minted from it.
func (s *AuthService) DeleteAccessKey(ctx context.Context, code string) error {
	code = store.NormalizeKeyCode(code)
	if err := s.store.DeleteAccessKey(ctx, code); err != nil {
		return err
	}
	n, err := s.store.DeleteTokensForKey(ctx, code)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("revoked tokens for deleted key", "code", code, "count", n)
	}
	return nil
}

// SweepExpired removes expired tokens and access keys in one pass.
func (s *AuthService) SweepExpired(ctx context.Context) error {
	now := s.now().UTC()
	tokens, err := s.store.SweepExpiredTokens(ctx, now)
	if err != nil {
		return err
	}
	keys, err := s.store.SweepExpiredAccessKeys(ctx, now)
	if err != nil {
		return err
	}
	if tokens > 0 || keys > 0 {
		s.logger.Info("expiry sweep", "tokens", tokens, "keys", keys)
	}
	return nil
}

// StartSweeper runs SweepExpired on the given interval until ctx is done.
func (s *AuthService) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.SweepExpired(ctx); err != nil {
					s.logger.Error("expiry sweep failed", "error", err)
				}
			}
		}
	}()
}
