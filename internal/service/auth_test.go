package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/store"
)

// defaultPassword matches the out-of-the-box credential.
const defaultPassword = "admin123"

func newTestAuth(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()
	st, err := store.Open("")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(st, logger), st
}

// fixClock pins the service clock and returns a setter to advance it.
func fixClock(auth *AuthService, start time.Time) func(time.Time) {
	current := start
	auth.now = func() time.Time { return current }
	return func(next time.Time) { current = next }
}

func TestRedeemBlocksSecondDevice(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	key, err := auth.GenerateAccessKey(ctx, "alice", "Alice", model.KeyRoleUser, 20, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}

	token, info, err := auth.RedeemAccessKey(ctx, key.Code, "1.1.1.1")
	if err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	if token.BoundIP != "1.1.1.1" {
		t.Errorf("token bound to %q, want 1.1.1.1", token.BoundIP)
	}
	if info.Percentage != 20 {
		t.Errorf("key percentage %d, want 20", info.Percentage)
	}

	if _, _, err := auth.RedeemAccessKey(ctx, key.Code, "2.2.2.2"); !errors.Is(err, ErrKeyInUse) {
		t.Fatalf("second device: got %v, want ErrKeyInUse", err)
	}
}

func TestRedeemSameIPIsIdempotent(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()

	key, err := auth.GenerateAccessKey(ctx, "alice", "", model.KeyRoleUser, 100, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}

	first, _, err := auth.RedeemAccessKey(ctx, key.Code, "1.1.1.1")
	if err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	second, _, err := auth.RedeemAccessKey(ctx, key.Code, "1.1.1.1")
	if err != nil {
		t.Fatalf("second redemption: %v", err)
	}
	if first.Value == second.Value {
		t.Error("re-login returned the same token value")
	}

	// Exactly one live token remains, and it is the new one.
	live, err := st.LiveStarlightTokensForKey(ctx, key.Code, time.Now().UTC())
	if err != nil {
		t.Fatalf("LiveStarlightTokensForKey: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("got %d live tokens, want 1", len(live))
	}
	if live[0].Value != second.Value {
		t.Error("surviving token is not the most recent one")
	}
	if _, err := auth.Verify(ctx, first.Value); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("old token still verifies: %v", err)
	}
}

func TestRedeemExpiredKeyDeletesIt(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	advance := fixClock(auth, start)

	key, err := auth.GenerateAccessKey(ctx, "bob", "", model.KeyRoleUser, 100, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}

	advance(start.Add(25 * time.Hour))
	if _, _, err := auth.RedeemAccessKey(ctx, key.Code, "1.1.1.1"); !errors.Is(err, ErrKeyExpired) {
		t.Fatalf("got %v, want ErrKeyExpired", err)
	}
	if _, err := st.GetAccessKey(ctx, key.Code); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired key not lazily deleted: %v", err)
	}
}

func TestStarlightTokenInheritsKeyExpiry(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixClock(auth, start)

	key, err := auth.GenerateAccessKey(ctx, "alice", "", model.KeyRoleUser, 100, 3)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	token, _, err := auth.RedeemAccessKey(ctx, key.Code, "1.1.1.1")
	if err != nil {
		t.Fatalf("RedeemAccessKey: %v", err)
	}
	if token.ExpiresAt == nil || !token.ExpiresAt.Equal(key.ExpiresAt) {
		t.Errorf("token expiry %v, want key expiry %v", token.ExpiresAt, key.ExpiresAt)
	}
}

func TestAdminTokenOutlivesAnyClock(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	advance := fixClock(auth, start)

	token, err := auth.IssueAdminToken(ctx, defaultPassword, "9.9.9.9")
	if err != nil {
		t.Fatalf("IssueAdminToken: %v", err)
	}
	if token.ExpiresAt != nil {
		t.Fatal("admin token should have no expiry")
	}

	// A decade later it still verifies.
	advance(start.AddDate(10, 0, 0))
	if _, err := auth.Verify(ctx, token.Value); err != nil {
		t.Fatalf("Verify after 10 years: %v", err)
	}

	// Until explicit logout.
	if err := auth.Revoke(ctx, token.Value); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := auth.Verify(ctx, token.Value); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("revoked token still verifies: %v", err)
	}
}

func TestIssueAdminTokenRejectsBadPassword(t *testing.T) {
	auth, _ := newTestAuth(t)
	if _, err := auth.IssueAdminToken(context.Background(), "wrong", "1.1.1.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestDeleteKeyRevokesItsTokens(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	key, err := auth.GenerateAccessKey(ctx, "alice", "", model.KeyRoleUser, 100, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	token, _, err := auth.RedeemAccessKey(ctx, key.Code, "1.1.1.1")
	if err != nil {
		t.Fatalf("RedeemAccessKey: %v", err)
	}

	if err := auth.DeleteAccessKey(ctx, key.Code); err != nil {
		t.Fatalf("DeleteAccessKey: %v", err)
	}
	if _, err := auth.Verify(ctx, token.Value); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("token survived key deletion: %v", err)
	}
}

func TestResolvePrivilegeDualAdminPath(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	// Path 1: password login.
	adminToken, err := auth.IssueAdminToken(ctx, defaultPassword, "1.1.1.1")
	if err != nil {
		t.Fatalf("IssueAdminToken: %v", err)
	}
	priv, err := auth.ResolvePrivilege(ctx, adminToken.Value)
	if err != nil {
		t.Fatalf("ResolvePrivilege (password): %v", err)
	}
	if !priv.IsAdmin() || priv.Via != ViaPassword {
		t.Errorf("password admin resolved as %+v", priv)
	}

	// Path 2: admin-role access key.
	adminKey, err := auth.GenerateAccessKey(ctx, "root", "", model.KeyRoleAdmin, 50, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	keyToken, _, err := auth.RedeemAccessKey(ctx, adminKey.Code, "2.2.2.2")
	if err != nil {
		t.Fatalf("RedeemAccessKey: %v", err)
	}
	priv, err = auth.ResolvePrivilege(ctx, keyToken.Value)
	if err != nil {
		t.Fatalf("ResolvePrivilege (key): %v", err)
	}
	if !priv.IsAdmin() || priv.Via != ViaKey {
		t.Errorf("admin-role key resolved as %+v", priv)
	}
	if priv.Percentage != 100 {
		t.Errorf("admin privilege percentage %d, want 100", priv.Percentage)
	}

	// User key carries its own percentage.
	userKey, err := auth.GenerateAccessKey(ctx, "alice", "", model.KeyRoleUser, 35, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	userToken, _, err := auth.RedeemAccessKey(ctx, userKey.Code, "3.3.3.3")
	if err != nil {
		t.Fatalf("RedeemAccessKey: %v", err)
	}
	priv, err = auth.ResolvePrivilege(ctx, userToken.Value)
	if err != nil {
		t.Fatalf("ResolvePrivilege (user): %v", err)
	}
	if priv.Level != LevelUser || priv.Percentage != 35 {
		t.Errorf("user key resolved as %+v", priv)
	}

	// Garbage resolves anonymous, not error.
	priv, err = auth.ResolvePrivilege(ctx, "not-a-token")
	if err != nil {
		t.Fatalf("ResolvePrivilege (garbage): %v", err)
	}
	if priv.Level != LevelAnonymous {
		t.Errorf("garbage token resolved as %+v", priv)
	}
}

func TestSetAdminPassword(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if err := auth.SetAdminPassword(ctx, "wrong", "newpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: got %v, want ErrInvalidCredentials", err)
	}

	if err := auth.SetAdminPassword(ctx, defaultPassword, "newpassword"); err != nil {
		t.Fatalf("SetAdminPassword: %v", err)
	}

	ok, err := auth.VerifyAdminPassword(ctx, defaultPassword)
	if err != nil {
		t.Fatalf("VerifyAdminPassword: %v", err)
	}
	if ok {
		t.Error("old password still accepted after rotation")
	}
	ok, err = auth.VerifyAdminPassword(ctx, "newpassword")
	if err != nil {
		t.Fatalf("VerifyAdminPassword: %v", err)
	}
	if !ok {
		t.Error("new password rejected")
	}
}

func TestSweepExpired(t *testing.T) {
	auth, st := newTestAuth(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	advance := fixClock(auth, start)

	key, err := auth.GenerateAccessKey(ctx, "alice", "", model.KeyRoleUser, 100, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	token, _, err := auth.RedeemAccessKey(ctx, key.Code, "1.1.1.1")
	if err != nil {
		t.Fatalf("RedeemAccessKey: %v", err)
	}

	advance(start.Add(48 * time.Hour))
	if err := auth.SweepExpired(ctx); err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}

	if _, err := st.GetAccessKey(ctx, key.Code); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired key survived sweep: %v", err)
	}
	if _, err := auth.Verify(ctx, token.Value); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expired token survived sweep: %v", err)
	}
}
