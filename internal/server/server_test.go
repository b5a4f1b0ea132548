package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/service"
	"github.com/curiohq/curio/internal/store"
)

const defaultPassword = "admin123"

func newTestServer(t *testing.T) (*Server, *store.Store, *service.AuthService) {
	t.Helper()
	st, err := store.Open("")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authSvc := service.NewAuthService(st, logger)
	policy := service.NewPolicy([]string{"Learning"}, []string{"Starlight"})

	cfg := DefaultConfig()
	cfg.UploadsDir = t.TempDir()
	return New(cfg, st, authSvc, policy, logger), st, authSvc
}

// doJSON performs a request against the router. remoteAddr may be "" for
// the httptest default.
func doJSON(t *testing.T, srv *Server, method, path, token, remoteAddr string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func loginAdmin(t *testing.T, srv *Server) string {
	t.Helper()
	rr := doJSON(t, srv, "POST", "/api/auth/login", "", "", map[string]string{"password": defaultPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	decode(t, rr, &resp)
	if !resp.Success || resp.Token == "" {
		t.Fatalf("login response %+v", resp)
	}
	return resp.Token
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := doJSON(t, srv, "GET", "/api/health", "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rr.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rr := doJSON(t, srv, "POST", "/api/auth/login", "", "", map[string]string{"password": "nope"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
	var resp model.Response
	decode(t, rr, &resp)
	if resp.Success {
		t.Error("expected success=false")
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	srv, _, authSvc := newTestServer(t)

	// Anonymous gets 401.
	rr := doJSON(t, srv, "GET", "/api/keys", "", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status %d, want 401", rr.Code)
	}

	// A user-role starlight session gets 403.
	key, err := authSvc.GenerateAccessKey(context.Background(), "alice", "", model.KeyRoleUser, 100, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	token, _, err := authSvc.RedeemAccessKey(context.Background(), key.Code, "10.0.0.1")
	if err != nil {
		t.Fatalf("RedeemAccessKey: %v", err)
	}
	rr = doJSON(t, srv, "GET", "/api/keys", token.Value, "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("user session: status %d, want 403", rr.Code)
	}

	// A password admin gets through.
	adminToken := loginAdmin(t, srv)
	rr = doJSON(t, srv, "GET", "/api/keys", adminToken, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin: status %d body %s", rr.Code, rr.Body.String())
	}
}

func TestAdminOnlyCategoryGate(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()

	res := &model.Resource{ID: "l1", Title: "Course", Category: "Learning"}
	if err := st.UpsertResource(ctx, res); err != nil {
		t.Fatalf("UpsertResource: %v", err)
	}

	// Anonymous read is forbidden and the payload is the empty shape the
	// frontend renders without a special case.
	rr := doJSON(t, srv, "GET", "/api/resources/Learning", "", "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("anonymous: status %d, want 403", rr.Code)
	}
	var payload model.CategoryPayload
	decode(t, rr, &payload)
	if payload.Success {
		t.Error("expected success=false")
	}
	if payload.Filters == nil || payload.Resources == nil || len(payload.Resources) != 0 {
		t.Errorf("payload not empty shape: %+v", payload)
	}

	// Admin read sees everything.
	adminToken := loginAdmin(t, srv)
	rr = doJSON(t, srv, "GET", "/api/resources/Learning", adminToken, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin: status %d", rr.Code)
	}
	decode(t, rr, &payload)
	if !payload.Success || len(payload.Resources) != 1 {
		t.Errorf("admin payload %+v", payload)
	}
}

func TestPercentageTruncation(t *testing.T) {
	srv, st, authSvc := newTestServer(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	items := make([]model.Resource, 10)
	for i := range items {
		items[i] = model.Resource{
			ID:        string(rune('a' + i)),
			Title:     string(rune('a' + i)),
			Category:  "Starlight",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	if err := st.UpsertResources(ctx, items); err != nil {
		t.Fatalf("UpsertResources: %v", err)
	}

	// Anonymous sees the fixed 20 percent: ceil(10*20/100) = 2.
	rr := doJSON(t, srv, "GET", "/api/resources/Starlight", "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous: status %d", rr.Code)
	}
	var payload model.CategoryPayload
	decode(t, rr, &payload)
	if len(payload.Resources) != 2 {
		t.Fatalf("anonymous sees %d resources, want 2", len(payload.Resources))
	}

	// A 50 percent key sees 5, and the anonymous view is a prefix of it.
	key, err := authSvc.GenerateAccessKey(ctx, "alice", "", model.KeyRoleUser, 50, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}
	token, _, err := authSvc.RedeemAccessKey(ctx, key.Code, "10.0.0.1")
	if err != nil {
		t.Fatalf("RedeemAccessKey: %v", err)
	}
	rr = doJSON(t, srv, "GET", "/api/resources/Starlight", token.Value, "", nil)
	var keyPayload model.CategoryPayload
	decode(t, rr, &keyPayload)
	if len(keyPayload.Resources) != 5 {
		t.Fatalf("key holder sees %d resources, want 5", len(keyPayload.Resources))
	}
	for i, res := range payload.Resources {
		if keyPayload.Resources[i].ID != res.ID {
			t.Errorf("smaller view is not a prefix at %d: %q vs %q", i, res.ID, keyPayload.Resources[i].ID)
		}
	}

	// Admin sees all 10.
	adminToken := loginAdmin(t, srv)
	rr = doJSON(t, srv, "GET", "/api/resources/Starlight", adminToken, "", nil)
	decode(t, rr, &payload)
	if len(payload.Resources) != 10 {
		t.Errorf("admin sees %d resources, want 10", len(payload.Resources))
	}
}

func TestKeyVerifySingleDevice(t *testing.T) {
	srv, _, authSvc := newTestServer(t)

	key, err := authSvc.GenerateAccessKey(context.Background(), "alice", "Alice", model.KeyRoleUser, 20, 1)
	if err != nil {
		t.Fatalf("GenerateAccessKey: %v", err)
	}

	// First device succeeds and gets the key snapshot.
	rr := doJSON(t, srv, "POST", "/api/keys/verify", "", "1.1.1.1:4000", map[string]string{"code": key.Code})
	if rr.Code != http.StatusOK {
		t.Fatalf("first device: status %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Success bool          `json:"success"`
		Token   string        `json:"token"`
		KeyInfo model.KeyInfo `json:"keyInfo"`
	}
	decode(t, rr, &resp)
	if resp.Token == "" || resp.KeyInfo.Percentage != 20 {
		t.Fatalf("verify response %+v", resp)
	}

	// Second device is the one conflict that earns a 403.
	rr = doJSON(t, srv, "POST", "/api/keys/verify", "", "2.2.2.2:4000", map[string]string{"code": key.Code})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("second device: status %d, want 403", rr.Code)
	}

	// Unknown codes are 401, not 403.
	rr = doJSON(t, srv, "POST", "/api/keys/verify", "", "3.3.3.3:4000", map[string]string{"code": "DOESNOTEXIST1234"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown code: status %d, want 401", rr.Code)
	}
}

func TestTokenVerifyAndLogout(t *testing.T) {
	srv, _, _ := newTestServer(t)
	adminToken := loginAdmin(t, srv)

	rr := doJSON(t, srv, "POST", "/api/auth/verify", adminToken, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: status %d", rr.Code)
	}

	rr = doJSON(t, srv, "POST", "/api/auth/logout", adminToken, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: status %d", rr.Code)
	}

	rr = doJSON(t, srv, "POST", "/api/auth/verify", adminToken, "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("verify after logout: status %d, want 401", rr.Code)
	}

	// Logout is idempotent.
	rr = doJSON(t, srv, "POST", "/api/auth/logout", adminToken, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("second logout: status %d", rr.Code)
	}
}

func TestKeyLifecycleOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)
	adminToken := loginAdmin(t, srv)

	// Generate.
	rr := doJSON(t, srv, "POST", "/api/keys/generate", adminToken, "", map[string]interface{}{
		"durationInDays": 7,
		"username":       "bob",
		"userType":       "user",
		"percentage":     40,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: status %d body %s", rr.Code, rr.Body.String())
	}
	var genResp struct {
		Success bool            `json:"success"`
		Key     model.AccessKey `json:"key"`
	}
	decode(t, rr, &genResp)
	if genResp.Key.Code == "" || genResp.Key.Percentage != 40 {
		t.Fatalf("generate response %+v", genResp)
	}

	// Rename.
	rr = doJSON(t, srv, "PUT", "/api/keys/"+genResp.Key.Code, adminToken, "", map[string]string{"name": "Bob's key"})
	if rr.Code != http.StatusOK {
		t.Fatalf("rename: status %d body %s", rr.Code, rr.Body.String())
	}

	// List includes it.
	rr = doJSON(t, srv, "GET", "/api/keys", adminToken, "", nil)
	var listResp struct {
		Success bool              `json:"success"`
		Keys    []model.AccessKey `json:"keys"`
	}
	decode(t, rr, &listResp)
	if len(listResp.Keys) != 1 || listResp.Keys[0].DisplayName != "Bob's key" {
		t.Fatalf("list response %+v", listResp)
	}

	// Delete, then the code no longer redeems.
	rr = doJSON(t, srv, "DELETE", "/api/keys/"+genResp.Key.Code, adminToken, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rr.Code)
	}
	rr = doJSON(t, srv, "POST", "/api/keys/verify", "", "5.5.5.5:4000", map[string]string{"code": genResp.Key.Code})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("redeem deleted key: status %d, want 401", rr.Code)
	}
}

func TestResourceCRUDOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)
	adminToken := loginAdmin(t, srv)

	rr := doJSON(t, srv, "POST", "/api/resources", adminToken, "", model.Resource{
		ID: "r1", Title: "Thing", Category: "Tools", Tags: []string{"ai"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("create: status %d body %s", rr.Code, rr.Body.String())
	}

	// Anonymous can read the open category.
	rr = doJSON(t, srv, "GET", "/api/resources/Tools", "", "", nil)
	var payload model.CategoryPayload
	decode(t, rr, &payload)
	if len(payload.Resources) != 1 || payload.Resources[0].ID != "r1" {
		t.Fatalf("category payload %+v", payload)
	}

	// Mutations without a token are rejected.
	rr = doJSON(t, srv, "DELETE", "/api/resources/r1", "", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete: status %d, want 401", rr.Code)
	}

	rr = doJSON(t, srv, "DELETE", "/api/resources/r1", adminToken, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rr.Code)
	}
	rr = doJSON(t, srv, "DELETE", "/api/resources/r1", adminToken, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: status %d, want 404", rr.Code)
	}
}

func TestImageUpload(t *testing.T) {
	srv, _, _ := newTestServer(t)
	adminToken := loginAdmin(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="image"; filename="pic.png"`},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	part.Write([]byte("\x89PNG fake image bytes"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/upload/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("upload: status %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	decode(t, rr, &resp)
	if resp.URL == "" {
		t.Fatal("no URL in upload response")
	}

	// The uploaded file is served back as a static asset.
	rr2 := doJSON(t, srv, "GET", resp.URL, "", "", nil)
	if rr2.Code != http.StatusOK {
		t.Fatalf("fetch uploaded file: status %d", rr2.Code)
	}
}

func TestHeaderConfigRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)
	adminToken := loginAdmin(t, srv)

	rr := doJSON(t, srv, "POST", "/api/config/header", adminToken, "", map[string]interface{}{
		"title":             "My Gallery",
		"categorySubtitles": map[string]string{"Tools": "Handy things"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("set config: status %d", rr.Code)
	}

	rr = doJSON(t, srv, "GET", "/api/config/header", "", "", nil)
	var resp struct {
		Success bool `json:"success"`
		Config  struct {
			Title             string            `json:"title"`
			CategorySubtitles map[string]string `json:"categorySubtitles"`
		} `json:"config"`
	}
	decode(t, rr, &resp)
	if resp.Config.Title != "My Gallery" || resp.Config.CategorySubtitles["Tools"] != "Handy things" {
		t.Errorf("config round trip %+v", resp.Config)
	}
}
