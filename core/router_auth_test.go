package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// fakeAdminRepo serves a single in-memory admin account.
type fakeAdminRepo struct {
	admin Admin
}

func (r *fakeAdminRepo) FindByUsername(ctx context.Context, username string) (*Admin, error) {
	if username != r.admin.Username {
		return nil, pgx.ErrNoRows
	}
	a := r.admin
	return &a, nil
}

func (r *fakeAdminRepo) Create(ctx context.Context, username, passwordHash, name string) (int64, error) {
	return 0, nil
}

func (r *fakeAdminRepo) HasAdmin(ctx context.Context) (bool, error) {
	return true, nil
}

type nopStorage struct{}

func (nopStorage) UploadImage(ctx context.Context, path string, data []byte) (string, error) {
	return "https://example.test/" + path, nil
}

func newAuthTestRouter(t *testing.T) (*gin.Engine, *TokenCodec) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	adminRepo := &fakeAdminRepo{admin: Admin{
		ID:           1,
		Username:     "admin",
		PasswordHash: string(hash),
		Name:         "System Administrator",
	}}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	codec := newTestCodec(t)
	r := NewRouter(Config{}, codec, DefaultAccessPolicy(),
		NewRepositoryAuthService(adminRepo), adminRepo, nil, redisClient, nopStorage{})
	return r, codec
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginThenMe(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := postJSON(r, "/api/auth/login", `{"username":"admin","password":"correct horse"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	var loginResp struct {
		Token string `json:"token"`
		Admin struct {
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"admin"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if loginResp.Token == "" {
		t.Fatal("login returned empty token")
	}
	if loginResp.Admin.Username != "admin" || loginResp.Admin.Name != "System Administrator" {
		t.Fatalf("unexpected admin payload: %+v", loginResp.Admin)
	}

	w = doRequest(r, "GET", "/api/auth/me", "Bearer "+loginResp.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d, body = %s", w.Code, w.Body.String())
	}
	var meResp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &meResp); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if meResp["username"] != "admin" || meResp["name"] != "System Administrator" {
		t.Fatalf("unexpected me payload: %v", meResp)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	for _, body := range []string{
		`{"username":"admin","password":"wrong"}`,
		`{"username":"nobody","password":"correct horse"}`,
	} {
		w := postJSON(r, "/api/auth/login", body)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("login %s: status = %d, want 401", body, w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != `{"error":"Invalid credentials"}` {
			t.Fatalf("login %s: body = %s", body, got)
		}
	}
}

func TestMeFailureReasons(t *testing.T) {
	r, codec := newAuthTestRouter(t)

	expired, err := codec.IssueToken("admin", RoleAdmin, time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	ghost, err := codec.IssueToken("ghost", RoleAdmin, time.Now())
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", "No authorization header"},
		{"wrong scheme", "Token abc", "No authorization header"},
		{"garbage token", "Bearer garbage", "Invalid token"},
		{"expired token", "Bearer " + expired, "Token expired"},
		{"unknown admin", "Bearer " + ghost, "Admin not found"},
	}

	for _, tc := range cases {
		w := doRequest(r, "GET", "/api/auth/me", tc.header)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", tc.name, w.Code)
			continue
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Errorf("%s: unmarshal: %v", tc.name, err)
			continue
		}
		if body["error"] != tc.want {
			t.Errorf("%s: error = %q, want %q", tc.name, body["error"], tc.want)
		}
	}
}

func TestValidateEndpoint(t *testing.T) {
	r, codec := newAuthTestRouter(t)

	now := time.Now()
	token, err := codec.IssueToken("admin", RoleAdmin, now)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	// Valid token via body.
	w := postJSON(r, "/api/auth/validate", `{"token":"`+token+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("validate status = %d", w.Code)
	}
	var resp struct {
		Valid     bool   `json:"valid"`
		Username  string `json:"username"`
		ExpiresAt int64  `json:"expiresAt"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Valid || resp.Username != "admin" {
		t.Fatalf("unexpected validate payload: %+v", resp)
	}
	wantExp := now.Add(24 * time.Hour).Unix()
	if resp.ExpiresAt/1000 != wantExp {
		t.Fatalf("expiresAt = %d, want %d seconds", resp.ExpiresAt/1000, wantExp)
	}

	// Expired token introspects as invalid with a reason, still 200.
	expired, err := codec.IssueToken("admin", RoleAdmin, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	w = postJSON(r, "/api/auth/validate", `{"token":"`+expired+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("validate expired status = %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Valid || resp.Error != "Token expired" {
		t.Fatalf("unexpected expired payload: %+v", resp)
	}

	// Garbage token.
	w = postJSON(r, "/api/auth/validate", `{"token":"junk"}`)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Valid || resp.Error != "Invalid token" {
		t.Fatalf("unexpected garbage payload: %+v", resp)
	}

	// Bearer header form.
	w = doRequest(r, "POST", "/api/auth/validate", "Bearer "+token)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Valid {
		t.Fatalf("bearer validate: %+v", resp)
	}
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	w := postJSON(r, "/api/events", `{}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"Authentication required"}` {
		t.Fatalf("body = %s", got)
	}
}
