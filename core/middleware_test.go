package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestAuthenticateRequestCollapsesFailures(t *testing.T) {
	codec := newTestCodec(t)
	now := time.Now()

	valid, err := codec.IssueToken("admin", RoleAdmin, now)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	expired, err := codec.IssueToken("admin", RoleAdmin, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	forged, err := func() (string, error) {
		other, err := NewTokenCodec("wrong-secret")
		if err != nil {
			return "", err
		}
		return other.IssueToken("admin", RoleAdmin, now)
	}()
	if err != nil {
		t.Fatalf("forged token setup: %v", err)
	}

	cases := []struct {
		name   string
		header string
		wantOK bool
	}{
		{"no header", "", false},
		{"wrong scheme", "Basic " + valid, false},
		{"lowercase bearer", "bearer " + valid, false},
		{"no space", "Bearer" + valid, false},
		{"malformed token", "Bearer not-a-token", false},
		{"expired token", "Bearer " + expired, false},
		{"forged token", "Bearer " + forged, false},
		{"valid", "Bearer " + valid, true},
	}

	for _, tc := range cases {
		principal, ok := authenticateRequest(codec, tc.header)
		if ok != tc.wantOK {
			t.Errorf("%s: ok = %v, want %v", tc.name, ok, tc.wantOK)
		}
		if ok && (principal == nil || principal.Username != "admin" || principal.Role != RoleAdmin) {
			t.Errorf("%s: unexpected principal %+v", tc.name, principal)
		}
		if !ok && principal != nil {
			t.Errorf("%s: expected nil principal on failure", tc.name)
		}
	}
}

func newGateTestRouter(t *testing.T, codec *TokenCodec) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	policy := NewAccessPolicy([]AccessRule{
		{Method: "GET", Pattern: "/public", Requirement: Public},
		{Method: "GET", Pattern: "/private", Requirement: Authenticated},
		{Method: "GET", Pattern: "/admin-only", Requirement: Authenticated},
	})
	r := gin.New()
	r.Use(AuthMiddleware(codec, policy))
	r.GET("/public", func(c *gin.Context) {
		_, ok := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	r.GET("/private", func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"username": p.Username})
	})
	r.GET("/admin-only", AdminOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddlewareGate(t *testing.T) {
	codec := newTestCodec(t)
	r := newGateTestRouter(t, codec)

	token, err := codec.IssueToken("admin", RoleAdmin, time.Now())
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	// Public route works without a token.
	w := doRequest(r, "GET", "/public", "")
	if w.Code != http.StatusOK {
		t.Fatalf("public without token: status = %d", w.Code)
	}

	// Public route with a bad token is anonymous, not an error.
	w = doRequest(r, "GET", "/public", "Bearer junk")
	if w.Code != http.StatusOK {
		t.Fatalf("public with bad token: status = %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["authenticated"] != false {
		t.Fatalf("bad token should not authenticate: %v", body)
	}

	// Protected route without token -> 401.
	w = doRequest(r, "GET", "/private", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("private without token: status = %d, want 401", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != "Authentication required" {
		t.Fatalf("unexpected error body: %v", body)
	}

	// Protected route with valid token -> 200 and principal visible.
	w = doRequest(r, "GET", "/private", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("private with token: status = %d, body = %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["username"] != "admin" {
		t.Fatalf("principal username = %v, want admin", body["username"])
	}

	// Unrouted path is denied outright.
	w = doRequest(r, "GET", "/not-listed", "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unlisted path: status = %d, want 403", w.Code)
	}
}

func TestAdminOnlyRejectsOtherRoles(t *testing.T) {
	codec := newTestCodec(t)
	r := newGateTestRouter(t, codec)

	token, err := codec.IssueToken("someone", "VIEWER", time.Now())
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	w := doRequest(r, "GET", "/admin-only", "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	adminToken, err := codec.IssueToken("admin", RoleAdmin, time.Now())
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	w = doRequest(r, "GET", "/admin-only", "Bearer "+adminToken)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func doRequest(r *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
