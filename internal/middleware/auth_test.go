package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ridepool/internal/domain"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseToken_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, role := range []domain.Role{domain.RoleRider, domain.RoleDriver, domain.RoleAdmin} {
		token, err := IssueToken(domain.Actor{UserID: "u1", Role: role}, testSecret, time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		actor, err := ParseToken(token, []byte(testSecret))
		if err != nil {
			t.Fatalf("%s: parse: %v", role, err)
		}
		if actor.UserID != "u1" || actor.Role != role {
			t.Errorf("expected u1/%s, got %+v", role, actor)
		}
	}
}

func TestParseToken_Rejects(t *testing.T) {
	t.Parallel()

	expired, _ := IssueToken(domain.Actor{UserID: "u1", Role: domain.RoleRider}, testSecret, -time.Minute)
	otherKey, _ := IssueToken(domain.Actor{UserID: "u1", Role: domain.RoleRider}, "other", time.Minute)
	system, _ := IssueToken(domain.SystemActor(), testSecret, time.Minute)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             "RIDER",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(testSecret))
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role:             "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	testCases := map[string]string{
		"expired":         expired,
		"wrong key":       otherKey,
		"system role":     system,
		"missing subject": noSubject,
		"unsigned":        unsigned,
		"garbage":         "not-a-token",
	}

	for name, token := range testCases {
		if _, err := ParseToken(token, []byte(testSecret)); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(Auth(testSecret))
	r.GET("/me", func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID, "role": actor.Role})
	})
	r.GET("/admin", AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuth_HeaderAndQuery(t *testing.T) {
	t.Parallel()
	r := newAuthRouter()
	token, _ := IssueToken(domain.Actor{UserID: "u1", Role: domain.RoleDriver}, testSecret, time.Minute)

	testCases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"bearer header", "/me", "Bearer " + token, http.StatusOK},
		{"query parameter", "/me?access_token=" + token, "", http.StatusOK},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"driver on admin route", "/admin", "Bearer " + token, http.StatusForbidden},
	}

	for _, tc := range testCases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestAdminRequired_AllowsAdmin(t *testing.T) {
	t.Parallel()
	r := newAuthRouter()
	token, _ := IssueToken(domain.Actor{UserID: "a1", Role: domain.RoleAdmin}, testSecret, time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestIdempotency_DisabledWithoutRedis(t *testing.T) {
	t.Parallel()
	calls := 0
	r := gin.New()
	r.Use(IdempotencyMiddleware(nil))
	r.POST("/x", func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(idempotencyHeader, "k1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
	}
	if calls != 2 {
		t.Errorf("expected both requests to reach the handler, got %d", calls)
	}
}

func TestCORSAndRequestID(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(CORSMiddleware(), RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected preflight 204, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Errorf("expected the request id to be echoed, got %q", got)
	}
}
