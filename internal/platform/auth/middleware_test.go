package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	domain "github.com/ridehouse/api/internal/domain"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims saleClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	mw, err := NewMiddleware(testSecret)
	if err != nil {
		t.Fatalf("new middleware: %v", err)
	}

	token := signToken(t, saleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:       string(domain.RoleSeller),
		CustomerID: "",
	}, testSecret)

	var got Actor
	var ok bool
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/sales", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if !ok {
		t.Fatal("expected actor on context")
	}
	if got.ID != "user-7" || got.Role != domain.RoleSeller {
		t.Fatalf("unexpected actor: %+v", got)
	}
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	mw, err := NewMiddleware(testSecret)
	if err != nil {
		t.Fatalf("new middleware: %v", err)
	}

	expired := signToken(t, saleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: string(domain.RoleAdmin),
	}, testSecret)

	wrongKey := signToken(t, saleClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-7"},
		Role:             string(domain.RoleAdmin),
	}, "other-secret")

	unknownRole := signToken(t, saleClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-7"},
		Role:             "auditor",
	}, testSecret)

	customerWithoutID := signToken(t, saleClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-7"},
		Role:             string(domain.RoleCustomer),
	}, testSecret)

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong key", header: "Bearer " + wrongKey},
		{name: "unknown role", header: "Bearer " + unknownRole},
		{name: "customer missing customerId", header: "Bearer " + customerWithoutID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/sales", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}
