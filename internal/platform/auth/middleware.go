package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/httpx"
)

type saleClaims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	CustomerID string `json:"customerId,omitempty"`
}

// Middleware verifies bearer tokens and stores the resulting Actor on the
// request context. Tokens are HS256 signed with the shared secret.
type Middleware struct {
	secret []byte
}

// NewMiddleware constructs the JWT verification middleware.
func NewMiddleware(secret string) (*Middleware, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	return &Middleware{secret: []byte(secret)}, nil
}

// Handler rejects requests that do not carry a valid bearer token.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.actorFromRequest(r)
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", err.Error(), http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func (m *Middleware) actorFromRequest(r *http.Request) (Actor, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Actor{}, errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Actor{}, errors.New("authorization header must be a bearer token")
	}

	claims := &saleClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return Actor{}, errors.New("invalid token")
	}
	if !token.Valid {
		return Actor{}, errors.New("invalid token")
	}

	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleAdmin, domain.RoleSeller, domain.RoleCustomer:
	default:
		return Actor{}, errors.New("token role is not recognised")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Actor{}, errors.New("token subject is required")
	}
	if role == domain.RoleCustomer && strings.TrimSpace(claims.CustomerID) == "" {
		return Actor{}, errors.New("customer token requires customerId claim")
	}

	return Actor{
		ID:         claims.Subject,
		CustomerID: claims.CustomerID,
		Role:       role,
	}, nil
}
