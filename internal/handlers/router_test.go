package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	domain "github.com/ridehouse/api/internal/domain"
	"github.com/ridehouse/api/internal/platform/auth"
	"github.com/ridehouse/api/internal/services"
)

func TestRouterAuthenticatesSaleRoutes(t *testing.T) {
	const secret = "router-test-secret"

	salesHandler, err := NewSalesHandler(&stubSaleService{
		listFn: func(_ context.Context, actor auth.Actor, _ services.ListSalesQuery) ([]domain.Sale, error) {
			if actor.ID != "seller-1" || actor.Role != domain.RoleSeller {
				t.Errorf("actor from token: %+v", actor)
			}
			return []domain.Sale{sampleSale()}, nil
		},
	})
	if err != nil {
		t.Fatalf("new sales handler: %v", err)
	}
	trackingHandler, err := NewTrackingHandler(&stubTrackingService{})
	if err != nil {
		t.Fatalf("new tracking handler: %v", err)
	}
	authMW, err := auth.NewMiddleware(secret)
	if err != nil {
		t.Fatalf("new auth middleware: %v", err)
	}

	router, err := NewRouter(RouterConfig{
		Auth:     authMW,
		Sales:    salesHandler,
		Tracking: trackingHandler,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	// Health probe is public.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", rec.Code)
	}

	// Sale routes require a token.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: got %d", rec.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "seller-1",
		"role": "seller",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated list: got %d body %s", rec.Code, rec.Body.String())
	}
}
