package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubResolver struct {
	values map[string]string
}

func (s stubResolver) Resolve(_ context.Context, name string) (string, error) {
	value, ok := s.values[name]
	if !ok {
		return "", errors.New("unknown secret " + name)
	}
	return value, nil
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_SIGNING_SECRET", "plain-secret")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "ridehouse-dev")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected default shutdown timeout, got %s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Auth.SigningSecret != "plain-secret" {
		t.Fatalf("expected plain secret, got %q", cfg.Auth.SigningSecret)
	}
	if cfg.Firestore.ProjectID != "ridehouse-dev" {
		t.Fatalf("expected project id, got %q", cfg.Firestore.ProjectID)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	t.Setenv("AUTH_SIGNING_SECRET", "secret://jwt-signing-key")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "ridehouse-dev")

	cfg, err := Load(context.Background(), stubResolver{values: map[string]string{
		"jwt-signing-key": "resolved-value",
	}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.SigningSecret != "resolved-value" {
		t.Fatalf("expected resolved secret, got %q", cfg.Auth.SigningSecret)
	}
}

func TestLoadFailsWithoutSecret(t *testing.T) {
	t.Setenv("AUTH_SIGNING_SECRET", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "ridehouse-dev")

	if _, err := Load(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing signing secret")
	}
}

func TestLoadFailsOnUnresolvableSecret(t *testing.T) {
	t.Setenv("AUTH_SIGNING_SECRET", "secret://missing")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "ridehouse-dev")

	if _, err := Load(context.Background(), stubResolver{values: map[string]string{}}); err == nil {
		t.Fatal("expected error for unresolvable secret")
	}
}

func TestEnvDurationParsing(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "45s")
	t.Setenv("HTTP_WRITE_TIMEOUT", "60")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "bogus")
	t.Setenv("AUTH_SIGNING_SECRET", "x")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "ridehouse-dev")

	cfg, err := Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Fatalf("expected 45s read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Fatalf("expected 60s write timeout, got %s", cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected fallback shutdown timeout, got %s", cfg.Server.ShutdownTimeout)
	}
}
