package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const secretScheme = "secret://"

// SecretResolver fetches secret material referenced by secret:// values.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// FirestoreConfig selects the Firestore project and optional emulator.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// AuthConfig carries the JWT verification settings.
type AuthConfig struct {
	SigningSecret string
}

// EventsConfig selects the Pub/Sub topic for sale events. An empty topic
// disables publishing.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// Config is the resolved application configuration.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	Auth      AuthConfig
	Events    EventsConfig
}

// Load reads configuration from the environment. Values of the form
// secret://name are resolved through the given resolver; resolver may be nil
// when no such values are present.
func Load(ctx context.Context, resolver SecretResolver) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Addr:            envOr("HTTP_ADDR", ":8080"),
			ReadTimeout:     envDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    envDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Firestore: FirestoreConfig{
			ProjectID:    envOr("GOOGLE_CLOUD_PROJECT", ""),
			EmulatorHost: envOr("FIRESTORE_EMULATOR_HOST", ""),
		},
		Events: EventsConfig{
			ProjectID: envOr("PUBSUB_PROJECT_ID", envOr("GOOGLE_CLOUD_PROJECT", "")),
			Topic:     envOr("SALE_EVENTS_TOPIC", ""),
		},
	}

	secret, err := resolveValue(ctx, resolver, envOr("AUTH_SIGNING_SECRET", ""))
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve AUTH_SIGNING_SECRET: %w", err)
	}
	if secret == "" {
		return Config{}, fmt.Errorf("config: AUTH_SIGNING_SECRET is required")
	}
	cfg.Auth.SigningSecret = secret

	if cfg.Firestore.ProjectID == "" && cfg.Firestore.EmulatorHost == "" {
		return Config{}, fmt.Errorf("config: GOOGLE_CLOUD_PROJECT is required outside the emulator")
	}

	return cfg, nil
}

func resolveValue(ctx context.Context, resolver SecretResolver, value string) (string, error) {
	if !strings.HasPrefix(value, secretScheme) {
		return value, nil
	}
	name := strings.TrimPrefix(value, secretScheme)
	if name == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	if resolver == nil {
		return "", fmt.Errorf("secret reference %q but no resolver configured", name)
	}
	return resolver.Resolve(ctx, name)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
