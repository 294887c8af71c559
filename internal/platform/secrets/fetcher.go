package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// accessClient abstracts the Secret Manager client for testing.
type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret names against Google Secret Manager. It satisfies
// config.SecretResolver.
type Fetcher struct {
	projectID string
	client    accessClient
}

// NewFetcher dials Secret Manager for the given project.
func NewFetcher(ctx context.Context, projectID string) (*Fetcher, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("secrets: project id is required")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secrets: create client: %w", err)
	}
	return &Fetcher{projectID: projectID, client: client}, nil
}

// Resolve fetches the latest version of the named secret. The name may be a
// bare secret id or a fully qualified resource path.
func (f *Fetcher) Resolve(ctx context.Context, name string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: secret name is required")
	}

	resource := name
	if !strings.HasPrefix(resource, "projects/") {
		resource = fmt.Sprintf("projects/%s/secrets/%s/versions/latest", f.projectID, name)
	}

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	payload := resp.GetPayload().GetData()
	if len(payload) == 0 {
		return "", fmt.Errorf("secrets: secret %s is empty", name)
	}
	return string(payload), nil
}

// Close releases the underlying client.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}
