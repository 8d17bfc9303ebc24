package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubAccessClient struct {
	accessFn func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	closed   bool
}

func (s *stubAccessClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	if s.accessFn == nil {
		return nil, status.Error(codes.NotFound, "no stub configured")
	}
	return s.accessFn(ctx, req)
}

func (s *stubAccessClient) Close() error {
	s.closed = true
	return nil
}

func payload(value string) *secretmanagerpb.AccessSecretVersionResponse {
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}
}

func TestResolveRemoteAndCache(t *testing.T) {
	calls := 0
	client := &stubAccessClient{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			calls++
			if req.Name != "projects/demo/secrets/webhook/versions/latest" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return payload("hunter2"), nil
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithClient(client),
		WithDefaultProject("demo"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.Resolve(context.Background(), "secret://webhook")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "hunter2" {
		t.Fatalf("unexpected value %q", value)
	}

	if _, err := fetcher.Resolve(context.Background(), "secret://webhook"); err != nil {
		t.Fatalf("cached Resolve returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single remote fetch, got %d", calls)
	}
}

func TestResolveVersionAndProjectOverrides(t *testing.T) {
	client := &stubAccessClient{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/override/secrets/webhook/versions/7" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return payload("pinned"), nil
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithClient(client),
		WithDefaultProject("demo"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.Resolve(context.Background(), "secret://webhook?version=7&project=override")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "pinned" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestResolveFallsBackOnUnavailable(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(fallback, []byte("secret://webhook=local-value\n"), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}

	client := &stubAccessClient{
		accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, status.Error(codes.Unavailable, "backend down")
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithClient(client),
		WithDefaultProject("demo"),
		WithFallbackFile(fallback),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.Resolve(context.Background(), "secret://webhook")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "local-value" {
		t.Fatalf("unexpected fallback value %q", value)
	}
}

func TestResolvePropagatesHardErrors(t *testing.T) {
	client := &stubAccessClient{
		accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, status.Error(codes.InvalidArgument, "bad request")
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithClient(client),
		WithDefaultProject("demo"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	if _, err := fetcher.Resolve(context.Background(), "secret://webhook"); err == nil {
		t.Fatalf("expected error for non-fallback failure")
	}
}

func TestResolveRejectsBadReferences(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), WithClient(&stubAccessClient{}), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	for _, ref := range []string{"", "   ", "vault://webhook", "secret://"} {
		if _, err := fetcher.Resolve(context.Background(), ref); err == nil {
			t.Fatalf("expected error for reference %q", ref)
		}
	}
}

func TestInvalidateNotifiesSubscribers(t *testing.T) {
	values := []string{"first", "second"}
	client := &stubAccessClient{
		accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			value := values[0]
			if len(values) > 1 {
				values = values[1:]
			}
			return payload(value), nil
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithClient(client),
		WithDefaultProject("demo"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	notify, cancel := fetcher.Subscribe("secret://webhook")
	defer cancel()

	if _, err := fetcher.Resolve(context.Background(), "secret://webhook"); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	fetcher.Notify("secret://webhook")

	select {
	case <-notify:
	default:
		t.Fatalf("expected notification after invalidation")
	}

	value, err := fetcher.Resolve(context.Background(), "secret://webhook")
	if err != nil {
		t.Fatalf("Resolve after invalidation returned error: %v", err)
	}
	if value != "second" {
		t.Fatalf("expected refreshed value, got %q", value)
	}
}

func TestParseReference(t *testing.T) {
	parsed, err := parseReference("secret://projects/demo/secrets/webhook?version=3")
	if err != nil {
		t.Fatalf("parseReference returned error: %v", err)
	}
	if parsed.Canonical != "secret://projects/demo/secrets/webhook" {
		t.Fatalf("unexpected canonical %q", parsed.Canonical)
	}
	if parsed.Version != "3" {
		t.Fatalf("unexpected version %q", parsed.Version)
	}

	if _, err := parseReference("https://example.com"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := parseReference("secret://webhook?project=other"); err != nil {
		t.Fatalf("expected project override to parse, got %v", err)
	}
}
