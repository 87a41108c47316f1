package auth

import (
	"context"
	"net/http"
	"testing"
)

func TestStaticProvider(t *testing.T) {
	token := "my-static-token"
	provider := NewStaticProvider("session", token)

	// Test Token()
	gotToken, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if gotToken != token {
		t.Errorf("Token() = %q, want %q", gotToken, token)
	}

	// Test InjectHeader()
	h := http.Header{}
	if err := provider.InjectHeader(context.Background(), h); err != nil {
		t.Fatalf("InjectHeader() error = %v", err)
	}

	gotHeader := h.Get("Cookie")
	wantHeader := "session=" + token
	if gotHeader != wantHeader {
		t.Errorf("Cookie header = %q, want %q", gotHeader, wantHeader)
	}

	// Test Close()
	if err := provider.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestStaticProviderInjectsPerHeaderSet(t *testing.T) {
	provider := NewStaticProvider("sid", "request-token")
	defer provider.Close()

	ctx := context.Background()

	headers := []http.Header{{}, {}, {}}
	for i, h := range headers {
		if err := provider.InjectHeader(ctx, h); err != nil {
			t.Fatalf("failed to inject header into set %d: %v", i+1, err)
		}
	}

	expected := "sid=request-token"
	for i, h := range headers {
		if got := h.Get("Cookie"); got != expected {
			t.Errorf("header set %d: expected Cookie %q, got %q", i+1, expected, got)
		}
	}
}
