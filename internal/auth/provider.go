package auth

import (
	"context"
	"net/http"
)

// Provider defines the interface for authentication providers that can
// obtain session tokens and inject them into request headers.
type Provider interface {
	// Token retrieves a valid session token, reusing the cached value
	// once one has been obtained.
	Token(ctx context.Context) (string, error)

	// InjectHeader injects the session token into the provided header
	// set as a Cookie. The header set is usually the one carried by a
	// request spec, so every dispatch reuses the same injected value.
	InjectHeader(ctx context.Context, h http.Header) error

	// Close releases any resources held by the provider.
	Close() error
}
