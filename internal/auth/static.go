package auth

import (
	"context"
	"fmt"
	"net/http"
)

// StaticProvider implements a provider that returns a pre-issued session
// token. This is typically used for tokens that are obtained outside of
// the tool.
type StaticProvider struct {
	cookieName string
	token      string
}

// NewStaticProvider creates a new static provider with the given token.
func NewStaticProvider(cookieName, token string) *StaticProvider {
	return &StaticProvider{
		cookieName: cookieName,
		token:      token,
	}
}

// Token returns the static token immediately without any network calls.
func (p *StaticProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

// InjectHeader injects the static token as a Cookie header.
func (p *StaticProvider) InjectHeader(ctx context.Context, h http.Header) error {
	h.Set("Cookie", fmt.Sprintf("%s=%s", p.cookieName, p.token))
	return nil
}

// Close is a no-op for static providers.
func (p *StaticProvider) Close() error {
	return nil
}
