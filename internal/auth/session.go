package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rampede/rampede/internal/dispatch"
)

// SessionProvider performs a login request once per run and caches the
// resulting session token for every subsequent use. The token is read from
// the named cookie of the login response, or from a gjson path into the
// JSON body when a token path is configured.
type SessionProvider struct {
	login           *dispatch.RequestSpec
	cookieName      string
	tokenPath       string
	httpClient      *http.Client
	mu              sync.Mutex
	cachedToken     string
	fetched         bool
	fetchInProgress bool
	fetchCond       *sync.Cond
}

// NewSessionProvider creates a provider that runs the given login spec to
// obtain a session token. cookieName names both the response cookie to read
// and the request cookie to inject; a non-empty tokenPath switches
// extraction to a gjson path into the login response body.
func NewSessionProvider(login *dispatch.RequestSpec, cookieName, tokenPath string) (*SessionProvider, error) {
	if login == nil {
		return nil, errors.New("login spec is required")
	}
	if cookieName == "" {
		return nil, errors.New("cookie name is required")
	}
	p := &SessionProvider{
		login:      login,
		cookieName: cookieName,
		tokenPath:  tokenPath,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	p.fetchCond = sync.NewCond(&p.mu)
	return p, nil
}

// Token retrieves the session token, logging in on first use.
func (p *SessionProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// One login is good for the whole run
	if p.fetched {
		return p.cachedToken, nil
	}

	// If another goroutine is already logging in, wait for it
	for p.fetchInProgress {
		p.fetchCond.Wait()
		// After waking up, check if we now have a token
		if p.fetched {
			return p.cachedToken, nil
		}
	}

	// Mark that we're fetching
	p.fetchInProgress = true
	p.mu.Unlock()

	// Perform the login (without holding the lock)
	token, err := p.fetchToken(ctx)

	p.mu.Lock()
	p.fetchInProgress = false
	p.fetchCond.Broadcast()

	if err != nil {
		return "", err
	}

	// Cache the token
	p.cachedToken = token
	p.fetched = true

	return p.cachedToken, nil
}

func (p *SessionProvider) fetchToken(ctx context.Context) (string, error) {
	req, err := p.login.NewRequest(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login request failed with status %d", resp.StatusCode)
	}

	if p.tokenPath != "" {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read login response: %w", err)
		}
		result := gjson.GetBytes(body, p.tokenPath)
		if !result.Exists() || result.String() == "" {
			return "", fmt.Errorf("no session token at %q in login response", p.tokenPath)
		}
		return result.String(), nil
	}

	for _, c := range resp.Cookies() {
		if c.Name == p.cookieName {
			if c.Value == "" {
				return "", fmt.Errorf("empty %s cookie in login response", p.cookieName)
			}
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("no %s cookie in login response", p.cookieName)
}

// InjectHeader injects the session token as a Cookie header.
func (p *SessionProvider) InjectHeader(ctx context.Context, h http.Header) error {
	token, err := p.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get session token: %w", err)
	}
	h.Set("Cookie", fmt.Sprintf("%s=%s", p.cookieName, token))
	return nil
}

// Close releases resources held by the provider.
func (p *SessionProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
