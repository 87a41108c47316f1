package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rampede/rampede/internal/dispatch"
)

// mockLoginServer provides a test login endpoint that tracks requests
type mockLoginServer struct {
	server       *httptest.Server
	requestCount int32
	cookieName   string
	token        string
	body         string
	statusCode   int
	mu           sync.Mutex
}

func newMockLoginServer() *mockLoginServer {
	m := &mockLoginServer{
		cookieName: "session",
		token:      "sess-token-123",
		statusCode: http.StatusOK,
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&m.requestCount, 1)

		m.mu.Lock()
		cookieName := m.cookieName
		token := m.token
		body := m.body
		statusCode := m.statusCode
		m.mu.Unlock()

		if token != "" {
			http.SetCookie(w, &http.Cookie{Name: cookieName, Value: token})
		}
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(statusCode)
		if body != "" {
			w.Write([]byte(body))
		}
	}))

	return m
}

func (m *mockLoginServer) setToken(cookieName, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookieName = cookieName
	m.token = token
}

func (m *mockLoginServer) setBody(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
}

func (m *mockLoginServer) setStatusCode(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCode = code
}

func (m *mockLoginServer) getRequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

func (m *mockLoginServer) close() {
	m.server.Close()
}

func loginSpec(t *testing.T, target string) *dispatch.RequestSpec {
	t.Helper()
	spec, err := dispatch.NewSpec(http.MethodPost, target, nil,
		map[string]string{"username": "load", "password": "secret"}, false)
	if err != nil {
		t.Fatalf("failed to build login spec: %v", err)
	}
	return spec
}

func TestSessionProviderCookieFlow(t *testing.T) {
	mock := newMockLoginServer()
	defer mock.close()

	provider, err := NewSessionProvider(loginSpec(t, mock.server.URL), "session", "")
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	ctx := context.Background()

	// First token fetch performs the login
	token1, err := provider.Token(ctx)
	if err != nil {
		t.Fatalf("failed to get token: %v", err)
	}
	if token1 != "sess-token-123" {
		t.Errorf("expected token 'sess-token-123', got '%s'", token1)
	}
	if mock.getRequestCount() != 1 {
		t.Errorf("expected 1 login request, got %d", mock.getRequestCount())
	}

	// Second token fetch should use cache for the rest of the run
	token2, err := provider.Token(ctx)
	if err != nil {
		t.Fatalf("failed to get cached token: %v", err)
	}
	if token2 != token1 {
		t.Errorf("expected cached token '%s', got '%s'", token1, token2)
	}
	if mock.getRequestCount() != 1 {
		t.Errorf("expected 1 login request (cached), got %d", mock.getRequestCount())
	}
}

func TestSessionProviderBodyTokenPath(t *testing.T) {
	mock := newMockLoginServer()
	defer mock.close()

	// No cookie; token lives in the JSON body instead
	mock.setToken("session", "")
	mock.setBody(`{"auth":{"token":"body-token-9"}}`)

	provider, err := NewSessionProvider(loginSpec(t, mock.server.URL), "session", "auth.token")
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	token, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("failed to get token: %v", err)
	}
	if token != "body-token-9" {
		t.Errorf("expected token 'body-token-9', got '%s'", token)
	}
}

func TestSessionProviderPostsLoginCredentials(t *testing.T) {
	var receivedMethod string
	var receivedContentType string
	var receivedBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		receivedBody = string(body)

		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok"})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, err := NewSessionProvider(loginSpec(t, server.URL), "session", "")
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("failed to get token: %v", err)
	}

	if receivedMethod != http.MethodPost {
		t.Errorf("expected POST login, got %s", receivedMethod)
	}
	if receivedContentType != "application/json" {
		t.Errorf("expected JSON login body, got content type %q", receivedContentType)
	}
	if !strings.Contains(receivedBody, `"username":"load"`) {
		t.Errorf("expected username in login body, got %q", receivedBody)
	}
	if !strings.Contains(receivedBody, `"password":"secret"`) {
		t.Errorf("expected password in login body, got %q", receivedBody)
	}
}

func TestSessionProviderConcurrentLogin(t *testing.T) {
	mock := newMockLoginServer()
	defer mock.close()

	provider, err := NewSessionProvider(loginSpec(t, mock.server.URL), "session", "")
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	ctx := context.Background()
	numGoroutines := 50
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	tokens := make([]string, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(index int) {
			defer wg.Done()
			token, err := provider.Token(ctx)
			if err != nil {
				t.Errorf("goroutine %d: failed to get token: %v", index, err)
				return
			}
			tokens[index] = token
		}(i)
	}

	wg.Wait()

	// Verify only one login was made
	requestCount := mock.getRequestCount()
	if requestCount != 1 {
		t.Errorf("expected 1 login for 50 concurrent calls, got %d", requestCount)
	}

	// Verify all goroutines got the same token
	for i, token := range tokens {
		if token != "sess-token-123" {
			t.Errorf("goroutine %d: expected token 'sess-token-123', got '%s'", i, token)
		}
	}
}

func TestSessionProviderErrorHandling(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		cookieToken   string
		body          string
		tokenPath     string
		expectedError string
	}{
		{
			name:          "non-200 status code",
			statusCode:    http.StatusUnauthorized,
			cookieToken:   "tok",
			expectedError: "login request failed with status 401",
		},
		{
			name:          "missing cookie",
			statusCode:    http.StatusOK,
			cookieToken:   "",
			expectedError: "no session cookie in login response",
		},
		{
			name:          "missing token path",
			statusCode:    http.StatusOK,
			cookieToken:   "",
			body:          `{"ok":true}`,
			tokenPath:     "auth.token",
			expectedError: `no session token at "auth.token" in login response`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockLoginServer()
			defer mock.close()

			mock.setToken("session", tt.cookieToken)
			mock.setBody(tt.body)
			mock.setStatusCode(tt.statusCode)

			provider, err := NewSessionProvider(loginSpec(t, mock.server.URL), "session", tt.tokenPath)
			if err != nil {
				t.Fatalf("failed to create provider: %v", err)
			}
			defer provider.Close()

			_, err = provider.Token(context.Background())
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("expected error containing %q, got %q", tt.expectedError, err.Error())
			}
		})
	}
}

func TestSessionProviderContextCancellation(t *testing.T) {
	mock := newMockLoginServer()
	defer mock.close()

	provider, err := NewSessionProvider(loginSpec(t, mock.server.URL), "session", "")
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)

	_, err = provider.Token(ctx)
	if err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestSessionProviderInjectHeader(t *testing.T) {
	mock := newMockLoginServer()
	defer mock.close()

	provider, err := NewSessionProvider(loginSpec(t, mock.server.URL), "session", "")
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	h := http.Header{}
	if err := provider.InjectHeader(context.Background(), h); err != nil {
		t.Fatalf("failed to inject header: %v", err)
	}

	got := h.Get("Cookie")
	want := "session=sess-token-123"
	if got != want {
		t.Errorf("expected Cookie header %q, got %q", want, got)
	}
}

func TestNewSessionProviderValidation(t *testing.T) {
	if _, err := NewSessionProvider(nil, "session", ""); err == nil {
		t.Error("expected error for nil login spec, got nil")
	}

	spec := loginSpec(t, "http://example.com/login")
	if _, err := NewSessionProvider(spec, "", ""); err == nil {
		t.Error("expected error for empty cookie name, got nil")
	}
}
