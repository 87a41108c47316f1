package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RequestSpec describes the one logical request a run drives. It is built
// once, before warm-up, and only read afterwards: the scheduler hands the
// same spec to every dispatch of every level.
type RequestSpec struct {
	Method  string
	URL     string
	Headers http.Header
	Params  map[string]string
	Auth    bool

	// Precomputed at build time so the dispatch hot path only allocates
	// the request itself.
	fullURL string
	body    []byte
}

// NewSpec validates and precompiles a request spec. GET requests carry
// params as query parameters; every other method sends them as a JSON body.
func NewSpec(method, target string, headers, params map[string]string, auth bool) (*RequestSpec, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	hdr := http.Header{}
	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		hdr.Set(canonicalKey, value)
	}

	spec := &RequestSpec{
		Method:  method,
		URL:     target,
		Headers: hdr,
		Params:  params,
		Auth:    auth,
		fullURL: target,
	}

	if len(params) == 0 {
		return spec, nil
	}

	if method == http.MethodGet {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse target URL: %w", err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		spec.fullURL = u.String()
		return spec, nil
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params body: %w", err)
	}
	spec.body = body
	if hdr.Get("Content-Type") == "" {
		hdr.Set("Content-Type", "application/json")
	}
	return spec, nil
}

// WithHeader returns a copy of the spec with one header set. The receiver
// is left untouched; specs stay immutable once handed to the scheduler.
func (s *RequestSpec) WithHeader(key, value string) (*RequestSpec, error) {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
		return nil, fmt.Errorf("invalid header key %q", key)
	}
	if strings.ContainsAny(value, "\r\n") {
		return nil, fmt.Errorf("invalid header value for %s", trimmedKey)
	}

	clone := *s
	clone.Headers = make(http.Header, len(s.Headers)+1)
	for k, vals := range s.Headers {
		clone.Headers[k] = append([]string(nil), vals...)
	}
	clone.Headers.Set(http.CanonicalHeaderKey(trimmedKey), value)
	return &clone, nil
}

// NewRequest materializes one *http.Request bound to ctx. Each call returns
// a fresh request so concurrent dispatches never share request state.
func (s *RequestSpec) NewRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(s.body) > 0 {
		body = bytes.NewReader(s.body)
	}

	req, err := http.NewRequestWithContext(ctx, s.Method, s.fullURL, body)
	if err != nil {
		return nil, err
	}

	for key, values := range s.Headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}

	if len(s.body) > 0 {
		req.ContentLength = int64(len(s.body))
		payload := s.body
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}

	return req, nil
}
