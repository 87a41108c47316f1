package outcome

import "time"

// StatusNone marks a request that never reached a server: connection
// failures, DNS errors, timeouts, and cancellations all land here.
const StatusNone = 0

// Record is the normalized outcome of one dispatched request. It is created
// once by the dispatcher and never mutated afterwards.
type Record struct {
	// Status is the HTTP status code, or StatusNone when the request
	// produced no response.
	Status int `json:"status"`
	// Latency is the elapsed wall-clock time up to completion or failure.
	Latency time.Duration `json:"-"`
	// ErrKind is a short human label for the failure class. Empty on
	// success; purely diagnostic.
	ErrKind string `json:"err_kind,omitempty"`
}
