// Package dispatch issues the individual requests of a ramp run.
//
// A [RequestSpec] is built once from configuration and stays immutable for
// the whole run; [RequestSpec.NewRequest] materializes a fresh *http.Request
// per dispatch. GET specs carry their params as query parameters, every
// other method sends them as a JSON body.
//
// The [Dispatcher] contract is the boundary the scheduler relies on:
//
//	rec := d.Dispatch(ctx, spec)
//
// never fails outward. A response, whatever its status code, becomes a
// record in that status bucket; transport errors, timeouts and context
// cancellation become records with outcome.StatusNone and the elapsed
// time up to the failure point.
//
// [NewClient] builds the shared HTTP client with a transport tuned for
// sustained request rates (connection reuse across cadence ticks).
package dispatch
