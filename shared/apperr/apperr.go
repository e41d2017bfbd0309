// Package apperr defines the error taxonomy of spec.md §7: every error the
// pipeline produces wraps one of these sentinels, checkable with errors.Is,
// so callers can distinguish "retry later" from "stop and fix config" from
// "this is a bug, not a runtime condition" without parsing strings.
package apperr

import "errors"

var (
	// ErrConfig means the configuration is missing or invalid (e.g. no
	// library base URL, a weight that can't be parsed). Not retryable;
	// the process should exit with a non-zero status.
	ErrConfig = errors.New("configuration error")

	// ErrConnectivity means a network call to the library or an external
	// client failed for transport reasons (DNS, TCP, TLS, timeout) rather
	// than because the remote rejected the request.
	ErrConnectivity = errors.New("connectivity error")

	// ErrAPI means an external client returned a non-2xx response that
	// httpx's retry policy exhausted, or a response body it couldn't
	// decode.
	ErrAPI = errors.New("external API error")

	// ErrRateLimit means a call was withheld by the rate limiter because a
	// window or daily quota was exhausted.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrStore means the embedded database returned an error opening,
	// migrating, reading, or writing.
	ErrStore = errors.New("store error")

	// ErrBug means an invariant the code relies on was violated (e.g. a
	// track with no content key reaching the detector). These should never
	// happen at runtime; when they do, the debug tier logs a stack trace.
	ErrBug = errors.New("internal invariant violated")
)
