package warmer

// StatusTransportFailure is recorded when no HTTP response was obtained for a
// request (connection refused, timeout, DNS failure, ...).
const StatusTransportFailure = 0

// Result is the outcome of one crawl identity's pass over a URL list. The
// Statuses and Durations slices are index-aligned with URLs.
type Result struct {
	URLs      []string
	Statuses  []int
	Durations []float64 // milliseconds
	Total     int
}

// IsSuccess reports whether a recorded status counts as a successful warm:
// an actual HTTP response below 500.
func IsSuccess(status int) bool {
	return status != StatusTransportFailure && status < 500
}

// HasServerError reports whether any recorded status is >= 500.
func (r Result) HasServerError() bool {
	for _, s := range r.Statuses {
		if s >= 500 {
			return true
		}
	}
	return false
}
