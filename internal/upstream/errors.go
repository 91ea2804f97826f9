package upstream

import "fmt"

// ConfigError means the client cannot be constructed at all (e.g. a missing
// API key). It is raised before any network access.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "upstream configuration error: " + e.Reason
}

// HTTPError is a non-2xx upstream response after retries are exhausted.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream HTTP %d: %s", e.Status, e.Body)
}

// TimeoutPhase distinguishes where a timeout fired.
type TimeoutPhase string

const (
	PhaseConnect TimeoutPhase = "connect"
	PhaseRead    TimeoutPhase = "read"
)

// TimeoutError is a connect- or read-phase timeout against the upstream.
type TimeoutError struct {
	Phase TimeoutPhase
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream %s timeout: %v", e.Phase, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError covers DNS and connection-level failures that are neither
// timeouts nor HTTP responses.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
