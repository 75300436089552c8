package providers

import "fmt"

// ErrorKind classifies provider API failures so callers can pattern-match
// instead of inspecting raw status codes.
type ErrorKind string

const (
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindClientError ErrorKind = "client_error"
	KindServerError ErrorKind = "server_error"
	KindExhausted   ErrorKind = "exhausted"
)

// APIError is the typed error returned by provider REST clients.
type APIError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: kind=%s status=%d body=%s", e.Provider, e.Kind, e.Status, e.Body)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Kind == KindNotFound
}
