package port

import (
	"errors"
	"fmt"
)

// Fraud detection failure classes. FraudDetectionClient implementations return errors
// that match one of these with errors.Is or errors.As.
var (
	// ErrServiceUnreachable marks a request that never produced a response
	ErrServiceUnreachable = errors.New("fraud detection service unreachable")

	// ErrMalformedResponse marks a 2xx body that cannot be decoded into a verdict
	ErrMalformedResponse = errors.New("invalid response body")

	// ErrProcessingFailed marks a 2xx response whose body reports a failure
	ErrProcessingFailed = errors.New("processing failed")
)

// StatusError is returned for non-2xx responses from the fraud detection service
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error: status %d: %s", e.StatusCode, e.Detail)
}
