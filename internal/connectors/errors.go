package connectors

import (
	"fmt"
	"time"
)

// ThrottleError — подсказка движка «приходи позже». ReliableEngine уважает
// RetryAfter вместо стандартного экспоненциального бэкоффа.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error {
	return e.Cause
}
