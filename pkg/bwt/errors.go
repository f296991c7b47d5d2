package bwt

import "fmt"

// Internal error codes, one per checked invariant.
const (
	errCodeNoOrigin       = 1003
	errCodeBucketOrder    = 1005
	errCodeBigBucketTwice = 1006
	errCodeCopyPointers   = 1007
)

// InternalError reports a violated sorting invariant. It indicates a defect in the
// sort rather than bad input, and is raised with panic.
type InternalError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("bwt: internal error %d: %s", e.Code, e.Message)
}

func raise(code int, format string, args ...interface{}) {
	panic(&InternalError{Code: code, Message: fmt.Sprintf(format, args...)})
}
