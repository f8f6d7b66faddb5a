package invoice

import "errors"

// ErrNotFound reports an unknown invoice id or content hash.
var ErrNotFound = errors.New("invoice not found")

// ErrUpstream reports a failure of the external extraction service that is
// not the caller's fault (network, auth, quota).
var ErrUpstream = errors.New("upstream extraction failure")

// ValidationError is a client-visible input problem: an unsupported file
// type, a bad report parameter, or a reply from the extraction service
// that cannot be turned into a usable record. These are never retried.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps err (which may be nil) as a ValidationError.
func NewValidationError(message string, err error) *ValidationError {
	return &ValidationError{Message: message, Err: err}
}

// IsValidation reports whether err is a ValidationError anywhere in its
// chain.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
