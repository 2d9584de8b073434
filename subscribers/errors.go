package subscribers

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEmail is returned by the store when the email is already
	// registered. The signup flow turns it into SignupAlreadyRegistered.
	ErrDuplicateEmail = errors.New("email already subscribed")
	ErrNotFound       = errors.New("subscriber not found")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError reports malformed input. Reason is safe to show to users.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps any persistence failure that is not one of the
// sentinel errors above.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
