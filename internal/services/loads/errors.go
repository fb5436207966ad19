package loads

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidPin       = errors.New("Invalid PIN")
	ErrNotFound         = errors.New("load not found")
	ErrNothingToConfirm = errors.New("No loads to confirm")
	ErrRemoteFailure    = errors.New("remote call failed")
	ErrTooManyAttempts  = errors.New("too many PIN attempts")

	// ErrMissingProof и ErrInvalidTransition: частные случаи ErrValidation.
	ErrMissingProof      = &validationError{msg: "at least one proof of delivery photo is required"}
	ErrInvalidTransition = &validationError{msg: "invalid status transition"}
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

// pinError: неверный PIN с сообщением, которое видит водитель.
type pinError struct {
	msg string
}

func (e *pinError) Error() string { return e.msg }

func (e *pinError) Is(target error) bool { return target == ErrInvalidPin }

// RemoteError несёт сообщение коллаборатора без изменений, чтобы его можно было показать водителю.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return e.Err.Error()
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteFailure }

func remote(op string, err error) error {
	if errors.Is(err, ErrTooManyAttempts) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// IsRetryable: ошибки, которые водитель может повторить без пересинхронизации списка.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInvalidPin) ||
		errors.Is(err, ErrRemoteFailure) ||
		errors.Is(err, ErrTooManyAttempts)
}
