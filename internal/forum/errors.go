package forum

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the target question or answer does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden covers self-votes and acceptance by anyone but the
	// question's author.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable wraps store failures. The caller may retry with the
	// same intent.
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvalid rejects malformed input such as an unknown direction.
	ErrInvalid = errors.New("invalid request")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// storeError classifies an error returned by a store transaction. Begin and
// commit failures arrive unwrapped and become ErrUnavailable; domain errors
// raised inside the transaction pass through.
func storeError(op string, err error) error {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalid),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, errConcurrentInsert):
		return err
	}
	return unavailable(op, err)
}
