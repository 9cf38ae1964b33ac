package api

import (
	"errors"
	"fmt"

	"github.com/itrek/trekd/state"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// storeErr translates store errors into API errors, naming the thing involved.
func storeErr(err error, what string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrNotFound):
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	case errors.Is(err, state.ErrExists):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
