package service

import (
	"errors"
	"fmt"

	"rentalhub/internal/database"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func forbiddenError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// translateStorageError maps persistence sentinels onto the service taxonomy.
// Unknown errors pass through untouched and end up as internal errors.
func translateStorageError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, entity)
	case errors.Is(err, database.ErrConcurrentModification):
		return conflictError("%s was modified concurrently, reload and retry", entity)
	case errors.Is(err, database.ErrAlreadyPaid):
		return conflictError("rental is already paid")
	case errors.Is(err, database.ErrAlreadyReviewed):
		return validationError("rental has already been reviewed")
	case errors.Is(err, database.ErrEquipmentInUse):
		return conflictError("equipment has rentals in progress")
	case errors.Is(err, database.ErrDuplicateEmail):
		return conflictError("email is already registered")
	}
	return err
}

func requireActor(actorID int64) error {
	if actorID <= 0 {
		return ErrUnauthenticated
	}
	return nil
}
