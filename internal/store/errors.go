package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist. Repositories also
// return it when a record exists but belongs to a different owner, so the
// two cases are indistinguishable to callers.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update violates a uniqueness
// constraint (duplicate email or phone).
var ErrConflict = errors.New("conflict")

const uniqueViolation = "23505"

func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
