package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidEntity is returned for entity types not in the registry.
	ErrInvalidEntity = errors.New("invalid_entity")
	// ErrNotFound is returned when no row matches the id in the organization.
	ErrNotFound = errors.New("not_found")
	// ErrAlreadyDeleted is returned when soft-deleting a row that is already
	// in the trash.
	ErrAlreadyDeleted = errors.New("already_deleted")
	// ErrNotDeleted is returned when restoring or purging a row that is not
	// soft-deleted.
	ErrNotDeleted = errors.New("not_deleted")
	// ErrRoleDenied is returned when the actor's role is below the entity
	// policy's minimum.
	ErrRoleDenied = errors.New("role_denied")
)

// StatusRequiredError is returned when an entity policy requires the row to
// be in one of a set of statuses before it can be soft-deleted.
type StatusRequiredError struct {
	Allowed []string
}

func (e *StatusRequiredError) Error() string {
	return fmt.Sprintf("status_required:%s", strings.Join(e.Allowed, "|"))
}
