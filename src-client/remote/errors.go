package remote

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a request against an entity the service no longer
// has. Deletion treats it as success.
var ErrNotFound = errors.New("remote: not found")

// PermissionError marks a write the service refused for authorization
// reasons, e.g. editing an event the user doesn't own.
type PermissionError struct {
	Op     string
	Status int
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("remote: %s forbidden (status %d)", e.Op, e.Status)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPermissionConflict(err error) bool {
	var perm *PermissionError
	return errors.As(err, &perm)
}
