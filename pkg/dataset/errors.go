package dataset

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a named artifact does not exist in the
// store.
type NotFoundError struct {
	Name string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact %q not found at %s", e.Name, e.Path)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
