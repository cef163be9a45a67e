package queue

import "errors"

var (
	// ErrNotFound is returned when a queue item does not exist.
	ErrNotFound = errors.New("queue item not found")
	// ErrCouldNotSave is returned when a queue item cannot be persisted.
	ErrCouldNotSave = errors.New("could not save queue item")
	// ErrCouldNotDelete is returned when a queue item cannot be deleted.
	ErrCouldNotDelete = errors.New("could not delete queue item")
)
