package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means a conditional write lost: the record was
	// created or changed after the caller read it.
	ErrVersionConflict = errors.New("version conflict")
)
