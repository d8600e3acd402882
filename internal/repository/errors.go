// Package repository defines error types that are reused across the
// persistence layer. These sentinel values allow higher layers such as
// the shelter store to distinguish between different failure scenarios
// without depending on a particular SQL driver.
package repository

import "errors"

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a revision-guarded update matched no row
// because the stored revision moved on. Callers should reload the row.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert collides with an existing id.
var ErrDuplicate = errors.New("duplicate")
