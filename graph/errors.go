package graph

import "github.com/pkg/errors"

var (
	// ErrDuplicateID is returned when a tensor id, node id or node output id is added twice.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound is returned when a tensor or node lookup fails.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedLayout is returned when a layout tag can't be converted to the canonical order.
	ErrUnsupportedLayout = errors.New("unsupported layout")
)
