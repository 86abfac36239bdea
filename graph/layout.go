package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

// Layout tags the native element ordering of a tensor or of a declared shape.
type Layout int

const (
	LayoutInvalid Layout = iota
	LayoutScalar
	LayoutChannel
	LayoutRowColumn
	LayoutChannelRowColumn
	LayoutRowColumnChannel
	LayoutFilterChannelRowColumn
	LayoutChannelRowColumnFilter
)

var layoutNames = map[Layout]string{
	LayoutScalar:                 "scalar",
	LayoutChannel:                "channel",
	LayoutRowColumn:              "row_column",
	LayoutChannelRowColumn:       "channel_row_column",
	LayoutRowColumnChannel:       "row_column_channel",
	LayoutFilterChannelRowColumn: "filter_channel_row_column",
	LayoutChannelRowColumnFilter: "channel_row_column_filter",
}

// String implements fmt.Stringer.
func (l Layout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// ParseLayout converts the textual tag (e.g. "channel_row_column") to a Layout.
func ParseLayout(name string) (Layout, error) {
	for l, n := range layoutNames {
		if n == name {
			return l, nil
		}
	}
	return LayoutInvalid, errors.Wrapf(ErrUnsupportedLayout, "unknown layout tag %q", name)
}

// Rank returns the number of dimensions a tensor with this layout must have, or -1 if invalid.
func (l Layout) Rank() int {
	switch l {
	case LayoutScalar:
		return 0
	case LayoutChannel:
		return 1
	case LayoutRowColumn:
		return 2
	case LayoutChannelRowColumn, LayoutRowColumnChannel:
		return 3
	case LayoutFilterChannelRowColumn, LayoutChannelRowColumnFilter:
		return 4
	}
	return -1
}

// CanonicalShape is a shape in the physical order: rows, columns, channels.
type CanonicalShape struct {
	Rows, Columns, Channels int
}

// Size returns the number of elements.
func (s CanonicalShape) Size() int {
	return s.Rows * s.Columns * s.Channels
}

// Pad returns the shape with 2*size added to rows and columns.
func (s CanonicalShape) Pad(size int) CanonicalShape {
	return CanonicalShape{Rows: s.Rows + 2*size, Columns: s.Columns + 2*size, Channels: s.Channels}
}

// String implements fmt.Stringer.
func (s CanonicalShape) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Rows, s.Columns, s.Channels)
}

// ShapeEntry is a declared input or output shape, in the layout given by Layout.
type ShapeEntry struct {
	Dims   []int
	Layout Layout
}

// String implements fmt.Stringer.
func (e ShapeEntry) String() string {
	return fmt.Sprintf("%v %s", e.Dims, e.Layout)
}

// Canonical returns the active shape in physical order, with 2*padding added to rows and columns.
func (e ShapeEntry) Canonical(padding int) (CanonicalShape, error) {
	var s CanonicalShape
	switch e.Layout {
	case LayoutChannelRowColumn:
		if len(e.Dims) != 3 {
			return s, errors.Wrapf(ErrUnsupportedLayout, "shape %v is not rank 3 for layout %s", e.Dims, e.Layout)
		}
		s = CanonicalShape{Rows: e.Dims[1], Columns: e.Dims[2], Channels: e.Dims[0]}
	case LayoutRowColumnChannel:
		if len(e.Dims) != 3 {
			return s, errors.Wrapf(ErrUnsupportedLayout, "shape %v is not rank 3 for layout %s", e.Dims, e.Layout)
		}
		s = CanonicalShape{Rows: e.Dims[0], Columns: e.Dims[1], Channels: e.Dims[2]}
	case LayoutChannel:
		if len(e.Dims) != 1 {
			return s, errors.Wrapf(ErrUnsupportedLayout, "shape %v is not rank 1 for layout %s", e.Dims, e.Layout)
		}
		s = CanonicalShape{Rows: 1, Columns: 1, Channels: e.Dims[0]}
	default:
		return s, errors.Wrapf(ErrUnsupportedLayout, "shape layout %s", e.Layout)
	}
	if s.Rows <= 0 || s.Columns <= 0 || s.Channels <= 0 {
		return CanonicalShape{}, errors.Wrapf(ErrUnsupportedLayout, "shape %v has non-positive dimensions", e.Dims)
	}
	if padding < 0 {
		return CanonicalShape{}, errors.Errorf("negative padding %d", padding)
	}
	return s.Pad(padding), nil
}
