package graph

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Tensor is an immutable constant value: a flat float32 array in row-major order of Shape's dimensions,
// tagged with its native Layout.
type Tensor struct {
	ID     string
	Shape  shapes.Shape
	Layout Layout
	data   []float32
}

// Data returns the flat values. Callers must not modify the returned slice.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Array is a flat float32 array with its dimensions, typically a constant already reordered to the
// canonical physical order.
type Array struct {
	Dims []int
	Data []float32
}

// Size returns the number of elements described by Dims.
func (a Array) Size() int {
	size := 1
	for _, d := range a.Dims {
		size *= d
	}
	return size
}

// flatToFloat32 converts the supported flat slice types to a new []float32.
func flatToFloat32(flat any) ([]float32, error) {
	switch v := flat.(type) {
	case []float32:
		return slices.Clone(v), nil
	case []float64:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out, nil
	case []float16.Float16:
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = x.Float32()
		}
		return out, nil
	case float32:
		return []float32{v}, nil
	case float64:
		return []float32{float32(v)}, nil
	}
	return nil, errors.Errorf("unsupported flat data type %T, expected []float32, []float64 or []float16.Float16", flat)
}

func newTensor(id string, flat any, layout Layout, dims []int) (*Tensor, error) {
	data, err := flatToFloat32(flat)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", id)
	}
	if rank := layout.Rank(); rank < 0 || rank != len(dims) {
		return nil, errors.Wrapf(ErrUnsupportedLayout, "tensor %q: layout %s with dimensions %v", id, layout, dims)
	}
	for _, d := range dims {
		if d <= 0 {
			return nil, errors.Wrapf(ErrUnsupportedLayout, "tensor %q: dimensions %v must be positive", id, dims)
		}
	}
	shape := shapes.Make(dtypes.Float32, dims...)
	if shape.Size() != len(data) {
		return nil, errors.Errorf("tensor %q: shape %s has size %d, but flat data has length %d",
			id, shape, shape.Size(), len(data))
	}
	return &Tensor{ID: id, Shape: shape, Layout: layout, data: data}, nil
}

// Canonical returns the tensor reordered into the physical order:
//
//   - filter_channel_row_column [F,C,R,K] and channel_row_column_filter [C,R,K,F] become [F,R,K,C].
//   - row_column [in,out] becomes [out,in].
//   - channel_row_column [C,R,K] becomes [R,K,C].
//   - row_column_channel, channel and scalar are already in order.
func (t *Tensor) Canonical() (Array, error) {
	return t.canonicalAs(t.Layout)
}

func (t *Tensor) canonicalAs(layout Layout) (Array, error) {
	dims := t.Shape.Dimensions
	if layout.Rank() != len(dims) {
		return Array{}, errors.Wrapf(ErrUnsupportedLayout, "tensor %q with dimensions %v read as %s", t.ID, dims, layout)
	}
	switch layout {
	case LayoutFilterChannelRowColumn:
		return transpose(t.data, dims, []int{0, 2, 3, 1}), nil
	case LayoutChannelRowColumnFilter:
		return transpose(t.data, dims, []int{3, 1, 2, 0}), nil
	case LayoutRowColumn:
		return transpose(t.data, dims, []int{1, 0}), nil
	case LayoutChannelRowColumn:
		return transpose(t.data, dims, []int{1, 2, 0}), nil
	case LayoutRowColumnChannel, LayoutChannel, LayoutScalar:
		return Array{Dims: slices.Clone(dims), Data: slices.Clone(t.data)}, nil
	}
	return Array{}, errors.Wrapf(ErrUnsupportedLayout, "tensor %q has layout %s", t.ID, layout)
}

// Vector returns the tensor as a flat vector. A scalar is broadcast to size elements, anything else is
// flattened and size is ignored.
func (t *Tensor) Vector(size int) []float32 {
	if t.Shape.Rank() == 0 {
		out := make([]float32, size)
		for i := range out {
			out[i] = t.data[0]
		}
		return out
	}
	return slices.Clone(t.data)
}

// transpose permutes the axes of a row-major array: output axis i is input axis perm[i].
func transpose(data []float32, dims, perm []int) Array {
	rank := len(dims)
	outDims := make([]int, rank)
	for i, p := range perm {
		outDims[i] = dims[p]
	}
	inStrides := make([]int, rank)
	stride := 1
	for i := rank - 1; i >= 0; i-- {
		inStrides[i] = stride
		stride *= dims[i]
	}
	out := make([]float32, len(data))
	index := make([]int, rank)
	for flat := range out {
		src := 0
		for i := 0; i < rank; i++ {
			src += index[i] * inStrides[perm[i]]
		}
		out[flat] = data[src]
		for i := rank - 1; i >= 0; i-- {
			index[i]++
			if index[i] < outDims[i] {
				break
			}
			index[i] = 0
		}
	}
	return Array{Dims: outDims, Data: out}
}
