package importer

import (
	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/pkg/errors"
)

// Context is what a Converter sees while lowering one logical node: the node, its position in the
// block, and read access to the run's resolution table.
type Context struct {
	Node *graph.Node

	run         *run
	first, last bool

	// prev is the last physical node emitted by the current block.
	prev      *PhysicalNode
	forwarded *PhysicalNode
}

// Model returns the graph being lowered.
func (c *Context) Model() *graph.Model {
	return c.run.model
}

// Table returns the resolution table of the run.
func (c *Context) Table() *Table {
	return c.run.table
}

// Options returns the options of the run.
func (c *Context) Options() Options {
	return c.run.opts
}

// InputPadding is the padding the running converter reads its input with: the node's own input
// padding for the first converter of the block, no padding otherwise.
func (c *Context) InputPadding() graph.Padding {
	if c.first {
		return c.Node.InputPadding
	}
	return graph.NoPadding
}

// OutputPadding is the padding the node's consumers require on its output.
func (c *Context) OutputPadding() graph.Padding {
	return c.run.padding.OutputPadding(c.Node.ID)
}

// Producer returns the physical node that currently owns the node's i-th input.
func (c *Context) Producer(i int) (*PhysicalNode, error) {
	if i < 0 || i >= len(c.Node.Inputs) {
		return nil, errors.Wrapf(ErrMissingRequirement, "node %q has %d inputs, input #%d requested", c.Node.ID, len(c.Node.Inputs), i)
	}
	p, found := c.run.table.OwnerOf(c.Node.Inputs[i])
	if !found {
		return nil, errors.Wrapf(graph.ErrNotFound, "no physical node owns input %q", c.Node.Inputs[i])
	}
	return p, nil
}

// Input returns the i-th operand of the running converter, laid out as its producer wrote it.
// Inside a block, input 0 of every converter after the first emitting one is the previous physical
// node of the block.
func (c *Context) Input(i int) (Operand, error) {
	if i == 0 && c.prev != nil {
		return Operand{Node: c.prev, Layout: c.prev.Spec.Output}, nil
	}
	p, err := c.Producer(i)
	if err != nil {
		return Operand{}, err
	}
	return Operand{Node: p, Layout: p.Spec.Output}, nil
}

// Inputs returns all operands of the node, see Input.
func (c *Context) Inputs() ([]Operand, error) {
	operands := make([]Operand, len(c.Node.Inputs))
	for i := range operands {
		var err error
		operands[i], err = c.Input(i)
		if err != nil {
			return nil, err
		}
	}
	return operands, nil
}

// OutputShape returns the node's declared output shape in canonical order, without padding.
// Nodes that don't declare one take the active shape of their first input.
func (c *Context) OutputShape() (graph.CanonicalShape, error) {
	if len(c.Node.OutputShapes) > 0 {
		return c.Node.OutputShapes[0].Canonical(0)
	}
	if len(c.Node.Inputs) > 0 {
		in, err := c.Input(0)
		if err != nil {
			return graph.CanonicalShape{}, err
		}
		return in.Layout.Shape, nil
	}
	return graph.CanonicalShape{}, errors.Wrapf(ErrMissingRequirement, "node %q declares no output shape", c.Node.ID)
}

// Output returns the layout the running converter writes: the node's output shape, with the padding
// required by the consumers if it's the last converter of the block.
func (c *Context) Output() (MemoryLayout, error) {
	shape, err := c.OutputShape()
	if err != nil {
		return MemoryLayout{}, err
	}
	layout := MemoryLayout{Shape: shape}
	if c.last {
		layout.Padding = c.OutputPadding()
	}
	return layout, nil
}

// Weight returns the weight role of the node in canonical order.
func (c *Context) Weight(role string) (graph.Array, error) {
	return c.run.model.CanonicalWeight(c.Node, role)
}

// Vector returns the weight role of the node as a vector of size elements. Scalars are broadcast.
func (c *Context) Vector(role string, size int) (graph.Array, error) {
	t, err := c.run.model.WeightTensor(c.Node, role)
	if err != nil {
		return graph.Array{}, err
	}
	if t.Shape.Rank() == 0 {
		return graph.Array{Dims: []int{size}, Data: t.Vector(size)}, nil
	}
	a, err := c.Weight(role)
	if err != nil {
		return graph.Array{}, err
	}
	if a.Size() != size {
		return graph.Array{}, errors.Errorf("weight %q of node %q has %d elements, expected %d", role, c.Node.ID, a.Size(), size)
	}
	return graph.Array{Dims: []int{size}, Data: a.Data}, nil
}

// Forward elides the node: its outputs are made to point to the physical node owning its i-th input.
// The converter should return a nil NodeSpec.
func (c *Context) Forward(i int) error {
	p, err := c.Producer(i)
	if err != nil {
		return err
	}
	c.forwarded = p
	return nil
}
