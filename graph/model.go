package graph

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// WeightRef points a node's weight role (e.g. "weights", "bias", "mean") to a tensor of the store.
type WeightRef struct {
	TensorID string
	Layout   Layout
}

// Node is a logical operation of the intermediate representation.
//
// Inputs and Outputs are edge names: an output id is produced by exactly one node of the Model, and it
// is referenced by id in the Inputs of its consumers.
type Node struct {
	ID      string
	Kind    OpKind
	Inputs  []string
	Outputs []string

	// Weights maps a role name to a constant of the tensor store.
	Weights map[string]WeightRef

	// Attributes holds operation specific parameters: ints, floats or string tags.
	Attributes map[string]any

	// InputPadding is the padding this node expects on its input buffer, as authored by the parser.
	// The padding a node must produce on its own output is not authored: the importer computes it.
	InputPadding Padding

	InputShapes  []ShapeEntry
	OutputShapes []ShapeEntry
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("%s(%s): [%s] -> [%s]", n.Kind, n.ID, strings.Join(n.Inputs, ", "), strings.Join(n.Outputs, ", "))
}

// HasWeight reports whether the node declares the weight role.
func (n *Node) HasWeight(role string) bool {
	_, ok := n.Weights[role]
	return ok
}

// HasAttribute reports whether the node declares the attribute.
func (n *Node) HasAttribute(name string) bool {
	_, ok := n.Attributes[name]
	return ok
}

// IntAttr returns an integer attribute. Integral float values are accepted, since decoders often
// produce float64 for every number.
func (n *Node) IntAttr(name string) (int, error) {
	v, ok := n.Attributes[name]
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "node %q has no attribute %q", n.ID, name)
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x == float64(int(x)) {
			return int(x), nil
		}
	case float32:
		if x == float32(int(x)) {
			return int(x), nil
		}
	}
	return 0, errors.Errorf("node %q attribute %q is %T(%v), not an integer", n.ID, name, v, v)
}

// FloatAttr returns a numeric attribute as float32.
func (n *Node) FloatAttr(name string) (float32, error) {
	v, ok := n.Attributes[name]
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "node %q has no attribute %q", n.ID, name)
	}
	switch x := v.(type) {
	case float32:
		return x, nil
	case float64:
		return float32(x), nil
	case int:
		return float32(x), nil
	case int64:
		return float32(x), nil
	}
	return 0, errors.Errorf("node %q attribute %q is %T(%v), not a number", n.ID, name, v, v)
}

// StringAttr returns a string attribute (used for enumerated tags such as the activation type).
func (n *Node) StringAttr(name string) (string, error) {
	v, ok := n.Attributes[name]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "node %q has no attribute %q", n.ID, name)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return "", errors.Errorf("node %q attribute %q is %T(%v), not a string", n.ID, name, v, v)
}

// Model is the graph: nodes in insertion order plus the tensor store.
//
// Nodes and tensors can only be added. A Model is not safe for concurrent modification, but once
// built it can be read concurrently.
type Model struct {
	nodes     []*Node
	nodeByID  map[string]*Node
	producers map[string]*Node
	consumers map[string][]*Node
	tensors   map[string]*Tensor
}

// NewModel creates an empty Model.
func NewModel() *Model {
	return &Model{
		nodeByID:  make(map[string]*Node),
		producers: make(map[string]*Node),
		consumers: make(map[string][]*Node),
		tensors:   make(map[string]*Tensor),
	}
}

// AddTensor adds a constant to the tensor store. flat can be []float32, []float64, []float16.Float16 or
// a single float for scalars; its length must match dims, and len(dims) must match the layout's rank.
func (m *Model) AddTensor(id string, flat any, layout Layout, dims ...int) error {
	if _, found := m.tensors[id]; found {
		return errors.Wrapf(ErrDuplicateID, "tensor %q", id)
	}
	t, err := newTensor(id, flat, layout, dims)
	if err != nil {
		return err
	}
	m.tensors[id] = t
	return nil
}

// Tensor returns the constant with the given id.
func (m *Model) Tensor(id string) (*Tensor, error) {
	t, found := m.tensors[id]
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "tensor %q", id)
	}
	return t, nil
}

// NumTensors returns the number of constants in the store.
func (m *Model) NumTensors() int {
	return len(m.tensors)
}

// AddNode adds a node. It fails if the node id, or one of its output ids, was already added.
func (m *Model) AddNode(node *Node) error {
	if node == nil || node.ID == "" {
		return errors.New("AddNode requires a node with a non-empty id")
	}
	if _, found := m.nodeByID[node.ID]; found {
		return errors.Wrapf(ErrDuplicateID, "node %q", node.ID)
	}
	if node.InputPadding.Size < 0 {
		return errors.Errorf("node %q has negative input padding %d", node.ID, node.InputPadding.Size)
	}
	for _, out := range node.Outputs {
		if other, found := m.producers[out]; found {
			return errors.Wrapf(ErrDuplicateID, "output %q of node %q is already produced by node %q", out, node.ID, other.ID)
		}
	}
	m.nodes = append(m.nodes, node)
	m.nodeByID[node.ID] = node
	for _, out := range node.Outputs {
		m.producers[out] = node
	}
	for _, in := range node.Inputs {
		m.consumers[in] = append(m.consumers[in], node)
	}
	return nil
}

// Node returns the node with the given id.
func (m *Model) Node(id string) (*Node, error) {
	n, found := m.nodeByID[id]
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "node %q", id)
	}
	return n, nil
}

// Nodes returns all nodes in insertion order. Callers must not modify the returned slice.
func (m *Model) Nodes() []*Node {
	return m.nodes
}

// Producer returns the node that lists outputID among its outputs, or nil.
func (m *Model) Producer(outputID string) *Node {
	return m.producers[outputID]
}

// Consumers returns the nodes that list outputID among their inputs, in insertion order.
// A node listing the same input twice appears twice.
func (m *Model) Consumers(outputID string) []*Node {
	return m.consumers[outputID]
}

// WeightTensor resolves a node's weight role to its tensor.
func (m *Model) WeightTensor(node *Node, role string) (*Tensor, error) {
	ref, ok := node.Weights[role]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "node %q has no weight %q", node.ID, role)
	}
	t, err := m.Tensor(ref.TensorID)
	if err != nil {
		return nil, errors.WithMessagef(err, "weight %q of node %q", role, node.ID)
	}
	return t, nil
}

// CanonicalWeight resolves a node's weight role and reorders it into the canonical physical order.
// The layout declared by the node's WeightRef wins over the tensor's own tag when it is set.
func (m *Model) CanonicalWeight(node *Node, role string) (Array, error) {
	t, err := m.WeightTensor(node, role)
	if err != nil {
		return Array{}, err
	}
	layout := t.Layout
	if ref := node.Weights[role]; ref.Layout != LayoutInvalid {
		layout = ref.Layout
	}
	a, err := t.canonicalAs(layout)
	if err != nil {
		return Array{}, errors.WithMessagef(err, "weight %q of node %q", role, node.ID)
	}
	return a, nil
}

// CanonicalTensor returns the tensor with the given id reordered into the canonical physical order.
func (m *Model) CanonicalTensor(id string) (Array, error) {
	t, err := m.Tensor(id)
	if err != nil {
		return Array{}, err
	}
	return t.Canonical()
}
