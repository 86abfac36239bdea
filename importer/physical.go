package importer

import (
	"fmt"
	"strings"

	"github.com/gomlx/go-coreml-importer/graph"
)

// PhysicalKind is the kind of primitive a physical node describes.
type PhysicalKind int

const (
	PhysicalInvalid PhysicalKind = iota
	PhysicalInput
	PhysicalConstant
	PhysicalReorder
	PhysicalConvolution
	PhysicalBinaryConvolution
	PhysicalFullyConnected
	PhysicalBias
	PhysicalScaling
	PhysicalBatchNormalization
	PhysicalActivation
	PhysicalPooling
	PhysicalSoftmax
	PhysicalBinaryOperation
	PhysicalUnaryOperation
	PhysicalConcatenation
	PhysicalReshape
)

var physicalKindNames = []string{
	"Invalid",
	"Input",
	"Constant",
	"Reorder",
	"Convolution",
	"BinaryConvolution",
	"FullyConnected",
	"Bias",
	"Scaling",
	"BatchNormalization",
	"Activation",
	"Pooling",
	"Softmax",
	"BinaryOperation",
	"UnaryOperation",
	"Concatenation",
	"Reshape",
}

// String implements fmt.Stringer.
func (k PhysicalKind) String() string {
	if k >= 0 && int(k) < len(physicalKindNames) {
		return physicalKindNames[k]
	}
	return fmt.Sprintf("PhysicalKind(%d)", int(k))
}

// Attribute keys used in NodeSpec.Attributes.
const (
	AttrName        = "name"         // string: Input
	AttrSize        = "size"         // int: kernel size of convolutions and pooling
	AttrStride      = "stride"       // int: convolutions and pooling
	AttrActivation  = "activation"   // ActivationType
	AttrAlpha       = "alpha"        // float32: leaky ReLU slope
	AttrPoolingType = "pooling_type" // PoolingType
	AttrOperation   = "operation"    // BinaryOp or UnaryOp
	AttrEpsilon     = "epsilon"      // float32: BatchNormalization
	AttrAxis        = "axis"         // string: Concatenation, always "channel"
)

// Constant keys used in NodeSpec.Constants.
const (
	ConstWeights  = "weights"
	ConstBias     = "bias"
	ConstScale    = "scale"
	ConstMean     = "mean"
	ConstVariance = "variance"
	ConstAlpha    = "alpha"
	ConstValue    = "value"
)

// ActivationType selects the function of an Activation physical node.
type ActivationType string

const (
	ActivationReLU        ActivationType = "relu"
	ActivationLeakyReLU   ActivationType = "leaky_relu"
	ActivationPReLU       ActivationType = "prelu"
	ActivationSigmoid     ActivationType = "sigmoid"
	ActivationTanh        ActivationType = "tanh"
	ActivationHardSigmoid ActivationType = "hard_sigmoid"
)

// ParseActivationType accepts the activation tags used by the source formats: "relu", "leaky" or
// "leaky_relu", "prelu", "sigmoid", "tanh", "hard_sigmoid" or "hardSigmoid". Matching is case-insensitive.
func ParseActivationType(tag string) (ActivationType, bool) {
	switch strings.ToLower(tag) {
	case "relu":
		return ActivationReLU, true
	case "leaky", "leaky_relu", "leakyrelu":
		return ActivationLeakyReLU, true
	case "prelu", "parametric_relu":
		return ActivationPReLU, true
	case "sigmoid":
		return ActivationSigmoid, true
	case "tanh":
		return ActivationTanh, true
	case "hard_sigmoid", "hardsigmoid":
		return ActivationHardSigmoid, true
	}
	return "", false
}

// PoolingType selects the reduction of a Pooling physical node.
type PoolingType string

const (
	PoolingMax  PoolingType = "max"
	PoolingMean PoolingType = "mean"
)

// BinaryOp is the operation of a BinaryOperation physical node.
type BinaryOp string

const (
	BinaryAdd      BinaryOp = "add"
	BinarySubtract BinaryOp = "subtract"
	BinaryMultiply BinaryOp = "multiply"
)

// UnaryOp is the operation of a UnaryOperation physical node.
type UnaryOp string

const (
	UnaryAbs    UnaryOp = "abs"
	UnaryExp    UnaryOp = "exp"
	UnaryLog    UnaryOp = "log"
	UnarySqrt   UnaryOp = "sqrt"
	UnarySign   UnaryOp = "sign"
	UnarySin    UnaryOp = "sin"
	UnaryCos    UnaryOp = "cos"
	UnarySquare UnaryOp = "square"
)

// MemoryLayout describes a buffer: the active shape in (rows, columns, channels) order, surrounded by
// Padding.Size rows and columns on each side, filled according to Padding.Scheme.
type MemoryLayout struct {
	Shape   graph.CanonicalShape
	Padding graph.Padding
}

// Allocated returns the shape of the buffer including its padding.
func (l MemoryLayout) Allocated() graph.CanonicalShape {
	return l.Shape.Pad(l.Padding.Size)
}

// String implements fmt.Stringer.
func (l MemoryLayout) String() string {
	if l.Padding.Size == 0 {
		return l.Shape.String()
	}
	return fmt.Sprintf("%s padded %s", l.Shape, l.Padding)
}

// Operand is one input of a physical node: the physical node producing it, and the layout the consumer
// reads it with.
type Operand struct {
	Node   *PhysicalNode
	Layout MemoryLayout
}

// NodeSpec describes a physical primitive. Constants are already in the canonical physical order.
type NodeSpec struct {
	Kind       PhysicalKind
	Operands   []Operand
	Output     MemoryLayout
	Attributes map[string]any
	Constants  map[string]graph.Array
}

// Port is the builder specific handle of an added physical node's output.
type Port any

// PhysicalNode is a node of the lowered plan.
type PhysicalNode struct {
	// ID is assigned in plan order, starting at 1.
	ID int

	// GroupID is the id of the logical node this physical node was converted from.
	GroupID string

	// Converter is the name of the block element that produced it.
	Converter string

	Spec *NodeSpec

	// Port is set once the node was added to the Builder.
	Port Port
}

// Kind returns the physical kind of the node.
func (p *PhysicalNode) Kind() PhysicalKind {
	return p.Spec.Kind
}

// String implements fmt.Stringer.
func (p *PhysicalNode) String() string {
	return fmt.Sprintf("%s(%d)", p.Spec.Kind, p.ID)
}

// IntAttr returns an integer attribute of the node spec, or 0.
func (s *NodeSpec) IntAttr(name string) int {
	v, _ := s.Attributes[name].(int)
	return v
}

// FloatAttr returns a float32 attribute of the node spec, or 0.
func (s *NodeSpec) FloatAttr(name string) float32 {
	v, _ := s.Attributes[name].(float32)
	return v
}

// Output is a declared output of the physical graph.
type Output struct {
	// Name is the logical output id.
	Name string
	Node *PhysicalNode
}

// Builder is the target graph construction API.
//
// The engine calls AddNode exactly once per physical node, in plan order: every operand of a node was
// added (and had its Port set) before the node itself. Finish is called last, once.
type Builder interface {
	AddNode(node *PhysicalNode) (Port, error)
	Finish(inputs []*PhysicalNode, outputs []Output) error
}
