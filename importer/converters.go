package importer

import (
	"strings"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/pkg/errors"
)

// Input buffers arrive unpadded: when consumers need pre-padding, the block adds an output reorder.
var inputConverter = Converter{
	Name: "Input",
	Convert: func(c *Context) (*NodeSpec, error) {
		shapes := c.Node.OutputShapes
		if len(shapes) == 0 {
			shapes = c.Node.InputShapes
		}
		if len(shapes) == 0 {
			return nil, errors.Wrapf(ErrMissingRequirement, "input %q declares no shape", c.Node.ID)
		}
		shape, err := shapes[0].Canonical(0)
		if err != nil {
			return nil, err
		}
		return &NodeSpec{
			Kind:       PhysicalInput,
			Output:     MemoryLayout{Shape: shape},
			Attributes: map[string]any{AttrName: c.Node.ID},
		}, nil
	},
}

var outputReorderConverter = Converter{
	Name:     "OptionalOutputReorder",
	Optional: true,
	Adapter:  true,
	When: func(c *Context) bool {
		return c.OutputPadding().Size > 0
	},
	Convert: func(c *Context) (*NodeSpec, error) {
		in, err := c.Input(0)
		if err != nil {
			return nil, err
		}
		return &NodeSpec{
			Kind:     PhysicalReorder,
			Operands: []Operand{in},
			Output:   MemoryLayout{Shape: in.Layout.Shape, Padding: c.OutputPadding()},
		}, nil
	},
}

// inputReorderConverter re-pads the input when its producer wrote it with a padding other than the one
// this node reads with, which happens when the producer fans out to consumers with different needs.
var inputReorderConverter = Converter{
	Name:     "OptionalInputReorder",
	Optional: true,
	Adapter:  true,
	When: func(c *Context) bool {
		p, err := c.Producer(0)
		return err == nil && p.Spec.Output.Padding != c.Node.InputPadding
	},
	Convert: func(c *Context) (*NodeSpec, error) {
		in, err := c.Input(0)
		if err != nil {
			return nil, err
		}
		return &NodeSpec{
			Kind:     PhysicalReorder,
			Operands: []Operand{in},
			Output:   MemoryLayout{Shape: in.Layout.Shape, Padding: c.Node.InputPadding},
		}, nil
	},
}

var constantConverter = Converter{
	Name:    "Constant",
	Weights: []string{ConstValue},
	Convert: func(c *Context) (*NodeSpec, error) {
		value, err := c.Weight(ConstValue)
		if err != nil {
			return nil, err
		}
		var out MemoryLayout
		if len(c.Node.OutputShapes) > 0 {
			if out, err = c.Output(); err != nil {
				return nil, err
			}
		} else {
			out = MemoryLayout{Shape: arrayShape(value), Padding: c.OutputPadding()}
		}
		if out.Shape.Size() != value.Size() {
			return nil, errors.Errorf("constant has %d elements, but the output shape %s has %d", value.Size(), out.Shape, out.Shape.Size())
		}
		return &NodeSpec{
			Kind:      PhysicalConstant,
			Output:    out,
			Constants: map[string]graph.Array{ConstValue: value},
		}, nil
	},
}

// arrayShape interprets a canonical array as (rows, columns, channels), with missing leading axes as 1.
func arrayShape(a graph.Array) graph.CanonicalShape {
	s := graph.CanonicalShape{Rows: 1, Columns: 1, Channels: 1}
	switch len(a.Dims) {
	case 1:
		s.Channels = a.Dims[0]
	case 2:
		s.Columns, s.Channels = a.Dims[0], a.Dims[1]
	case 3:
		s.Rows, s.Columns, s.Channels = a.Dims[0], a.Dims[1], a.Dims[2]
	default:
		if len(a.Dims) > 3 {
			s.Channels = a.Size()
		}
	}
	return s
}

func convolutionConverter(kind graph.OpKind) Converter {
	physical := PhysicalConvolution
	if kind == graph.OpBinaryConvolution {
		physical = PhysicalBinaryConvolution
	}
	return Converter{
		Name:       kind.String(),
		Weights:    []string{ConstWeights},
		Attributes: []string{AttrSize, AttrStride},
		Convert: func(c *Context) (*NodeSpec, error) {
			in, err := c.Input(0)
			if err != nil {
				return nil, err
			}
			in.Layout.Padding = c.InputPadding()
			size, err := c.Node.IntAttr(AttrSize)
			if err != nil {
				return nil, err
			}
			stride, err := c.Node.IntAttr(AttrStride)
			if err != nil {
				return nil, err
			}
			if size <= 0 || stride <= 0 {
				return nil, errors.Wrapf(ErrMissingRequirement, "invalid size %d or stride %d", size, stride)
			}
			weights, err := c.Weight(ConstWeights)
			if err != nil {
				return nil, err
			}
			if len(weights.Dims) != 4 {
				return nil, errors.Wrapf(graph.ErrUnsupportedLayout, "convolution weights must be rank 4, got dimensions %v", weights.Dims)
			}
			out, err := c.Output()
			if err != nil {
				return nil, err
			}
			if filters := weights.Dims[0]; filters != out.Shape.Channels {
				return nil, errors.Errorf("weights have %d filters, but the output shape %s has %d channels", filters, out.Shape, out.Shape.Channels)
			}
			return &NodeSpec{
				Kind:       physical,
				Operands:   []Operand{in},
				Output:     out,
				Attributes: map[string]any{AttrSize: size, AttrStride: stride},
				Constants:  map[string]graph.Array{ConstWeights: weights},
			}, nil
		},
	}
}

var fullyConnectedConverter = Converter{
	Name:    "FullyConnected",
	Weights: []string{ConstWeights},
	Convert: func(c *Context) (*NodeSpec, error) {
		in, err := c.Input(0)
		if err != nil {
			return nil, err
		}
		in.Layout.Padding = c.InputPadding()
		weights, err := c.Weight(ConstWeights)
		if err != nil {
			return nil, err
		}
		out, err := c.Output()
		if err != nil {
			return nil, err
		}
		rows, columns := out.Shape.Size(), in.Layout.Shape.Size()
		if weights.Size() != rows*columns {
			return nil, errors.Errorf("weights have %d elements, expected %d outputs x %d inputs", weights.Size(), rows, columns)
		}
		weights.Dims = []int{rows, columns}
		return &NodeSpec{
			Kind:      PhysicalFullyConnected,
			Operands:  []Operand{in},
			Output:    out,
			Constants: map[string]graph.Array{ConstWeights: weights},
		}, nil
	},
}

// vectorSpec builds a per channel node: Bias, Scaling and similar.
func vectorSpec(c *Context, kind PhysicalKind, role, constant string, negate bool) (*NodeSpec, error) {
	in, err := c.Input(0)
	if err != nil {
		return nil, err
	}
	out, err := c.Output()
	if err != nil {
		return nil, err
	}
	vector, err := c.Vector(role, out.Shape.Channels)
	if err != nil {
		return nil, err
	}
	if negate {
		for i, v := range vector.Data {
			vector.Data[i] = -v
		}
	}
	return &NodeSpec{
		Kind:      kind,
		Operands:  []Operand{in},
		Output:    out,
		Constants: map[string]graph.Array{constant: vector},
	}, nil
}

var biasConverter = Converter{
	Name:    "Bias",
	Weights: []string{ConstBias},
	Convert: func(c *Context) (*NodeSpec, error) {
		return vectorSpec(c, PhysicalBias, ConstBias, ConstBias, false)
	},
}

var scalingConverter = Converter{
	Name:    "Scaling",
	Weights: []string{ConstScale},
	Convert: func(c *Context) (*NodeSpec, error) {
		return vectorSpec(c, PhysicalScaling, ConstScale, ConstScale, false)
	},
}

// minusConverter subtracts a per channel constant, as a bias with negated values.
var minusConverter = Converter{
	Name:    "Minus",
	Weights: []string{ConstBias},
	Convert: func(c *Context) (*NodeSpec, error) {
		return vectorSpec(c, PhysicalBias, ConstBias, ConstBias, true)
	},
}

var batchNormalizationConverter = Converter{
	Name:    "BatchNormalization",
	Weights: []string{ConstMean, ConstVariance},
	Convert: func(c *Context) (*NodeSpec, error) {
		spec, err := vectorSpec(c, PhysicalBatchNormalization, ConstMean, ConstMean, false)
		if err != nil {
			return nil, err
		}
		variance, err := c.Vector(ConstVariance, spec.Output.Shape.Channels)
		if err != nil {
			return nil, err
		}
		spec.Constants[ConstVariance] = variance
		spec.Attributes = map[string]any{AttrEpsilon: c.Options().BatchNormEpsilon}
		return spec, nil
	},
}

func activationSpec(c *Context, activation ActivationType) (*NodeSpec, error) {
	in, err := c.Input(0)
	if err != nil {
		return nil, err
	}
	out, err := c.Output()
	if err != nil {
		return nil, err
	}
	spec := &NodeSpec{
		Kind:       PhysicalActivation,
		Operands:   []Operand{in},
		Output:     out,
		Attributes: map[string]any{AttrActivation: activation},
	}
	switch activation {
	case ActivationLeakyReLU:
		alpha := c.Options().LeakyReLUAlpha
		if c.Node.HasAttribute(AttrAlpha) {
			if alpha, err = c.Node.FloatAttr(AttrAlpha); err != nil {
				return nil, err
			}
		}
		spec.Attributes[AttrAlpha] = alpha
	case ActivationPReLU:
		if !c.Node.HasWeight(ConstAlpha) {
			return nil, errors.Wrapf(ErrMissingRequirement, "prelu activation requires weight %q", ConstAlpha)
		}
		alpha, err := c.Vector(ConstAlpha, out.Shape.Channels)
		if err != nil {
			return nil, err
		}
		spec.Constants = map[string]graph.Array{ConstAlpha: alpha}
	}
	return spec, nil
}

var activationConverter = Converter{
	Name:       "Activation",
	Attributes: []string{AttrActivation},
	Convert: func(c *Context) (*NodeSpec, error) {
		tag, err := c.Node.StringAttr(AttrActivation)
		if err != nil {
			return nil, err
		}
		activation, ok := ParseActivationType(tag)
		if !ok {
			return nil, errors.Wrapf(ErrMissingRequirement, "unknown activation %q", tag)
		}
		return activationSpec(c, activation)
	},
}

func fixedActivationConverter(activation ActivationType) Converter {
	return Converter{
		Name: "Activation",
		Convert: func(c *Context) (*NodeSpec, error) {
			return activationSpec(c, activation)
		},
	}
}

var preluConverter = Converter{
	Name:    "PReLU",
	Weights: []string{ConstAlpha},
	Convert: func(c *Context) (*NodeSpec, error) {
		return activationSpec(c, ActivationPReLU)
	},
}

var softmaxConverter = Converter{
	Name: "Softmax",
	Convert: func(c *Context) (*NodeSpec, error) {
		in, err := c.Input(0)
		if err != nil {
			return nil, err
		}
		out, err := c.Output()
		if err != nil {
			return nil, err
		}
		return &NodeSpec{Kind: PhysicalSoftmax, Operands: []Operand{in}, Output: out}, nil
	},
}

// ParsePoolingType accepts "max", "mean", "average" and "avg".
func ParsePoolingType(tag string) (PoolingType, bool) {
	switch strings.ToLower(tag) {
	case "max":
		return PoolingMax, true
	case "mean", "average", "avg":
		return PoolingMean, true
	}
	return "", false
}

func poolingSpec(c *Context, pooling PoolingType) (*NodeSpec, error) {
	in, err := c.Input(0)
	if err != nil {
		return nil, err
	}
	in.Layout.Padding = c.InputPadding()
	size, err := c.Node.IntAttr(AttrSize)
	if err != nil {
		return nil, err
	}
	stride, err := c.Node.IntAttr(AttrStride)
	if err != nil {
		return nil, err
	}
	if size <= 0 || stride <= 0 {
		return nil, errors.Wrapf(ErrMissingRequirement, "invalid size %d or stride %d", size, stride)
	}
	out, err := c.Output()
	if err != nil {
		return nil, err
	}
	return &NodeSpec{
		Kind:       PhysicalPooling,
		Operands:   []Operand{in},
		Output:     out,
		Attributes: map[string]any{AttrPoolingType: pooling, AttrSize: size, AttrStride: stride},
	}, nil
}

var poolingConverter = Converter{
	Name:       "Pooling",
	Attributes: []string{AttrSize, AttrStride, AttrPoolingType},
	Convert: func(c *Context) (*NodeSpec, error) {
		tag, err := c.Node.StringAttr(AttrPoolingType)
		if err != nil {
			return nil, err
		}
		pooling, ok := ParsePoolingType(tag)
		if !ok {
			return nil, errors.Wrapf(ErrMissingRequirement, "unknown pooling type %q", tag)
		}
		return poolingSpec(c, pooling)
	},
}

func fixedPoolingConverter(pooling PoolingType) Converter {
	return Converter{
		Name:       "Pooling",
		Attributes: []string{AttrSize, AttrStride},
		Convert: func(c *Context) (*NodeSpec, error) {
			return poolingSpec(c, pooling)
		},
	}
}

// binaryConverter combines two inputs element-wise. Each operand keeps its own layout, since the two
// producers may have been padded differently.
func binaryConverter(op BinaryOp) Converter {
	return Converter{
		Name: "BinaryOperation",
		Convert: func(c *Context) (*NodeSpec, error) {
			if len(c.Node.Inputs) != 2 {
				return nil, errors.Wrapf(ErrMissingRequirement, "%s requires 2 inputs, got %d", op, len(c.Node.Inputs))
			}
			operands, err := c.Inputs()
			if err != nil {
				return nil, err
			}
			if operands[0].Layout.Shape != operands[1].Layout.Shape {
				return nil, errors.Errorf("%s of shapes %s and %s", op, operands[0].Layout.Shape, operands[1].Layout.Shape)
			}
			out, err := c.Output()
			if err != nil {
				return nil, err
			}
			return &NodeSpec{
				Kind:       PhysicalBinaryOperation,
				Operands:   operands,
				Output:     out,
				Attributes: map[string]any{AttrOperation: op},
			}, nil
		},
	}
}

var unaryOps = map[graph.OpKind]UnaryOp{
	graph.OpAbs:    UnaryAbs,
	graph.OpExp:    UnaryExp,
	graph.OpLog:    UnaryLog,
	graph.OpSqrt:   UnarySqrt,
	graph.OpSign:   UnarySign,
	graph.OpSin:    UnarySin,
	graph.OpCos:    UnaryCos,
	graph.OpSquare: UnarySquare,
}

func unaryConverter(op UnaryOp) Converter {
	return Converter{
		Name: "UnaryOperation",
		Convert: func(c *Context) (*NodeSpec, error) {
			in, err := c.Input(0)
			if err != nil {
				return nil, err
			}
			out, err := c.Output()
			if err != nil {
				return nil, err
			}
			return &NodeSpec{
				Kind:       PhysicalUnaryOperation,
				Operands:   []Operand{in},
				Output:     out,
				Attributes: map[string]any{AttrOperation: op},
			}, nil
		},
	}
}

const attrDimensionToStack = "dimension_to_stack"

// spliceConverter concatenates its inputs along the channel axis. A splice of a single input is
// elided.
var spliceConverter = Converter{
	Name: "Splice",
	Convert: func(c *Context) (*NodeSpec, error) {
		switch len(c.Node.Inputs) {
		case 0:
			return nil, errors.Wrap(ErrMissingRequirement, "splice without inputs")
		case 1:
			return nil, c.Forward(0)
		}
		dimension, err := c.Node.StringAttr(attrDimensionToStack)
		if err != nil {
			return nil, errors.Wrapf(ErrMissingRequirement, "splice of %d inputs requires attribute %q", len(c.Node.Inputs), attrDimensionToStack)
		}
		if dimension != "channel" {
			return nil, errors.Wrapf(ErrMissingRequirement, "splice can only stack along channel, got %s=%q", attrDimensionToStack, dimension)
		}
		operands, err := c.Inputs()
		if err != nil {
			return nil, err
		}
		stacked := operands[0].Layout.Shape
		stacked.Channels = 0
		for _, operand := range operands {
			s := operand.Layout.Shape
			if s.Rows != stacked.Rows || s.Columns != stacked.Columns {
				return nil, errors.Errorf("splice of inputs with different spatial shapes %s and %s", operands[0].Layout.Shape, s)
			}
			stacked.Channels += s.Channels
		}
		out, err := c.Output()
		if err != nil {
			return nil, err
		}
		if len(c.Node.OutputShapes) > 0 && out.Shape != stacked {
			return nil, errors.Errorf("splice declares output shape %s, but its inputs stack to %s", out.Shape, stacked)
		}
		out.Shape = stacked
		return &NodeSpec{
			Kind:       PhysicalConcatenation,
			Operands:   operands,
			Output:     out,
			Attributes: map[string]any{AttrAxis: "channel"},
		}, nil
	},
}

var reorderConverter = Converter{
	Name: "Reorder",
	Convert: func(c *Context) (*NodeSpec, error) {
		in, err := c.Input(0)
		if err != nil {
			return nil, err
		}
		out, err := c.Output()
		if err != nil {
			return nil, err
		}
		if in.Layout.Shape.Size() != out.Shape.Size() {
			return nil, errors.Errorf("reorder from %s to %s changes the number of elements", in.Layout.Shape, out.Shape)
		}
		return &NodeSpec{Kind: PhysicalReorder, Operands: []Operand{in}, Output: out}, nil
	},
}

// reshapeConverter elides reshapes that don't change the memory layout.
var reshapeConverter = Converter{
	Name: "Reshape",
	Convert: func(c *Context) (*NodeSpec, error) {
		in, err := c.Input(0)
		if err != nil {
			return nil, err
		}
		out, err := c.Output()
		if err != nil {
			return nil, err
		}
		if in.Layout == out {
			return nil, c.Forward(0)
		}
		if in.Layout.Shape.Size() != out.Shape.Size() {
			return nil, errors.Errorf("reshape from %s to %s changes the number of elements", in.Layout.Shape, out.Shape)
		}
		return &NodeSpec{Kind: PhysicalReshape, Operands: []Operand{in}, Output: out}, nil
	},
}

var passthroughConverter = Converter{
	Name: "Passthrough",
	Convert: func(c *Context) (*NodeSpec, error) {
		return nil, c.Forward(0)
	},
}
