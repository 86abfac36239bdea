package importer

import (
	"slices"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/pkg/errors"
)

// Converter is one element of a block: it lowers (part of) a logical node into at most one physical node.
type Converter struct {
	Name string

	// Weights and Attributes are the roles and attribute names the converter requires on the node.
	Weights    []string
	Attributes []string

	// Optional converters are skipped when a requirement is missing. For a non-optional converter a
	// missing requirement is an ErrMissingRequirement error.
	Optional bool

	// Adapter marks layout fix-ups on the block boundary (e.g. an input reorder). They run like any
	// other element, but don't count when deciding which element is first or last in the block.
	Adapter bool

	// When, if set, is an extra condition for an optional converter to run.
	When func(c *Context) bool

	// Convert returns the physical node to emit, or nil for converters that emit nothing (e.g. elided
	// nodes that call Context.Forward).
	Convert func(c *Context) (*NodeSpec, error)
}

// canConvert reports whether all requirements of the converter are present on the node.
func (cv *Converter) canConvert(node *graph.Node) (bool, error) {
	for _, role := range cv.Weights {
		if !node.HasWeight(role) {
			if cv.Optional {
				return false, nil
			}
			return false, errors.Wrapf(ErrMissingRequirement, "converter %s requires weight %q", cv.Name, role)
		}
	}
	for _, name := range cv.Attributes {
		if !node.HasAttribute(name) {
			if cv.Optional {
				return false, nil
			}
			return false, errors.Wrapf(ErrMissingRequirement, "converter %s requires attribute %q", cv.Name, name)
		}
	}
	return true, nil
}

// Block is the fixed ordered decomposition of one operation kind into converters.
type Block []Converter

// Registry maps operation kinds to blocks.
type Registry struct {
	blocks map[graph.OpKind]Block
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{blocks: make(map[graph.OpKind]Block)}
}

// Register sets the block of an operation kind, replacing any previous one.
func (r *Registry) Register(kind graph.OpKind, converters ...Converter) *Registry {
	r.blocks[kind] = Block(converters)
	return r
}

// Lookup returns the block of the operation kind, or ErrUnsupportedOperation.
func (r *Registry) Lookup(kind graph.OpKind) (Block, error) {
	block, found := r.blocks[kind]
	if !found || len(block) == 0 {
		return nil, errors.Wrapf(ErrUnsupportedOperation, "no converter registered for %s", kind)
	}
	return block, nil
}

// Kinds returns the registered operation kinds, in vocabulary order.
func (r *Registry) Kinds() []graph.OpKind {
	kinds := make([]graph.OpKind, 0, len(r.blocks))
	for kind := range r.blocks {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// Clone returns a copy of the registry that can be extended without affecting r.
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	for kind, block := range r.blocks {
		clone.blocks[kind] = slices.Clone(block)
	}
	return clone
}

// DefaultRegistry returns a new registry with the standard blocks.
//
// GRU, LSTM, Region and VAD are not registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(graph.OpInput, inputConverter, outputReorderConverter)
	r.Register(graph.OpConstant, constantConverter)
	r.Register(graph.OpConvolution,
		inputReorderConverter, convolutionConverter(graph.OpConvolution), optional(biasConverter), optional(activationConverter))
	r.Register(graph.OpBinaryConvolution,
		inputReorderConverter, convolutionConverter(graph.OpBinaryConvolution), optional(biasConverter), optional(activationConverter))
	r.Register(graph.OpFullyConnected, fullyConnectedConverter, optional(biasConverter), optional(activationConverter))
	r.Register(graph.OpBatchNormalization, batchNormalizationConverter, optional(scalingConverter), optional(biasConverter))
	r.Register(graph.OpBias, biasConverter)
	r.Register(graph.OpScaling, scalingConverter)
	r.Register(graph.OpMinus, minusConverter)
	r.Register(graph.OpActivation, activationConverter)
	r.Register(graph.OpReLU, fixedActivationConverter(ActivationReLU))
	r.Register(graph.OpLeakyReLU, fixedActivationConverter(ActivationLeakyReLU))
	r.Register(graph.OpSigmoid, fixedActivationConverter(ActivationSigmoid))
	r.Register(graph.OpTanh, fixedActivationConverter(ActivationTanh))
	r.Register(graph.OpHardSigmoid, fixedActivationConverter(ActivationHardSigmoid))
	r.Register(graph.OpPReLU, preluConverter)
	r.Register(graph.OpSoftmax, softmaxConverter)
	r.Register(graph.OpMaxPooling, fixedPoolingConverter(PoolingMax))
	r.Register(graph.OpAveragePooling, fixedPoolingConverter(PoolingMean))
	r.Register(graph.OpPooling, poolingConverter)
	r.Register(graph.OpPlus, binaryConverter(BinaryAdd))
	r.Register(graph.OpSubtract, binaryConverter(BinarySubtract))
	r.Register(graph.OpElementwiseMul, binaryConverter(BinaryMultiply))
	for kind, op := range unaryOps {
		r.Register(kind, unaryConverter(op))
	}
	r.Register(graph.OpSplice, spliceConverter)
	r.Register(graph.OpReorder, reorderConverter)
	r.Register(graph.OpReshape, reshapeConverter)
	r.Register(graph.OpPassthrough, passthroughConverter)
	return r
}

// optional returns a copy of the converter that is skipped when its requirements are missing.
func optional(cv Converter) Converter {
	cv.Name = "Optional" + cv.Name
	cv.Optional = true
	return cv
}
