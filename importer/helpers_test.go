package importer

import (
	"testing"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// chw declares a single channel_row_column shape.
func chw(c, h, w int) []graph.ShapeEntry {
	return []graph.ShapeEntry{{Dims: []int{c, h, w}, Layout: graph.LayoutChannelRowColumn}}
}

// channels declares a single channel shape.
func channels(c int) []graph.ShapeEntry {
	return []graph.ShapeEntry{{Dims: []int{c}, Layout: graph.LayoutChannel}}
}

// padded returns a zeros padding of the given size.
func padded(size int) graph.Padding {
	return graph.Padding{Size: size, Scheme: graph.PaddingZeros}
}

// node creates a node with one output named "<id>_out".
func node(id string, kind graph.OpKind, inputs ...string) *graph.Node {
	return &graph.Node{ID: id, Kind: kind, Inputs: inputs, Outputs: []string{id + "_out"}}
}

func mustAdd(t *testing.T, m *graph.Model, nodes ...*graph.Node) {
	t.Helper()
	for _, n := range nodes {
		require.NoError(t, m.AddNode(n))
	}
}

func iota32(n int) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	return data
}

// convNode creates a 3x3 convolution node reading input, with filters output channels over
// inputChannels, and adds its weights to the model.
func convNode(t *testing.T, m *graph.Model, id, input string, inputChannels, filters, outSize int) *graph.Node {
	t.Helper()
	weightsID := id + "_weights"
	require.NoError(t, m.AddTensor(weightsID, iota32(filters*inputChannels*9), graph.LayoutFilterChannelRowColumn,
		filters, inputChannels, 3, 3))
	n := node(id, graph.OpConvolution, input)
	n.Weights = map[string]graph.WeightRef{"weights": {TensorID: weightsID}}
	n.Attributes = map[string]any{"size": 3, "stride": 1}
	n.InputShapes = chw(inputChannels, outSize+2, outSize+2)
	n.OutputShapes = chw(filters, outSize, outSize)
	return n
}

// recorder is a Builder recording every call.
type recorder struct {
	added    []*PhysicalNode
	inputs   []*PhysicalNode
	outputs  []Output
	finished bool

	// failOn makes AddNode fail for nodes of this kind.
	failOn PhysicalKind
}

func (r *recorder) AddNode(p *PhysicalNode) (Port, error) {
	for _, operand := range p.Spec.Operands {
		if operand.Node.Port == nil {
			return nil, errors.Errorf("operand %s of %s was not added yet", operand.Node, p)
		}
	}
	if r.failOn != PhysicalInvalid && p.Spec.Kind == r.failOn {
		return nil, errors.Errorf("%s not supported", p.Spec.Kind)
	}
	r.added = append(r.added, p)
	return len(r.added), nil
}

func (r *recorder) Finish(inputs []*PhysicalNode, outputs []Output) error {
	r.inputs, r.outputs, r.finished = inputs, outputs, true
	return nil
}

func (r *recorder) kinds() []PhysicalKind {
	kinds := make([]PhysicalKind, len(r.added))
	for i, p := range r.added {
		kinds[i] = p.Spec.Kind
	}
	return kinds
}

func physicalKinds(nodes []*PhysicalNode) []PhysicalKind {
	kinds := make([]PhysicalKind, len(nodes))
	for i, p := range nodes {
		kinds[i] = p.Spec.Kind
	}
	return kinds
}

func ids(nodes []*graph.Node) []string {
	result := make([]string, len(nodes))
	for i, n := range nodes {
		result[i] = n.ID
	}
	return result
}
