package importer

import (
	"testing"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPaddingDirectConsumer tests A -> B with B reading with padding 1.
func TestPaddingDirectConsumer(t *testing.T) {
	m := graph.NewModel()
	b := node("b", graph.OpMaxPooling, "a_out")
	b.InputPadding = padded(1)
	mustAdd(t, m, node("a", graph.OpInput), b)

	p, err := propagatePadding(m, false, "test")
	require.NoError(t, err)
	assert.Equal(t, padded(1), p.OutputPadding("a"))
	assert.Equal(t, graph.NoPadding, p.OutputPadding("b"), "sinks need no padding")
	assert.Empty(t, p.dropped)
}

// TestPaddingTransparentForwarding tests that transparent nodes forward their consumer's requirement.
func TestPaddingTransparentForwarding(t *testing.T) {
	m := graph.NewModel()
	b := node("b", graph.OpConvolution, "reorder_out")
	b.InputPadding = graph.Padding{Size: 2, Scheme: graph.PaddingMinusOnes}
	mustAdd(t, m,
		node("a", graph.OpInput),
		node("pass", graph.OpPassthrough, "a_out"),
		node("splice", graph.OpSplice, "pass_out"),
		node("reorder", graph.OpReorder, "splice_out"),
		b,
	)
	p, err := propagatePadding(m, false, "test")
	require.NoError(t, err)
	for _, id := range []string{"a", "pass", "splice", "reorder"} {
		assert.Equal(t, b.InputPadding, p.OutputPadding(id), "output padding of %q", id)
	}
}

// TestPaddingSkipsSkipConsumers tests that Skip consumers and transparent sinks impose nothing.
func TestPaddingSkipsSkipConsumers(t *testing.T) {
	m := graph.NewModel()
	skip := node("skip", graph.OpSkip, "a_out")
	skip.InputPadding = padded(3)
	b := node("b", graph.OpAveragePooling, "a_out")
	b.InputPadding = padded(1)
	mustAdd(t, m, node("a", graph.OpInput), node("dangling_pass", graph.OpPassthrough, "a_out"), skip, b)

	p, err := propagatePadding(m, true, "test")
	require.NoError(t, err)
	assert.Equal(t, padded(1), p.OutputPadding("a"))
}

// TestPaddingFanOut tests that the first consumer wins, and that strict mode rejects the ambiguity.
func TestPaddingFanOut(t *testing.T) {
	m := graph.NewModel()
	b := node("b", graph.OpMaxPooling, "a_out")
	b.InputPadding = padded(1)
	c := node("c", graph.OpMaxPooling, "a_out")
	c.InputPadding = padded(2)
	same := node("same", graph.OpAveragePooling, "a_out")
	same.InputPadding = padded(1)
	mustAdd(t, m, node("a", graph.OpInput), b, c, same)

	p, err := propagatePadding(m, false, "test")
	require.NoError(t, err)
	assert.Equal(t, padded(1), p.OutputPadding("a"))

	_, err = propagatePadding(m, true, "test")
	require.True(t, errors.Is(err, ErrAmbiguousPadding), "got %v", err)
	var nodeErr *NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "a", nodeErr.NodeID)
	assert.Equal(t, graph.OpInput, nodeErr.Kind)
}

// TestPaddingStrictAgreement tests that strict mode accepts consumers agreeing on the padding.
func TestPaddingStrictAgreement(t *testing.T) {
	m := graph.NewModel()
	b := node("b", graph.OpMaxPooling, "a_out")
	b.InputPadding = padded(1)
	c := node("c", graph.OpConvolution, "pass_out")
	c.InputPadding = padded(1)
	mustAdd(t, m, node("a", graph.OpInput), b, node("pass", graph.OpPassthrough, "a_out"), c)

	p, err := propagatePadding(m, true, "test")
	require.NoError(t, err)
	assert.Equal(t, padded(1), p.OutputPadding("a"))
}

// TestPaddingCycle tests that a loop through transparent nodes is reported instead of recursing forever.
func TestPaddingCycle(t *testing.T) {
	m := graph.NewModel()
	mustAdd(t, m,
		node("a", graph.OpInput),
		node("splice", graph.OpSplice, "a_out", "pass_out"),
		node("pass", graph.OpPassthrough, "splice_out"),
		node("relu", graph.OpReLU, "a_out"),
	)
	p, err := propagatePadding(m, false, "test")
	require.NoError(t, err)
	assert.True(t, p.cyclic.Has("a"))
	assert.True(t, p.cyclic.Has("splice"))
	assert.True(t, p.cyclic.Has("pass"))
	assert.False(t, p.cyclic.Has("relu"))
	require.Len(t, p.dropped, 3)
	for _, d := range p.dropped {
		assert.Equal(t, ReasonPaddingCycle, d.Reason)
		assert.True(t, errors.Is(d.Err, ErrUnschedulableNode))
	}
}
