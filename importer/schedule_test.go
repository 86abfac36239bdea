package importer

import (
	"testing"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScheduleValidity tests that every node comes after the producers of its inputs, even when the
// model lists consumers before producers.
func TestScheduleValidity(t *testing.T) {
	m := graph.NewModel()
	mustAdd(t, m,
		node("sum", graph.OpPlus, "relu_out", "tanh_out"),
		node("relu", graph.OpReLU, "in_out"),
		node("tanh", graph.OpTanh, "relu_out"),
		node("in", graph.OpInput),
	)
	order, dropped := Schedule(m)
	require.Empty(t, dropped)
	require.Equal(t, []string{"in", "relu", "tanh", "sum"}, ids(order))

	position := make(map[string]int)
	for i, n := range order {
		position[n.ID] = i
	}
	for _, n := range order {
		for _, in := range n.Inputs {
			producer := m.Producer(in)
			require.NotNil(t, producer)
			assert.Less(t, position[producer.ID], position[n.ID], "%s must come after %s", n.ID, producer.ID)
		}
	}
}

// TestScheduleDeterminism tests that nodes ready in the same pass keep insertion order.
func TestScheduleDeterminism(t *testing.T) {
	m := graph.NewModel()
	mustAdd(t, m,
		node("in", graph.OpInput),
		node("b", graph.OpSigmoid, "in_out"),
		node("a", graph.OpReLU, "in_out"),
		node("c", graph.OpTanh, "in_out"),
		node("ab", graph.OpPlus, "a_out", "b_out"),
	)
	first, _ := Schedule(m)
	second, _ := Schedule(m)
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, []string{"in", "b", "a", "c", "ab"}, ids(first))
}

// TestScheduleDropsUnsatisfiable tests that dangling references drop the node and its dependents.
func TestScheduleDropsUnsatisfiable(t *testing.T) {
	m := graph.NewModel()
	mustAdd(t, m,
		node("in", graph.OpInput),
		node("relu", graph.OpReLU, "in_out"),
		node("orphan", graph.OpPlus, "relu_out", "folded_away"),
		node("after", graph.OpTanh, "orphan_out"),
	)
	order, dropped := Schedule(m)
	assert.Equal(t, []string{"in", "relu"}, ids(order))
	require.Len(t, dropped, 2)
	assert.Equal(t, "orphan", dropped[0].NodeID)
	assert.Equal(t, graph.OpPlus, dropped[0].Kind)
	assert.Equal(t, ReasonUnsatisfiableInput, dropped[0].Reason)
	assert.True(t, errors.Is(dropped[0].Err, ErrUnschedulableNode))
	assert.Contains(t, dropped[0].Err.Error(), "folded_away")
	assert.Equal(t, "after", dropped[1].NodeID)
}

// TestScheduleSkip tests that Skip nodes are neither scheduled nor reported, and that they don't
// make their outputs available.
func TestScheduleSkip(t *testing.T) {
	m := graph.NewModel()
	mustAdd(t, m,
		node("in", graph.OpInput),
		node("skip", graph.OpSkip, "in_out"),
		node("relu", graph.OpReLU, "in_out"),
		node("behind_skip", graph.OpTanh, "skip_out"),
	)
	order, dropped := Schedule(m)
	assert.Equal(t, []string{"in", "relu"}, ids(order))
	require.Len(t, dropped, 1)
	assert.Equal(t, "behind_skip", dropped[0].NodeID)
}

// TestScheduleDeadInputs tests that Input nodes nobody scheduled reads are dropped.
func TestScheduleDeadInputs(t *testing.T) {
	m := graph.NewModel()
	mustAdd(t, m,
		node("unused", graph.OpInput),
		node("in", graph.OpInput),
		node("feeds_dropped", graph.OpInput),
		node("relu", graph.OpReLU, "in_out"),
		node("dropped", graph.OpPlus, "feeds_dropped_out", "nowhere"),
	)
	order, dropped := Schedule(m)
	assert.Equal(t, []string{"in", "relu"}, ids(order))

	reasons := make(map[string]DiagnosticReason)
	for _, d := range dropped {
		reasons[d.NodeID] = d.Reason
	}
	assert.Equal(t, map[string]DiagnosticReason{
		"unused":        ReasonDeadInput,
		"feeds_dropped": ReasonDeadInput,
		"dropped":       ReasonUnsatisfiableInput,
	}, reasons)
	for _, d := range dropped {
		if d.Reason == ReasonDeadInput {
			assert.NoError(t, d.Err)
		}
	}
}
