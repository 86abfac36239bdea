package importer

import (
	"slices"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/pkg/errors"
)

// Schedule returns the nodes of the model in an order where every node comes after the producers of
// all its inputs, along with the nodes that were dropped.
//
// Skip nodes never take part: they are not scheduled, their outputs never become available, and they
// are not reported. Nodes whose inputs can never become available are dropped, and so are scheduled
// Input nodes whose output is not read by any scheduled node. Among nodes that become ready in the
// same pass, insertion order is kept, so the result is deterministic.
func Schedule(model *graph.Model) (order []*graph.Node, dropped []Diagnostic) {
	return schedule(model, nil)
}

// schedule implements Schedule, ignoring the nodes in excluded (they are neither scheduled nor reported).
func schedule(model *graph.Model, excluded sets.Set[string]) (order []*graph.Node, dropped []Diagnostic) {
	pending := make([]*graph.Node, 0, len(model.Nodes()))
	for _, node := range model.Nodes() {
		if node.Kind == graph.OpSkip || excluded.Has(node.ID) {
			continue
		}
		pending = append(pending, node)
	}

	materialized := sets.Make[string]()
	ready := func(node *graph.Node) bool {
		for _, in := range node.Inputs {
			if !materialized.Has(in) {
				return false
			}
		}
		return true
	}
	for moved := true; moved; {
		moved = false
		remaining := pending[:0]
		for _, node := range pending {
			if !ready(node) {
				remaining = append(remaining, node)
				continue
			}
			order = append(order, node)
			materialized.Insert(node.Outputs...)
			moved = true
		}
		pending = remaining
	}

	for _, node := range pending {
		var missing []string
		for _, in := range node.Inputs {
			if !materialized.Has(in) {
				missing = append(missing, in)
			}
		}
		dropped = append(dropped, Diagnostic{
			NodeID: node.ID,
			Kind:   node.Kind,
			Reason: ReasonUnsatisfiableInput,
			Err:    errors.Wrapf(ErrUnschedulableNode, "inputs %q are never produced", missing),
		})
	}

	// Dead input elimination.
	referenced := sets.Make[string]()
	for _, node := range order {
		referenced.Insert(node.Inputs...)
	}
	order = slices.DeleteFunc(order, func(node *graph.Node) bool {
		if node.Kind != graph.OpInput || (len(node.Outputs) > 0 && referenced.Has(node.Outputs[0])) {
			return false
		}
		dropped = append(dropped, Diagnostic{NodeID: node.ID, Kind: node.Kind, Reason: ReasonDeadInput})
		return true
	})
	return order, dropped
}
