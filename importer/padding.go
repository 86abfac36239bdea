package importer

import (
	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// paddingPass holds the output padding computed for every logical node of a model.
//
// The backend pre-pads buffers, so a producer must know what padding its consumers read its output
// with before it is lowered. Transparent consumers (Splice, Reorder, Passthrough) forward the
// requirement of their own consumers.
type paddingPass struct {
	model  *graph.Model
	strict bool
	runID  string

	output  map[string]graph.Padding
	cyclic  sets.Set[string]
	dropped []Diagnostic
}

// propagatePadding computes the output padding of every node of the model. Nodes whose requirement
// walk loops back through transparent nodes are reported as dropped, and must not be scheduled.
func propagatePadding(model *graph.Model, strict bool, runID string) (*paddingPass, error) {
	p := &paddingPass{
		model:  model,
		strict: strict,
		runID:  runID,
		output: make(map[string]graph.Padding, len(model.Nodes())),
		cyclic: sets.Make[string](),
	}
	for _, node := range model.Nodes() {
		if err := p.visit(node); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// OutputPadding returns the padding the node must produce on its output.
func (p *paddingPass) OutputPadding(nodeID string) graph.Padding {
	return p.output[nodeID]
}

func (p *paddingPass) visit(node *graph.Node) error {
	requirements, cycle := p.requirements(node, sets.Make[string]())
	if cycle {
		p.cyclic.Insert(node.ID)
		p.dropped = append(p.dropped, Diagnostic{
			NodeID: node.ID,
			Kind:   node.Kind,
			Reason: ReasonPaddingCycle,
			Err: errors.Wrapf(ErrUnschedulableNode,
				"padding requirement of %q loops back through transparent nodes", node.ID),
		})
		return nil
	}
	if len(requirements) == 0 {
		p.output[node.ID] = graph.NoPadding
		return nil
	}
	first := requirements[0]
	for _, r := range requirements[1:] {
		if r == first {
			continue
		}
		if p.strict {
			return newNodeError(node, errors.Wrapf(ErrAmbiguousPadding,
				"consumers require both %s and %s", first, r))
		}
		klog.Warningf("[%s] %s: consumers require different paddings %s and %s, using the first one",
			p.runID, node, first, r)
		break
	}
	p.output[node.ID] = first
	return nil
}

// requirements returns the padding required by each consumer of the node's first output, in
// consumer order, resolving transparent consumers recursively. Consumers that resolve to nothing
// (e.g. transparent sinks) are omitted. It reports whether a cycle was found through transparent nodes.
func (p *paddingPass) requirements(node *graph.Node, visited sets.Set[string]) (result []graph.Padding, cycle bool) {
	if len(node.Outputs) == 0 {
		return nil, false
	}
	visited.Insert(node.ID)
	defer delete(visited, node.ID)
	for _, consumer := range p.model.Consumers(node.Outputs[0]) {
		if consumer.Kind == graph.OpSkip {
			continue
		}
		if !consumer.Kind.IsTransparent() {
			result = append(result, consumer.InputPadding)
			continue
		}
		if visited.Has(consumer.ID) {
			return nil, true
		}
		forwarded, cycle := p.requirements(consumer, visited)
		if cycle {
			return nil, true
		}
		if len(forwarded) > 0 {
			result = append(result, forwarded[0])
		}
	}
	return result, false
}
