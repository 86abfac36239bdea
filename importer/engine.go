package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/gomlx/gomlx/pkg/support/xslices"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Engine lowers graph Models into a target Builder.
//
// An Engine holds no state between runs: the same Engine, and the same Model, can be used by
// concurrent runs, as long as the Model isn't modified.
type Engine struct {
	opts Options
}

// New creates an Engine. Zero values in opts are replaced by the DefaultOptions ones.
func New(opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Registry == nil {
		opts.Registry = defaults.Registry
	}
	if opts.BatchNormEpsilon == 0 {
		opts.BatchNormEpsilon = defaults.BatchNormEpsilon
	}
	if opts.LeakyReLUAlpha == 0 {
		opts.LeakyReLUAlpha = defaults.LeakyReLUAlpha
	}
	return &Engine{opts: opts}
}

// SupportedOperations returns the operation kinds the engine's registry can lower.
func (e *Engine) SupportedOperations() []graph.OpKind {
	return e.opts.Registry.Kinds()
}

// Result of a successful run.
type Result struct {
	// RunID identifies the run in the logs.
	RunID string

	// Order is the scheduled order of the logical nodes.
	Order []*graph.Node

	// Dropped lists the logical nodes left out of the run.
	Dropped []Diagnostic

	// Nodes are all physical nodes, in plan order.
	Nodes   []*PhysicalNode
	Inputs  []*PhysicalNode
	Outputs []Output

	Table *Table
}

// Mapping returns, for every logical node that emitted physical nodes, its physical nodes in emission order.
func (r *Result) Mapping() map[string][]*PhysicalNode {
	mapping := make(map[string][]*PhysicalNode, len(r.Order))
	for _, node := range r.Order {
		if emitted := r.Table.Emitted(node.ID); len(emitted) > 0 {
			mapping[node.ID] = emitted
		}
	}
	return mapping
}

// WriteMapping writes one line per logical node, in schedule order, with the physical nodes it was
// lowered to. Elided nodes show the physical node that owns their output.
func (r *Result) WriteMapping(w io.Writer) error {
	names := xslices.Map(r.Order, func(node *graph.Node) string {
		return fmt.Sprintf("%s(%s)", node.Kind, node.ID)
	})
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	for i, node := range r.Order {
		var target string
		if emitted := r.Table.Emitted(node.ID); len(emitted) > 0 {
			target = strings.Join(xslices.Map(emitted, (*PhysicalNode).String), ", ")
		} else if len(node.Outputs) > 0 {
			if owner, found := r.Table.OwnerOf(node.Outputs[0]); found {
				target = fmt.Sprintf("(elided to %s)", owner)
			}
		}
		if _, err := fmt.Fprintf(w, "    %*s -> %s\n", width, names[i], target); err != nil {
			return errors.Wrap(err, "writing mapping")
		}
	}
	return nil
}

// run is the state of one lowering run.
type run struct {
	id      string
	opts    Options
	model   *graph.Model
	padding *paddingPass
	table   *Table
	nodes   []*PhysicalNode
}

// Lower lowers the model into the builder.
//
// It first plans the whole physical graph without touching the builder, so a failing run leaves the
// builder untouched; then it adds every physical node to the builder in plan order, and finishes it
// with the graph's inputs and outputs.
func (e *Engine) Lower(model *graph.Model, builder Builder) (*Result, error) {
	result, err := e.Plan(model)
	if err != nil {
		return nil, err
	}
	for _, p := range result.Nodes {
		port, err := builder.AddNode(p)
		if err != nil {
			return nil, errors.WithMessagef(err, "[%s] adding %s of node %q", result.RunID, p, p.GroupID)
		}
		p.Port = port
	}
	if err := builder.Finish(result.Inputs, result.Outputs); err != nil {
		return nil, errors.WithMessagef(err, "[%s] finishing target graph", result.RunID)
	}
	return result, nil
}

// Plan runs padding propagation, scheduling and conversion, returning the physical plan without
// calling any builder.
func (e *Engine) Plan(model *graph.Model) (*Result, error) {
	r := &run{
		id:    uuid.NewString(),
		opts:  e.opts,
		model: model,
		table: newTable(),
	}
	var err error
	r.padding, err = propagatePadding(model, e.opts.StrictPadding, r.id)
	if err != nil {
		return nil, err
	}
	order, dropped := schedule(model, r.padding.cyclic)
	dropped = append(r.padding.dropped, dropped...)
	if len(dropped) > 0 {
		klog.Infof("[%s] ignoring the following nodes:", r.id)
		for _, d := range dropped {
			klog.Infof("[%s]     %s", r.id, d)
		}
	}
	if len(order) == 0 {
		return nil, errors.Wrapf(ErrEmptyGraph, "[%s] no node of the %d in the model can be scheduled", r.id, len(model.Nodes()))
	}
	if klog.V(1).Enabled() {
		klog.Infof("[%s] processing the following nodes in order:", r.id)
		for _, node := range order {
			klog.Infof("[%s]     %s", r.id, node)
		}
	}

	for _, node := range order {
		if err := r.lowerNode(node); err != nil {
			return nil, err
		}
	}

	result := &Result{
		RunID:   r.id,
		Order:   order,
		Dropped: dropped,
		Nodes:   r.nodes,
		Table:   r.table,
	}
	for _, p := range r.nodes {
		if p.Spec.Kind == PhysicalInput {
			result.Inputs = append(result.Inputs, p)
		}
	}
	result.Outputs = r.outputs(order)
	if klog.V(1).Enabled() {
		var sb strings.Builder
		_ = result.WriteMapping(&sb)
		klog.Infof("[%s] final mapping of logical nodes to physical nodes:\n%s", r.id, sb.String())
	}
	return result, nil
}

// lowerNode runs the block of the node's kind.
func (r *run) lowerNode(node *graph.Node) error {
	block, err := r.opts.Registry.Lookup(node.Kind)
	if err != nil {
		return newNodeError(node, err)
	}
	c := &Context{Node: node, run: r}

	// Keep the converters that apply, then find the first and last non-adapter ones.
	converters := make([]*Converter, 0, len(block))
	for i := range block {
		cv := &block[i]
		ok, err := cv.canConvert(node)
		if err != nil {
			return newNodeError(node, err)
		}
		if !ok || (cv.When != nil && !cv.When(c)) {
			continue
		}
		converters = append(converters, cv)
	}
	first, last := -1, -1
	for i, cv := range converters {
		if cv.Adapter {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}

	for i, cv := range converters {
		c.first, c.last = i == first, i == last
		spec, err := cv.Convert(c)
		if err != nil {
			return newNodeError(node, errors.WithMessagef(err, "converter %s", cv.Name))
		}
		if spec == nil {
			klog.V(2).Infof("[%s] %s: %s emitted nothing", r.id, node, cv.Name)
			continue
		}
		p := &PhysicalNode{ID: len(r.nodes) + 1, GroupID: node.ID, Converter: cv.Name, Spec: spec}
		r.nodes = append(r.nodes, p)
		r.table.emit(node, p)
		c.prev = p
		klog.V(2).Infof("[%s] %s: %s emitted %s %s", r.id, node, cv.Name, p, spec.Output)
	}

	switch {
	case c.prev != nil:
	case c.forwarded != nil:
		r.table.own(node, c.forwarded)
		klog.V(2).Infof("[%s] %s: elided, outputs owned by %s", r.id, node, c.forwarded)
	default:
		return newNodeError(node, errors.New("no converter produced or forwarded an output"))
	}
	return nil
}

// outputs declares one output per terminal node, in schedule order: a terminal node is one whose
// outputs no scheduled node reads.
func (r *run) outputs(order []*graph.Node) []Output {
	consumed := sets.Make[string]()
	for _, node := range order {
		consumed.Insert(node.Inputs...)
	}
	var outputs []Output
	for _, node := range order {
		if len(node.Outputs) == 0 {
			continue
		}
		terminal := true
		for _, out := range node.Outputs {
			if consumed.Has(out) {
				terminal = false
				break
			}
		}
		if !terminal {
			continue
		}
		if owner, found := r.table.OwnerOf(node.Outputs[0]); found {
			outputs = append(outputs, Output{Name: node.Outputs[0], Node: owner})
		}
	}
	return outputs
}
