package importer

import (
	"github.com/gomlx/go-coreml-importer/graph"
)

// Table is the resolution table of one lowering run: which physical nodes each logical node emitted,
// which physical node currently owns each logical output id, and which logical node each physical
// node came from.
//
// It is private to one run and is populated monotonically.
type Table struct {
	emitted map[string][]*PhysicalNode
	owners  map[string]*PhysicalNode
	origins map[int]*graph.Node
}

func newTable() *Table {
	return &Table{
		emitted: make(map[string][]*PhysicalNode),
		owners:  make(map[string]*PhysicalNode),
		origins: make(map[int]*graph.Node),
	}
}

// Emitted returns the physical nodes converted from the logical node, in emission order.
// The last one represents the logical node's output. It is empty for elided nodes.
func (t *Table) Emitted(logicalID string) []*PhysicalNode {
	return t.emitted[logicalID]
}

// Last returns the physical node representing the logical node's output, or nil if it emitted none.
func (t *Table) Last(logicalID string) *PhysicalNode {
	nodes := t.emitted[logicalID]
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// OwnerOf returns the physical node currently producing the logical output id.
func (t *Table) OwnerOf(outputID string) (*PhysicalNode, bool) {
	p, found := t.owners[outputID]
	return p, found
}

// originOf returns the logical node the physical node was converted from.
func (t *Table) originOf(physicalID int) (*graph.Node, bool) {
	n, found := t.origins[physicalID]
	return n, found
}

// emit records p as the newest physical node of the logical node, and makes it the owner of all the
// logical node's outputs.
func (t *Table) emit(node *graph.Node, p *PhysicalNode) {
	t.emitted[node.ID] = append(t.emitted[node.ID], p)
	t.origins[p.ID] = node
	t.own(node, p)
}

// own reassigns the ownership of the logical node's outputs, without recording an emission.
// Elided nodes use it to point their outputs to an existing physical node.
func (t *Table) own(node *graph.Node, p *PhysicalNode) {
	for _, out := range node.Outputs {
		t.owners[out] = p
	}
}
