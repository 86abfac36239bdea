package importer

import (
	"fmt"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/pkg/errors"
)

var (
	// ErrMissingRequirement is returned when a non-optional converter lacks a weight or attribute it
	// requires, or when an attribute value is not one it can handle.
	ErrMissingRequirement = errors.New("missing requirement")

	// ErrUnsupportedOperation is returned when the registry has no block for an operation kind.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnschedulableNode classifies nodes dropped by the scheduler. It is reported in diagnostics,
	// never returned by a run.
	ErrUnschedulableNode = errors.New("unschedulable node")

	// ErrAmbiguousPadding is returned, when Options.StrictPadding is set, for a node whose consumers
	// require different paddings.
	ErrAmbiguousPadding = errors.New("ambiguous padding")

	// ErrEmptyGraph is returned when nothing is left to lower after scheduling.
	ErrEmptyGraph = errors.New("empty graph")
)

// NodeError is the terminal error of a failed run: it identifies the offending logical node.
type NodeError struct {
	NodeID string
	Kind   graph.OpKind
	Err    error
}

func newNodeError(node *graph.Node, err error) *NodeError {
	return &NodeError{NodeID: node.ID, Kind: node.Kind, Err: err}
}

// Error implements error.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q (%s): %v", e.NodeID, e.Kind, e.Err)
}

// Unwrap returns the classified error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// DiagnosticReason tells why a node was dropped from a run.
type DiagnosticReason int

const (
	// ReasonUnsatisfiableInput means some input never became available.
	ReasonUnsatisfiableInput DiagnosticReason = iota

	// ReasonDeadInput is an Input node whose output nothing scheduled reads.
	ReasonDeadInput

	// ReasonPaddingCycle is a node whose padding requirement loops back through transparent nodes.
	ReasonPaddingCycle
)

var diagnosticReasonNames = []string{"unsatisfiable input", "dead input", "padding cycle"}

// String implements fmt.Stringer.
func (r DiagnosticReason) String() string {
	if r >= 0 && int(r) < len(diagnosticReasonNames) {
		return diagnosticReasonNames[r]
	}
	return fmt.Sprintf("DiagnosticReason(%d)", int(r))
}

// Diagnostic records a node dropped from a successful run.
type Diagnostic struct {
	NodeID string
	Kind   graph.OpKind
	Reason DiagnosticReason

	// Err is nil for dead inputs, and wraps ErrUnschedulableNode otherwise.
	Err error
}

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	if d.Err != nil {
		return fmt.Sprintf("%s(%s): %s: %v", d.Kind, d.NodeID, d.Reason, d.Err)
	}
	return fmt.Sprintf("%s(%s): %s", d.Kind, d.NodeID, d.Reason)
}
