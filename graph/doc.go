// Package graph holds the source-agnostic intermediate representation consumed by the importer.
//
// A Model is a set of Nodes (logical operations, kept in insertion order) plus a tensor store of
// constant values. Each constant and each declared shape is tagged with a Layout describing its
// native element ordering; the helpers in this package reorder them into the canonical physical
// order used by the importer: row, column, channel, with channel varying fastest.
//
// Nothing is ever removed from a Model: once built it is treated as read-only, and it can be shared
// by several lowering runs at the same time.
//
// Example:
//
//	m := graph.NewModel()
//	_ = m.AddTensor("w", []float32{...}, graph.LayoutFilterChannelRowColumn, 8, 3, 3, 3)
//	_ = m.AddNode(&graph.Node{
//		ID:      "conv1",
//		Kind:    graph.OpConvolution,
//		Inputs:  []string{"input"},
//		Outputs: []string{"conv1"},
//		Weights: map[string]graph.WeightRef{"weights": {TensorID: "w", Layout: graph.LayoutFilterChannelRowColumn}},
//		Attributes: map[string]any{"size": 3, "stride": 1},
//	})
package graph
