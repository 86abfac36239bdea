// Package importer lowers a graph.Model into a physical node graph.
//
// A run has three read-only passes over the model followed by conversion:
//
//  1. Padding propagation: the padding each node must produce on its output, taken from the first
//     consumer requiring one, looking through transparent nodes (Splice, Reorder, Passthrough).
//  2. Scheduling: a dependency respecting order; nodes with inputs that never become available, and
//     Input nodes nobody reads, are dropped and reported as Diagnostic values.
//  3. Conversion: each scheduled node is looked up in the Registry, and the converters of its Block
//     that apply produce physical NodeSpec descriptions. The resolution Table records which physical
//     node owns each logical output, so fan-out and elided nodes (Passthrough, single input Splice,
//     no-op Reshape) resolve to the right producer.
//
// Only when the whole plan is built the Engine calls the target Builder, once per physical node, so a
// failed run never leaves a partial target graph behind.
//
// Example:
//
//	engine := importer.New(importer.DefaultOptions())
//	result, err := engine.Lower(model, memgraph.New())
//	if err != nil {
//		return err
//	}
//	for _, d := range result.Dropped {
//		fmt.Println("dropped", d)
//	}
package importer
