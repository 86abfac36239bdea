// Package coremlimporter imports neural network graphs and lowers them into CoreML programs.
//
// A parser describes a network as a graph of logical nodes (convolutions, activations, pooling and so
// on) over a store of constant tensors, each tagged with its native layout. The importer computes the
// padding each buffer must carry, schedules the nodes, and converts each logical node into one or more
// physical nodes, which it hands to a target graph builder.
//
// # Architecture
//
// The module is organized into several packages:
//
//   - graph: the logical graph model and the tensor store
//   - importer: padding propagation, scheduling, converter registry and the lowering engine
//   - irfile: YAML description of graph models
//   - target/mil: builder emitting CoreML MIL programs through github.com/gomlx/go-coreml/model
//   - target/memgraph: in-memory builder, used for tests and dry runs
//   - cmd/coreml-import: command line tool
//
// # Usage
//
//	m, err := irfile.Load("model.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	builder := mil.New(mil.DefaultOptions())
//	result, err := importer.New(importer.DefaultOptions()).Lower(m, builder)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = result.WriteMapping(os.Stdout)
//	program, _ := builder.Program()
//
// # Padding
//
// Convolutions and pooling read their input with a border of padding. Rather than padding inside each
// of them, the importer asks the producer of the input to write its output into a padded buffer. When
// the consumers of an output disagree, the first one wins, and the target reconciles the others.
package coremlimporter
