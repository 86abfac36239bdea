// Command coreml-import lowers a YAML graph model and prints the result.
//
// Usage:
//
//	coreml-import [flags] model.yaml
//
// By default it prints the mapping from logical to physical nodes, followed by the physical graph.
// With -mil the graph is lowered into a CoreML MIL program instead, printed as protobuf text.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gomlx/go-coreml-importer/importer"
	"github.com/gomlx/go-coreml-importer/irfile"
	"github.com/gomlx/go-coreml-importer/target/memgraph"
	"github.com/gomlx/go-coreml-importer/target/mil"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/prototext"
	"k8s.io/klog/v2"
)

type config struct {
	modelPath     string
	printMIL      bool
	strictPadding bool
	functionName  string
	opset         string
	listOps       bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*config, error) {
	cfg := &config{}
	fs.BoolVar(&cfg.printMIL, "mil", false, "Lower into a MIL program and print it as protobuf text")
	fs.BoolVar(&cfg.strictPadding, "strict-padding", false, "Fail when consumers of an output disagree on its padding")
	fs.StringVar(&cfg.functionName, "function", mil.DefaultOptions().FunctionName, "Name of the MIL function")
	fs.StringVar(&cfg.opset, "opset", mil.DefaultOptions().Opset, "MIL operation set version")
	fs.BoolVar(&cfg.listOps, "list-ops", false, "List the supported logical operations and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.listOps {
		return cfg, nil
	}
	if fs.NArg() != 1 {
		return nil, errors.Errorf("expected exactly one model file, got %d arguments", fs.NArg())
	}
	cfg.modelPath = fs.Arg(0)
	return cfg, nil
}

func main() {
	klog.InitFlags(nil)
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "coreml-import: %v\n", err)
		os.Exit(2)
	}
	defer klog.Flush()
	if err := run(cfg, os.Stdout); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func run(cfg *config, stdout io.Writer) error {
	opts := importer.DefaultOptions()
	opts.StrictPadding = cfg.strictPadding
	engine := importer.New(opts)
	if cfg.listOps {
		for _, kind := range engine.SupportedOperations() {
			if _, err := fmt.Fprintln(stdout, kind); err != nil {
				return errors.Wrap(err, "listing operations")
			}
		}
		return nil
	}

	m, err := irfile.Load(cfg.modelPath)
	if err != nil {
		return err
	}

	if !cfg.printMIL {
		g := memgraph.New()
		result, err := engine.Lower(m, g)
		if err != nil {
			return err
		}
		report(result)
		if err := result.WriteMapping(stdout); err != nil {
			return err
		}
		_, err = g.WriteTo(stdout)
		return err
	}

	builder := mil.New(mil.Options{FunctionName: cfg.functionName, Opset: cfg.opset})
	result, err := engine.Lower(m, builder)
	if err != nil {
		return err
	}
	report(result)
	program, err := builder.Program()
	if err != nil {
		return err
	}
	text, err := prototext.MarshalOptions{Multiline: true}.Marshal(program)
	if err != nil {
		return errors.Wrap(err, "formatting MIL program")
	}
	_, err = stdout.Write(text)
	return errors.Wrap(err, "printing MIL program")
}

// report logs a summary of the run. Dropped nodes are already logged by the engine.
func report(result *importer.Result) {
	klog.V(1).Infof("run %s lowered %d logical nodes into %d physical nodes", result.RunID, len(result.Order), len(result.Nodes))
}
