// Package irfile reads graph models from a YAML description, for the command line tool and tests.
//
// The file lists tensors and nodes in insertion order:
//
//	tensors:
//	  - id: w
//	    layout: filter_channel_row_column
//	    dims: [4, 3, 3, 3]
//	    fill: 0.1
//	nodes:
//	  - id: image
//	    kind: Input
//	    outputs: [x]
//	    output_shapes: [{dims: [3, 8, 8], layout: channel_row_column}]
//	  - id: conv
//	    kind: Convolution
//	    inputs: [x]
//	    outputs: [y]
//	    weights: {weights: {tensor: w}}
//	    attributes: {size: 3, stride: 1}
//	    input_padding: {size: 1, scheme: zeros}
//	    output_shapes: [{dims: [4, 8, 8], layout: channel_row_column}]
//
// A tensor either lists its values, or gives a fill value repeated to its size.
package irfile

import (
	"bytes"
	"os"

	"github.com/gomlx/go-coreml-importer/graph"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"gopkg.in/yaml.v3"
)

// File is the decoded YAML document.
type File struct {
	Name    string   `yaml:"name,omitempty"`
	Tensors []Tensor `yaml:"tensors,omitempty"`
	Nodes   []Node   `yaml:"nodes"`
}

// Tensor is a constant of the tensor store.
type Tensor struct {
	ID     string    `yaml:"id"`
	Layout string    `yaml:"layout"`
	Dims   []int     `yaml:"dims,omitempty"`
	Values []float64 `yaml:"values,omitempty"`
	Fill   *float64  `yaml:"fill,omitempty"`

	// DType is "float32" (default) or "float16": float16 values are rounded to half precision on load.
	DType string `yaml:"dtype,omitempty"`
}

// WeightRef points a weight role to a tensor, optionally overriding the tensor's layout.
type WeightRef struct {
	Tensor string `yaml:"tensor"`
	Layout string `yaml:"layout,omitempty"`
}

// Padding is an input padding declaration.
type Padding struct {
	Size   int    `yaml:"size"`
	Scheme string `yaml:"scheme,omitempty"`
}

// Shape is a declared input or output shape.
type Shape struct {
	Dims   []int  `yaml:"dims"`
	Layout string `yaml:"layout"`
}

// Node is a logical node.
type Node struct {
	ID           string               `yaml:"id"`
	Kind         string               `yaml:"kind"`
	Inputs       []string             `yaml:"inputs,omitempty"`
	Outputs      []string             `yaml:"outputs,omitempty"`
	Weights      map[string]WeightRef `yaml:"weights,omitempty"`
	Attributes   map[string]any       `yaml:"attributes,omitempty"`
	InputPadding *Padding             `yaml:"input_padding,omitempty"`
	InputShapes  []Shape              `yaml:"input_shapes,omitempty"`
	OutputShapes []Shape              `yaml:"output_shapes,omitempty"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*graph.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading model file %q", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "model file %q", path)
	}
	return m, nil
}

// Parse decodes a YAML model description. Unknown fields are rejected.
func Parse(data []byte) (*graph.Model, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding YAML model")
	}
	return f.Model()
}

// Model builds the graph model described by the file.
func (f *File) Model() (*graph.Model, error) {
	m := graph.NewModel()
	for i, t := range f.Tensors {
		if err := addTensor(m, t); err != nil {
			return nil, errors.WithMessagef(err, "tensor #%d (%q)", i, t.ID)
		}
	}
	for i, n := range f.Nodes {
		node, err := n.node()
		if err != nil {
			return nil, errors.WithMessagef(err, "node #%d (%q)", i, n.ID)
		}
		if err := m.AddNode(node); err != nil {
			return nil, errors.WithMessagef(err, "node #%d", i)
		}
	}
	return m, nil
}

func addTensor(m *graph.Model, t Tensor) error {
	layout, err := graph.ParseLayout(t.Layout)
	if err != nil {
		return err
	}
	size := 1
	for _, d := range t.Dims {
		if d <= 0 {
			return errors.Errorf("dimensions %v must be positive", t.Dims)
		}
		size *= d
	}
	values := t.Values
	switch {
	case t.Fill != nil && len(values) > 0:
		return errors.New("tensor sets both values and fill")
	case t.Fill != nil:
		values = make([]float64, size)
		for i := range values {
			values[i] = *t.Fill
		}
	}
	switch t.DType {
	case "", "float32":
		return m.AddTensor(t.ID, values, layout, t.Dims...)
	case "float16":
		half := make([]float16.Float16, len(values))
		for i, v := range values {
			half[i] = float16.Fromfloat32(float32(v))
		}
		return m.AddTensor(t.ID, half, layout, t.Dims...)
	}
	return errors.Errorf("unsupported tensor dtype %q", t.DType)
}

func (n Node) node() (*graph.Node, error) {
	kind, err := graph.ParseOpKind(n.Kind)
	if err != nil {
		return nil, err
	}
	node := &graph.Node{
		ID:         n.ID,
		Kind:       kind,
		Inputs:     n.Inputs,
		Outputs:    n.Outputs,
		Attributes: n.Attributes,
	}
	if len(n.Weights) > 0 {
		node.Weights = make(map[string]graph.WeightRef, len(n.Weights))
		for role, ref := range n.Weights {
			w := graph.WeightRef{TensorID: ref.Tensor}
			if ref.Layout != "" {
				if w.Layout, err = graph.ParseLayout(ref.Layout); err != nil {
					return nil, errors.WithMessagef(err, "weight %q", role)
				}
			}
			node.Weights[role] = w
		}
	}
	if n.InputPadding != nil {
		node.InputPadding.Size = n.InputPadding.Size
		if n.InputPadding.Scheme != "" {
			if node.InputPadding.Scheme, err = graph.ParsePaddingScheme(n.InputPadding.Scheme); err != nil {
				return nil, err
			}
		}
	}
	if node.InputShapes, err = shapes(n.InputShapes); err != nil {
		return nil, errors.WithMessage(err, "input shapes")
	}
	if node.OutputShapes, err = shapes(n.OutputShapes); err != nil {
		return nil, errors.WithMessage(err, "output shapes")
	}
	return node, nil
}

func shapes(entries []Shape) ([]graph.ShapeEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	result := make([]graph.ShapeEntry, len(entries))
	for i, e := range entries {
		layout, err := graph.ParseLayout(e.Layout)
		if err != nil {
			return nil, errors.WithMessagef(err, "shape #%d", i)
		}
		result[i] = graph.ShapeEntry{Dims: e.Dims, Layout: layout}
	}
	return result, nil
}
