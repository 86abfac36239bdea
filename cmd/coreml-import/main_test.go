package main

import (
	"bytes"
	"flag"
	"testing"

	"github.com/gomlx/go-coreml/proto/coreml/milspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"
)

const classifier = "../../irfile/testdata/classifier.yaml"

func parse(t *testing.T, args ...string) *config {
	t.Helper()
	cfg, err := parseFlags(flag.NewFlagSet("coreml-import", flag.ContinueOnError), args)
	require.NoError(t, err)
	return cfg
}

func TestPrintGraph(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(parse(t, classifier), &out))
	listing := out.String()
	assert.Contains(t, listing, "Convolution(conv) -> ")
	assert.Contains(t, listing, "FullyConnected(")
	assert.Contains(t, listing, "output probabilities <- Softmax(")
}

func TestPrintMIL(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(parse(t, "-mil", "-function", "classify", classifier), &out))

	var program milspec.Program
	require.NoError(t, prototext.Unmarshal(out.Bytes(), &program))
	fn, ok := program.Functions["classify"]
	require.True(t, ok)
	require.Len(t, fn.Inputs, 1)
	assert.Equal(t, "image", fn.Inputs[0].Name)
	types := make(map[string]bool)
	for _, op := range fn.BlockSpecializations["CoreML7"].Operations {
		types[op.Type] = true
	}
	assert.True(t, types["conv"])
	assert.True(t, types["linear"])
	assert.True(t, types["softmax"])
}

func TestListOps(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(parse(t, "-list-ops"), &out))
	assert.Contains(t, out.String(), "Convolution\n")
	assert.NotContains(t, out.String(), "LSTM")
}

func TestFlagErrors(t *testing.T) {
	fs := flag.NewFlagSet("coreml-import", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	_, err := parseFlags(fs, nil)
	require.Error(t, err, "model file missing")

	require.Error(t, run(parse(t, "testdata/missing.yaml"), &bytes.Buffer{}))
}
