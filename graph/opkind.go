package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

// OpKind is the closed vocabulary of logical operations a Node can represent.
//
// Not every kind needs a converter: GRU, LSTM, Region and VAD are part of the vocabulary so parsers can
// describe them, but lowering fails for them unless a custom registry provides converters.
type OpKind int

const (
	OpInvalid OpKind = iota
	OpInput
	OpConstant
	OpConvolution
	OpBinaryConvolution
	OpFullyConnected
	OpBatchNormalization
	OpBias
	OpScaling
	OpMinus
	OpActivation
	OpReLU
	OpLeakyReLU
	OpPReLU
	OpSigmoid
	OpTanh
	OpHardSigmoid
	OpSoftmax
	OpMaxPooling
	OpAveragePooling
	OpPooling
	OpPlus
	OpSubtract
	OpElementwiseMul
	OpAbs
	OpExp
	OpLog
	OpSqrt
	OpSign
	OpSin
	OpCos
	OpSquare
	OpSplice
	OpReorder
	OpReshape
	OpPassthrough
	OpSkip
	OpGRU
	OpLSTM
	OpRegion
	OpVAD

	opLast
)

var opKindNames = [...]string{
	OpInvalid:            "Invalid",
	OpInput:              "Input",
	OpConstant:           "Constant",
	OpConvolution:        "Convolution",
	OpBinaryConvolution:  "BinaryConvolution",
	OpFullyConnected:     "FullyConnected",
	OpBatchNormalization: "BatchNormalization",
	OpBias:               "Bias",
	OpScaling:            "Scaling",
	OpMinus:              "Minus",
	OpActivation:         "Activation",
	OpReLU:               "ReLU",
	OpLeakyReLU:          "LeakyReLU",
	OpPReLU:              "PReLU",
	OpSigmoid:            "Sigmoid",
	OpTanh:               "Tanh",
	OpHardSigmoid:        "HardSigmoid",
	OpSoftmax:            "Softmax",
	OpMaxPooling:         "MaxPooling",
	OpAveragePooling:     "AveragePooling",
	OpPooling:            "Pooling",
	OpPlus:               "Plus",
	OpSubtract:           "Subtract",
	OpElementwiseMul:     "ElementwiseMul",
	OpAbs:                "Abs",
	OpExp:                "Exp",
	OpLog:                "Log",
	OpSqrt:               "Sqrt",
	OpSign:               "Sign",
	OpSin:                "Sin",
	OpCos:                "Cos",
	OpSquare:             "Square",
	OpSplice:             "Splice",
	OpReorder:            "Reorder",
	OpReshape:            "Reshape",
	OpPassthrough:        "Passthrough",
	OpSkip:               "Skip",
	OpGRU:                "GRU",
	OpLSTM:               "LSTM",
	OpRegion:             "Region",
	OpVAD:                "VAD",
}

// String implements fmt.Stringer.
func (k OpKind) String() string {
	if k >= 0 && k < opLast {
		return opKindNames[k]
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// ParseOpKind converts an operation name (as printed by String) to an OpKind.
// "ElementTimes" is accepted as an alias of Scaling.
func ParseOpKind(name string) (OpKind, error) {
	if name == "ElementTimes" {
		return OpScaling, nil
	}
	for k := OpInput; k < opLast; k++ {
		if opKindNames[k] == name {
			return k, nil
		}
	}
	return OpInvalid, errors.Errorf("unknown operation kind %q", name)
}

// AllOpKinds returns every valid kind of the vocabulary, in declaration order.
func AllOpKinds() []OpKind {
	kinds := make([]OpKind, 0, int(opLast)-1)
	for k := OpInput; k < opLast; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// IsTransparent reports whether the kind forwards its consumers' padding requirement to its producer
// instead of imposing one itself.
func (k OpKind) IsTransparent() bool {
	return k == OpSplice || k == OpReorder || k == OpPassthrough
}
