package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

// PaddingScheme selects the value written into the padded border of a buffer.
type PaddingScheme int

const (
	PaddingZeros PaddingScheme = iota
	PaddingMinusOnes
	PaddingAlternatingZeroAndOnes
	PaddingRandomZeroAndOnes
	PaddingMin
	PaddingMax
)

var paddingSchemeNames = []string{
	"zeros",
	"minus_ones",
	"alternating_zero_and_ones",
	"random_zero_and_ones",
	"min",
	"max",
}

// String implements fmt.Stringer.
func (s PaddingScheme) String() string {
	if s >= 0 && int(s) < len(paddingSchemeNames) {
		return paddingSchemeNames[s]
	}
	return fmt.Sprintf("PaddingScheme(%d)", int(s))
}

// ParsePaddingScheme converts a textual scheme name to a PaddingScheme.
func ParsePaddingScheme(name string) (PaddingScheme, error) {
	for i, n := range paddingSchemeNames {
		if n == name {
			return PaddingScheme(i), nil
		}
	}
	return PaddingZeros, errors.Errorf("unknown padding scheme %q", name)
}

// Padding is a (size, scheme) pair. The zero value is no padding.
type Padding struct {
	Size   int
	Scheme PaddingScheme
}

// NoPadding is (0, zeros).
var NoPadding = Padding{}

// String implements fmt.Stringer.
func (p Padding) String() string {
	return fmt.Sprintf("(%d, %s)", p.Size, p.Scheme)
}
