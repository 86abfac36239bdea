package importer

// Options configures a lowering Engine.
type Options struct {
	// Registry maps operation kinds to converter blocks. Defaults to DefaultRegistry().
	Registry *Registry

	// StrictPadding makes a run fail with ErrAmbiguousPadding when consumers of one output require
	// different paddings. By default the first consumer, in insertion order, wins.
	StrictPadding bool

	// BatchNormEpsilon is added to the variance by BatchNormalization.
	BatchNormEpsilon float32

	// LeakyReLUAlpha is the slope of leaky ReLU activations that don't carry an "alpha" attribute.
	LeakyReLUAlpha float32
}

// DefaultOptions returns the default lowering options.
func DefaultOptions() Options {
	return Options{
		Registry:         DefaultRegistry(),
		BatchNormEpsilon: 1e-5,
		LeakyReLUAlpha:   0.01,
	}
}
