package classifier

// Model is a loaded binary classifier.
type Model interface {
	// InputWidth is the declared input width, or 0 when the model accepts
	// any width.
	InputWidth() int
	// Predict returns the phishing probability for one input row.
	Predict(input []float32) (float64, error)
	Close() error
}

// Loader builds a Model from the raw model artifact.
type Loader func(data []byte) (Model, error)
