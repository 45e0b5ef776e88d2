package classifier

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXLoader returns a Loader that runs models with ONNX Runtime, loading the
// shared library from libPath on first use.
func ONNXLoader(libPath string) Loader {
	return func(data []byte) (Model, error) {
		if err := initORT(libPath); err != nil {
			return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
		}
		return newONNXModel(data)
	}
}

// onnxModel wraps a DynamicAdvancedSession for a [batch, width] → [batch, k]
// classifier.
type onnxModel struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	width      int64 // 0 when the input width is dynamic
	outWidth   int64
}

// newONNXModel inspects the model's tensors and creates an inference session.
func newONNXModel(data []byte) (*onnxModel, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected a single input tensor, got %d", len(inputs))
	}
	inDims := inputs[0].Dimensions
	if len(inDims) != 2 {
		return nil, fmt.Errorf("onnx: expected 2D input tensor, got %v", inDims)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}

	width := max(inDims[1], 0)
	outWidth := int64(1)
	if outDims := outputs[0].Dimensions; len(outDims) == 2 && outDims[1] > 0 {
		outWidth = outDims[1]
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		data,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxModel{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		width:      width,
		outWidth:   outWidth,
	}, nil
}

func (m *onnxModel) InputWidth() int { return int(m.width) }

// Predict runs one row through the session. For a single sigmoid output the
// score is that value; for a softmax over classes it is the last class.
func (m *onnxModel) Predict(input []float32) (float64, error) {
	tIn, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	tOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, m.outWidth))
	if err != nil {
		return 0, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := m.session.Run([]ort.Value{tIn}, []ort.Value{tOut}); err != nil {
		return 0, fmt.Errorf("onnx: inference failed: %w", err)
	}

	out := tOut.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("onnx: empty output tensor")
	}
	return float64(out[len(out)-1]), nil
}

// Close releases the ONNX session resources.
func (m *onnxModel) Close() error {
	return m.session.Destroy()
}
