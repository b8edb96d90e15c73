package signal

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitializeRuntime loads the onnxruntime shared library once per process.
// An empty libPath picks the platform default.
func InitializeRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath == "" {
			libPath = "/usr/lib/libonnxruntime.so"
			if runtime.GOOS == "windows" {
				libPath = "onnxruntime.dll"
			} else if runtime.GOOS == "darwin" {
				libPath = "libonnxruntime.dylib"
			}
		}
		ort.SetSharedLibraryPath(libPath)
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ONNXModel runs a single-output binary classifier exported to ONNX.
type ONNXModel struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

type ModelSpec struct {
	Path        string
	LibraryPath string
	InputName   string
	OutputName  string
	// InputShape is the full tensor shape including the batch dimension.
	InputShape []int64
}

func NewONNXModel(spec ModelSpec) (*ONNXModel, error) {
	if err := InitializeRuntime(spec.LibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	if spec.InputName == "" {
		spec.InputName = "input"
	}
	if spec.OutputName == "" {
		spec.OutputName = "output"
	}

	inputShape := ort.NewShape(spec.InputShape...)
	inputTensor, err := ort.NewTensor(inputShape, make([]float32, inputShape.FlattenedSize()))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(spec.Path,
		[]string{spec.InputName}, []string{spec.OutputName},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXModel{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Predict copies features into the input tensor and returns the first
// output value.
func (m *ONNXModel) Predict(features []float32) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.input.GetData()
	if len(features) != len(data) {
		return 0, fmt.Errorf("feature length %d does not match model input %d", len(features), len(data))
	}
	copy(data, features)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	return m.output.GetData()[0], nil
}

func (m *ONNXModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}
