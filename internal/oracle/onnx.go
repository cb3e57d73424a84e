package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Skufu/symptomchecker/internal/schema"
)

const (
	metaFeatureNames = "feature_names"
	metaClasses      = "classes"
)

// ONNXOracle runs a classifier exported to ONNX (e.g. with skl2onnx). The session binds
// fixed input and output tensors, so Predict calls are serialized.
type ONNXOracle struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[int64]
	width    int
	features []string
	classes  []int
}

// OpenONNX initializes onnxruntime and loads the model at path.
func OpenONNX(path string, opts ONNXOptions) (*ONNXOracle, error) {
	if opts.InputName == "" {
		opts.InputName = "float_input"
	}
	if opts.OutputName == "" {
		opts.OutputName = "label"
	}
	if !ort.IsInitialized() {
		if opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init onnxruntime: %w", err)
		}
	}

	width, err := inputWidth(path, opts.InputName)
	if err != nil {
		return nil, err
	}
	features, classes, err := readMetadata(path)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(width)), make([]float32, width))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(path,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXOracle{
		session:  session,
		input:    input,
		output:   output,
		width:    width,
		features: features,
		classes:  classes,
	}, nil
}

func inputWidth(path, name string) (int, error) {
	inputs, _, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return 0, fmt.Errorf("inspect onnx model: %w", err)
	}
	for _, in := range inputs {
		if in.Name != name {
			continue
		}
		dims := in.Dimensions
		if len(dims) != 2 || dims[1] <= 0 {
			return 0, fmt.Errorf("onnx input %q has unsupported shape %v", name, dims)
		}
		return int(dims[1]), nil
	}
	return 0, fmt.Errorf("onnx model has no input named %q", name)
}

func readMetadata(path string) ([]string, []int, error) {
	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read onnx metadata: %w", err)
	}
	defer meta.Destroy()

	var features []string
	if raw, ok, err := meta.LookupCustomMetadataMap(metaFeatureNames); err != nil {
		return nil, nil, fmt.Errorf("read onnx metadata %s: %w", metaFeatureNames, err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &features); err != nil {
			return nil, nil, fmt.Errorf("decode onnx metadata %s: %w", metaFeatureNames, err)
		}
	}
	var classes []int
	if raw, ok, err := meta.LookupCustomMetadataMap(metaClasses); err != nil {
		return nil, nil, fmt.Errorf("read onnx metadata %s: %w", metaClasses, err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &classes); err != nil {
			return nil, nil, fmt.Errorf("decode onnx metadata %s: %w", metaClasses, err)
		}
	}
	return features, classes, nil
}

func (o *ONNXOracle) Predict(ctx context.Context, v schema.Vector) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkWidth(v, o.width); err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return 0, errors.New("onnx oracle is closed")
	}
	copy(o.input.GetData(), v.Float32())
	if err := o.session.Run(); err != nil {
		return 0, fmt.Errorf("run onnx session: %w", err)
	}
	return int(o.output.GetData()[0]), nil
}

func (o *ONNXOracle) Features() []string {
	if len(o.features) == 0 {
		return nil
	}
	out := make([]string, len(o.features))
	copy(out, o.features)
	return out
}

func (o *ONNXOracle) Width() int { return o.width }

func (o *ONNXOracle) Classes() []int {
	out := make([]int, len(o.classes))
	copy(out, o.classes)
	return out
}

// Close releases the session and tensors and tears down the onnxruntime environment.
func (o *ONNXOracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	var errs []error
	errs = append(errs, o.session.Destroy(), o.input.Destroy(), o.output.Destroy())
	o.session = nil
	errs = append(errs, ort.DestroyEnvironment())
	return errors.Join(errs...)
}
