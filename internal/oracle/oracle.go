// Package oracle loads the pre-trained disease classifier and runs predictions against it.
//
// Two artifact formats are supported: a JSON decision-forest export evaluated in pure Go,
// and ONNX models executed through onnxruntime.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Skufu/symptomchecker/internal/schema"
)

// Oracle is a loaded classifier. Implementations are safe for concurrent use.
type Oracle interface {
	// Predict returns the class code for a feature vector of exactly Width() entries.
	Predict(ctx context.Context, v schema.Vector) (int, error)
	// Features returns the feature names stored in the artifact, or nil when it has none.
	Features() []string
	Width() int
	// Classes lists the codes the model can emit, when the artifact declares them.
	Classes() []int
	Close() error
}

const (
	FormatForest = "forest"
	FormatONNX   = "onnx"
)

var (
	ErrVectorWidth   = errors.New("feature vector width does not match model input")
	ErrUnknownFormat = errors.New("unknown model format")
)

type Options struct {
	Path string
	// Format is FormatForest or FormatONNX; empty means detect from the file extension.
	Format string

	ONNX ONNXOptions
}

type ONNXOptions struct {
	LibraryPath string
	InputName   string
	OutputName  string
}

// Open loads the model artifact once. Callers own the returned Oracle and must Close it.
func Open(opts Options) (Oracle, error) {
	format, err := DetectFormat(opts.Path, opts.Format)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatForest:
		f, err := LoadForestFile(opts.Path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case FormatONNX:
		o, err := OpenONNX(opts.Path, opts.ONNX)
		if err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// DetectFormat returns explicit when set, otherwise infers the format from path.
func DetectFormat(path, explicit string) (string, error) {
	if explicit != "" {
		switch f := strings.ToLower(explicit); f {
		case FormatForest, FormatONNX:
			return f, nil
		default:
			return "", fmt.Errorf("%w: %q", ErrUnknownFormat, explicit)
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatForest, nil
	case ".onnx":
		return FormatONNX, nil
	}
	return "", fmt.Errorf("%w: cannot infer from %q", ErrUnknownFormat, path)
}

func checkWidth(v schema.Vector, width int) error {
	if len(v) != width {
		return fmt.Errorf("%w: got %d, want %d", ErrVectorWidth, len(v), width)
	}
	return nil
}
