package schema

import (
	"errors"

	"go.uber.org/zap"
)

// Source records where the active schema came from.
type Source string

const (
	SourceArtifact Source = "artifact"
	SourceFallback Source = "fallback"
)

// ErrNoArtifactSchema is returned by Resolve in strict mode when the model carries no feature names.
var ErrNoArtifactSchema = errors.New("model artifact does not expose feature names")

type ResolveOptions struct {
	// Strict refuses the fallback list.
	Strict bool
	Logger *zap.Logger
}

// Resolve picks the feature schema: the artifact's own names when present, otherwise the
// fallback list. Both paths log enough to spot drift between the two.
func Resolve(artifact, fallback []string, opts ResolveOptions) (*Schema, Source, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if len(artifact) == 0 {
		if opts.Strict {
			return nil, "", ErrNoArtifactSchema
		}
		s, err := New(fallback)
		if err != nil {
			return nil, "", err
		}
		log.Warn("model artifact has no feature names; using built-in symptom list",
			zap.Int("features", s.Len()),
			zap.String("fingerprint", s.Fingerprint()))
		return s, SourceFallback, nil
	}

	s, err := New(artifact)
	if err != nil {
		return nil, "", err
	}
	if diff := Diff(artifact, fallback); diff > 0 {
		log.Warn("built-in symptom list differs from model artifact; using artifact",
			zap.Int("differing_positions", diff),
			zap.Int("artifact_features", len(artifact)),
			zap.Int("builtin_features", len(fallback)))
	}
	log.Info("feature schema loaded from model artifact",
		zap.Int("features", s.Len()),
		zap.String("fingerprint", s.Fingerprint()))
	return s, SourceArtifact, nil
}

// Diff counts positions where a and b disagree, including any length difference.
func Diff(a, b []string) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	diff := 0
	for i := 0; i < n; i++ {
		if i >= len(a) || i >= len(b) || a[i] != b[i] {
			diff++
		}
	}
	return diff
}
