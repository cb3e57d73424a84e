// Package schema defines the ordered symptom list the classifier was trained on and the
// binary feature vectors built against it.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Vector is a 0/1 encoding of a symptom selection, one entry per schema column.
type Vector []uint8

// Float32 widens the vector for model runtimes that take float input.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, b := range v {
		out[i] = float32(b)
	}
	return out
}

// Ones counts the set positions.
func (v Vector) Ones() int {
	n := 0
	for _, b := range v {
		if b != 0 {
			n++
		}
	}
	return n
}

// Schema is an immutable ordered set of symptom names.
type Schema struct {
	names       []string
	index       map[string]int
	fingerprint string
}

// New builds a schema. Names must be non-blank and unique.
func New(names []string) (*Schema, error) {
	if len(names) == 0 {
		return nil, errors.New("schema: no feature names")
	}
	s := &Schema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	h := sha256.New()
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("schema: blank feature name at position %d", i)
		}
		if prev, dup := s.index[name]; dup {
			return nil, fmt.Errorf("schema: duplicate feature %q at positions %d and %d", name, prev, i)
		}
		s.names[i] = name
		s.index[name] = i
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	s.fingerprint = hex.EncodeToString(h.Sum(nil))
	return s, nil
}

// Names returns a copy of the ordered feature names.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *Schema) Len() int { return len(s.names) }

func (s *Schema) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Index returns the column of name, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Fingerprint is a hex sha256 over the ordered names.
func (s *Schema) Fingerprint() string { return s.fingerprint }

// Encode sets position i iff the i-th name is selected. Names outside the schema are ignored.
func (s *Schema) Encode(selection []string) Vector {
	v := make(Vector, len(s.names))
	for _, name := range selection {
		if i, ok := s.index[name]; ok {
			v[i] = 1
		}
	}
	return v
}
