package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/Skufu/symptomchecker/internal/schema"
)

// Forest is a decision-forest export. Each tree votes for one class; the majority wins and
// ties go to the smallest code.
type Forest struct {
	FeatureNames []string `json:"feature_names,omitempty"`
	NFeatures    int      `json:"n_features"`
	ClassCodes   []int    `json:"classes,omitempty"`
	Trees        []Tree   `json:"trees"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split when Feature >= 0 and a leaf otherwise. Samples with
// x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float32 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Class     int     `json:"class,omitempty"`
}

// Leaf is a convenience constructor for a terminal node.
func Leaf(class int) Node { return Node{Feature: -1, Class: class} }

// LoadForestFile reads and validates a JSON forest export.
func LoadForestFile(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode forest model: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks structural soundness. Child indices must be greater than their parent's,
// which guarantees every walk terminates.
func (f *Forest) Validate() error {
	if f.NFeatures == 0 {
		f.NFeatures = len(f.FeatureNames)
	}
	if f.NFeatures <= 0 {
		return errors.New("forest: n_features must be positive")
	}
	if len(f.FeatureNames) > 0 && len(f.FeatureNames) != f.NFeatures {
		return fmt.Errorf("forest: %d feature names for %d features", len(f.FeatureNames), f.NFeatures)
	}
	if len(f.Trees) == 0 {
		return errors.New("forest: no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("forest: tree %d has no nodes", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= f.NFeatures {
				return fmt.Errorf("forest: tree %d node %d splits on feature %d of %d", ti, ni, n.Feature, f.NFeatures)
			}
			for _, child := range []int{n.Left, n.Right} {
				if child <= ni || child >= len(t.Nodes) {
					return fmt.Errorf("forest: tree %d node %d has invalid child %d", ti, ni, child)
				}
			}
		}
	}
	return nil
}

func (f *Forest) Predict(ctx context.Context, v schema.Vector) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkWidth(v, f.NFeatures); err != nil {
		return 0, err
	}
	x := v.Float32()
	votes := make(map[int]int)
	for _, t := range f.Trees {
		votes[t.eval(x)]++
	}
	best, bestVotes := 0, -1
	for class, n := range votes {
		if n > bestVotes || (n == bestVotes && class < best) {
			best, bestVotes = class, n
		}
	}
	return best, nil
}

func (t Tree) eval(x []float32) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Class
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (f *Forest) Features() []string {
	if len(f.FeatureNames) == 0 {
		return nil
	}
	out := make([]string, len(f.FeatureNames))
	copy(out, f.FeatureNames)
	return out
}

func (f *Forest) Width() int { return f.NFeatures }

// Classes returns the declared classes, or every leaf class when none are declared.
func (f *Forest) Classes() []int {
	if len(f.ClassCodes) > 0 {
		out := make([]int, len(f.ClassCodes))
		copy(out, f.ClassCodes)
		return out
	}
	seen := map[int]bool{}
	var out []int
	for _, t := range f.Trees {
		for _, n := range t.Nodes {
			if n.Feature < 0 && !seen[n.Class] {
				seen[n.Class] = true
				out = append(out, n.Class)
			}
		}
	}
	sort.Ints(out)
	return out
}

func (f *Forest) Close() error { return nil }
