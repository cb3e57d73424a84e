// Package checker composes the feature schema, label table and model oracle into the three
// symptom-checker operations: show the form, add a symptom, and predict.
package checker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Skufu/symptomchecker/internal/history"
	"github.com/Skufu/symptomchecker/internal/labels"
	"github.com/Skufu/symptomchecker/internal/oracle"
	"github.com/Skufu/symptomchecker/internal/schema"
)

// PredictionPrefix precedes the label in rendered predictions.
const PredictionPrefix = "Predicted Disease: "

var (
	ErrSchemaMismatch = errors.New("feature schema does not match model input")
	ErrPrediction     = errors.New("prediction failed")
)

// Recorder persists served predictions.
type Recorder interface {
	Record(ctx context.Context, r history.Record) error
}

type Deps struct {
	Schema       *schema.Schema
	SchemaSource schema.Source
	Labels       *labels.Table
	Oracle       oracle.Oracle
	// Recorder is optional.
	Recorder Recorder
	Logger   *zap.Logger
}

// Checker is built once at startup and shared read-only by all requests.
type Checker struct {
	schema   *schema.Schema
	source   schema.Source
	labels   *labels.Table
	oracle   oracle.Oracle
	recorder Recorder
	log      *zap.Logger
}

// Form is the state rendered on the symptom page.
type Form struct {
	Symptoms []string
	Selected []string
}

type Result struct {
	Selected []string `json:"selected"`
	Code     int      `json:"code"`
	Label    string   `json:"label"`
	Text     string   `json:"prediction"`
}

// New checks that the schema and oracle agree on the vector width and warns about class
// codes the label table cannot name.
func New(d Deps) (*Checker, error) {
	if d.Schema == nil || d.Labels == nil || d.Oracle == nil {
		return nil, errors.New("checker: schema, labels and oracle are required")
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Schema.Len() != d.Oracle.Width() {
		return nil, fmt.Errorf("%w: schema has %d features, model expects %d",
			ErrSchemaMismatch, d.Schema.Len(), d.Oracle.Width())
	}
	var missing []int
	for _, code := range d.Oracle.Classes() {
		if !d.Labels.Has(code) {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		log.Warn("model emits class codes without labels; they will render as unknown",
			zap.Ints("codes", missing))
	}
	return &Checker{
		schema:   d.Schema,
		source:   d.SchemaSource,
		labels:   d.Labels,
		oracle:   d.Oracle,
		recorder: d.Recorder,
		log:      log,
	}, nil
}

func (c *Checker) Schema() *schema.Schema      { return c.schema }
func (c *Checker) SchemaSource() schema.Source { return c.source }

// ShowForm returns every known symptom and an empty selection.
func (c *Checker) ShowForm() Form {
	return Form{Symptoms: c.schema.Names(), Selected: []string{}}
}

// AddSymptom appends symptom to current unless it is empty or already selected.
// Membership in the schema is not required.
func AddSymptom(current []string, symptom string) []string {
	out := make([]string, 0, len(current)+1)
	out = append(out, current...)
	if symptom == "" {
		return out
	}
	for _, s := range current {
		if s == symptom {
			return out
		}
	}
	return append(out, symptom)
}

// Predict encodes the selection, asks the oracle for a class code and resolves its label.
func (c *Checker) Predict(ctx context.Context, selected []string) (Result, error) {
	if selected == nil {
		selected = []string{}
	}
	v := c.schema.Encode(selected)
	code, err := c.oracle.Predict(ctx, v)
	if err != nil {
		c.log.Error("oracle prediction failed",
			zap.Strings("selected", selected),
			zap.Int("vector_width", len(v)),
			zap.Error(err))
		return Result{Selected: selected}, fmt.Errorf("%w: %w", ErrPrediction, err)
	}

	label := c.labels.Resolve(code)
	res := Result{
		Selected: selected,
		Code:     code,
		Label:    label,
		Text:     PredictionPrefix + label,
	}
	c.log.Debug("prediction served",
		zap.Int("symptoms", v.Ones()),
		zap.Int("code", code),
		zap.String("label", label))

	if c.recorder != nil {
		err := c.recorder.Record(ctx, history.Record{
			Symptoms:          selected,
			Code:              code,
			Label:             label,
			SchemaFingerprint: c.schema.Fingerprint(),
		})
		if err != nil {
			c.log.Warn("failed to record prediction", zap.Error(err))
		}
	}
	return res, nil
}
