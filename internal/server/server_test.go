package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Skufu/symptomchecker/internal/catalog"
	"github.com/Skufu/symptomchecker/internal/checker"
	"github.com/Skufu/symptomchecker/internal/history"
	"github.com/Skufu/symptomchecker/internal/labels"
	"github.com/Skufu/symptomchecker/internal/oracle"
	"github.com/Skufu/symptomchecker/internal/schema"
)

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

type brokenOracle struct{ width int }

func (b brokenOracle) Predict(context.Context, schema.Vector) (int, error) {
	return 0, errors.New("model fault")
}
func (b brokenOracle) Features() []string { return nil }
func (b brokenOracle) Width() int         { return b.width }
func (b brokenOracle) Classes() []int     { return nil }
func (b brokenOracle) Close() error       { return nil }

// itchingForest predicts "Fungal infection" (0) when itching is set and "Common Cold" (26) otherwise.
func itchingForest(width int) *oracle.Forest {
	return &oracle.Forest{NFeatures: width, Trees: []oracle.Tree{{Nodes: []oracle.Node{
		{Feature: 0, Threshold: 0.5, Left: 1, Right: 2},
		oracle.Leaf(26),
		oracle.Leaf(0),
	}}}}
}

func newTestChecker(t *testing.T, o oracle.Oracle, rec checker.Recorder) (*checker.Checker, *labels.Table) {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	s, err := schema.New(cat.Features)
	require.NoError(t, err)
	if o == nil {
		f := itchingForest(s.Len())
		require.NoError(t, f.Validate())
		o = f
	}
	table := labels.New(cat.Labels)
	ck, err := checker.New(checker.Deps{
		Schema:       s,
		SchemaSource: schema.SourceFallback,
		Labels:       table,
		Oracle:       o,
		Recorder:     rec,
	})
	require.NoError(t, err)
	return ck, table
}

func newTestRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.Checker == nil {
		opts.Checker, _ = newTestChecker(t, nil, nil)
	}
	router, err := NewRouter(opts)
	require.NoError(t, err)
	return router
}

func postForm(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	router.ServeHTTP(w, req)
	return w
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHomeListsSymptoms(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := get(router, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<option value="itching">Itching</option>`)
	assert.Contains(t, body, `<option value="yellow_crust_ooze">Yellow Crust Ooze</option>`)
	assert.Contains(t, body, "No symptoms selected yet.")
	assert.NotContains(t, body, `name="selected_symptoms"`)
	assert.NotContains(t, body, checker.PredictionPrefix)
}

func TestAddSymptomToEmptySelection(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := postForm(router, "/add_symptom", url.Values{"symptom": {"itching"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, `data-symptom="itching"`))
	assert.Contains(t, body, `name="selected_symptoms" value="itching"`)
	assert.NotContains(t, body, checker.PredictionPrefix)
}

func TestAddSymptomKeepsOrderAndSkipsDuplicates(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := postForm(router, "/add_symptom", url.Values{
		"selected_symptoms": {"chills", "itching"},
		"symptom":           {"chills"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, `data-symptom="chills"`))
	assert.Less(t, strings.Index(body, `data-symptom="chills"`), strings.Index(body, `data-symptom="itching"`))
}

func TestAddSymptomWithoutSymptomField(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := postForm(router, "/add_symptom", url.Values{"selected_symptoms": {"cough", " "}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, "<li data-symptom="))
	assert.Contains(t, body, `data-symptom="cough"`)
}

func TestPredictRendersLabel(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := postForm(router, "/predict", url.Values{"selected_symptoms": {"itching"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Predicted Disease: Fungal infection")
	assert.Contains(t, body, `data-symptom="itching"`)
}

func TestAddThenPredictScenario(t *testing.T) {
	ck, table := newTestChecker(t, nil, nil)
	router := newTestRouter(t, Options{Checker: ck})

	w := postForm(router, "/add_symptom", url.Values{"symptom": {"itching"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `name="selected_symptoms" value="itching"`)

	w = postForm(router, "/predict", url.Values{"selected_symptoms": {"itching"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	start := strings.Index(body, checker.PredictionPrefix)
	require.GreaterOrEqual(t, start, 0)
	rest := body[start+len(checker.PredictionPrefix):]
	label := rest[:strings.Index(rest, "<")]
	assert.Contains(t, table.Values(), label)
}

func TestPredictEmptySelection(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := postForm(router, "/predict", url.Values{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Predicted Disease: Common Cold")
}

func TestPredictOracleFailure(t *testing.T) {
	ck, _ := newTestChecker(t, brokenOracle{width: 132}, nil)
	router := newTestRouter(t, Options{Checker: ck})

	w := postForm(router, "/predict", url.Values{"selected_symptoms": {"itching"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, predictionFailedText)
	assert.Contains(t, body, `data-symptom="itching"`)
	assert.NotContains(t, body, checker.PredictionPrefix)
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t, Options{DB: fakeDB{}})

	w := get(router, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterReadyz(t *testing.T) {
	cases := []struct {
		name   string
		db     HealthChecker
		code   int
		dbText string
	}{
		{"disabled", nil, http.StatusOK, `"db":"disabled"`},
		{"healthy", fakeDB{}, http.StatusOK, `"db":"ok"`},
		{"unhealthy", fakeDB{err: errors.New("conn refused")}, http.StatusServiceUnavailable, "unhealthy: conn refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, Options{DB: tc.db})
			w := get(router, "/readyz")
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), tc.dbText)
			assert.Contains(t, w.Body.String(), `"schemaSource":"fallback"`)
		})
	}
}

func TestAPISymptoms(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := get(router, "/api/symptoms")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Symptoms    []string `json:"symptoms"`
		Fingerprint string   `json:"fingerprint"`
		Source      string   `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Symptoms, 132)
	assert.Len(t, body.Fingerprint, 64)
	assert.Equal(t, "fallback", body.Source)
}

func TestAPIPredict(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/predict", strings.NewReader(`{"symptoms":["itching","itching","chills"]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res checker.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"itching", "chills"}, res.Selected)
	assert.Equal(t, 0, res.Code)
	assert.Equal(t, "Fungal infection", res.Label)
	assert.Equal(t, "Predicted Disease: Fungal infection", res.Text)
}

func TestAPIPredictValidation(t *testing.T) {
	router := newTestRouter(t, Options{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/predict", strings.NewReader(`{"symptoms":`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid payload")
}

func TestAPIHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		router := newTestRouter(t, Options{})
		w := get(router, "/api/history")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("records predictions", func(t *testing.T) {
		store, err := history.Open(context.Background(), history.DriverSQLite, ":memory:")
		require.NoError(t, err)
		defer store.Close()

		ck, _ := newTestChecker(t, nil, store)
		router := newTestRouter(t, Options{Checker: ck, DB: store, History: store})

		postForm(router, "/predict", url.Values{"selected_symptoms": {"itching"}})
		postForm(router, "/predict", url.Values{"selected_symptoms": {"cough"}})

		w := get(router, "/api/history?limit=1")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Predictions []history.Record `json:"predictions"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Predictions, 1)
		assert.Equal(t, "Common Cold", body.Predictions[0].Label)
		assert.Equal(t, []string{"cough"}, body.Predictions[0].Symptoms)

		w = get(router, "/api/history?limit=abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("12345"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("01234567890"))
		router.ServeHTTP(w, req)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}

func TestNewRouterRequiresChecker(t *testing.T) {
	_, err := NewRouter(Options{})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), zap.NewNop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
