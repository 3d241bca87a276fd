package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"winequality/ml"
	"winequality/monitoring"
	"winequality/predict"
)

const testCSV = `"fixed acidity";"volatile acidity";"citric acid";"residual sugar";"chlorides";"free sulfur dioxide";"total sulfur dioxide";"density";"pH";"sulphates";"alcohol";"quality"
7.4;0.7;0;1.9;0.076;11;34;0.9978;3.51;0.56;9.4;5
7.8;0.88;0;2.6;0.098;25;67;0.9968;3.2;0.68;9.8;5
11.2;0.28;0.56;1.9;0.075;17;60;0.998;3.16;0.58;9.8;6
`

type fakeModel struct {
	label int
	score float64
	err   error
}

func (f *fakeModel) Predict(ctx context.Context, features []float64) (ml.Prediction, error) {
	if f.err != nil {
		return ml.Prediction{}, f.err
	}
	return ml.Prediction{Label: f.label, Score: f.score, HasScore: true}, nil
}

type testEnv struct {
	handler     http.Handler
	service     *predict.Service
	datasetPath string
	modelPath   string
}

func newTestEnv(t *testing.T, loader predict.Loader, load bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "winequality-red.csv")
	modelPath := filepath.Join(dir, "wine.model.json")
	if err := os.WriteFile(datasetPath, []byte(testCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(modelPath, []byte(`{"type":"decision_tree"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	log := zaptest.NewLogger(t)
	svc, err := predict.NewService(predict.Options{Loader: loader, Logger: log})
	if err != nil {
		t.Fatal(err)
	}
	if load {
		svc.Load()
	}

	handlers, err := NewHandlers(Options{
		Service:           svc,
		Hub:               monitoring.NewWebSocketHub(log),
		DatasetPath:       datasetPath,
		ModelPath:         modelPath,
		ModelDownloadName: "winequality_model.json",
		PageSize:          2,
		Logger:            log,
	})
	if err != nil {
		t.Fatalf("new handlers: %v", err)
	}
	return &testEnv{
		handler:     NewRouter(DefaultServerConfig(), handlers, log),
		service:     svc,
		datasetPath: datasetPath,
		modelPath:   modelPath,
	}
}

func modelLoader(m *fakeModel) predict.Loader {
	return func() (ml.ModelProvider, string, error) {
		return m, "test-model", nil
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 5}), true)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", w.Code, http.StatusOK)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["status"] != "ok" || payload["model_loaded"] != true {
		t.Fatalf("unexpected body %v", payload)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}
}

func TestIndexRendersForm(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 5}), true)
	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Wine Quality Prediction App",
		`name="fixed_acidity" value="7.4" min="4" max="16" step="0.1"`,
		`name="free_sulfur_dioxide" value="11" min="1" max="72" step="1"`,
		"Wine Sample Summary",
		"8: Excellent",
		"/download/model",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page is missing %q", want)
		}
	}
	if strings.Contains(body, modelLoadFailed) {
		t.Error("page reports a model failure with a loaded model")
	}
}

func TestPredictForm(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 6, score: 0.875}), true)

	form := url.Values{"alcohol": {"12.5"}}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Predicted Wine Quality: 6 (Good) (Confidence: 87.50%)") {
		t.Fatalf("missing success message in page:\n%s", body)
	}
	if !strings.Contains(body, `name="alcohol" value="12.5"`) {
		t.Error("submitted value not echoed back into the form")
	}
}

func TestPredictFormValidation(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 6}), true)

	form := url.Values{"alcohol": {"40"}, "ph": {"abc"}}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Alcohol must be between 8 and 15") {
		t.Errorf("missing range error:\n%s", body)
	}
	if !strings.Contains(body, "pH &#34;abc&#34; is not a number") {
		t.Errorf("missing parse error:\n%s", body)
	}
	if strings.Contains(body, "Predicted Wine Quality") {
		t.Error("invalid input produced a prediction")
	}
}

func TestPredictFormModelFailure(t *testing.T) {
	loader := func() (ml.ModelProvider, string, error) {
		return nil, "", errors.New("model file is corrupt")
	}
	env := newTestEnv(t, loader, true)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Error loading model: model file is corrupt") {
		t.Errorf("missing load error:\n%s", body)
	}
	if !strings.Contains(body, modelLoadFailed) {
		t.Errorf("missing model failure message:\n%s", body)
	}
}

func TestPredictFormProviderError(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{err: errors.New("inference timeout")}), true)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)

	if !strings.Contains(w.Body.String(), "Prediction failed: inference timeout") {
		t.Fatalf("missing prediction error:\n%s", w.Body.String())
	}
}

func TestDatasetPaging(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 5}), true)

	w := env.do(httptest.NewRequest(http.MethodGet, "/dataset?page=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "3 rows, page 2 of 2") {
		t.Errorf("unexpected paging:\n%s", body)
	}
	if !strings.Contains(body, "<td>11.2</td>") {
		t.Error("second page should hold the third row")
	}
	if strings.Contains(body, "<td>7.8</td>") {
		t.Error("second page should not hold first page rows")
	}
	if !strings.Contains(body, "<th>Fixed Acidity</th>") || !strings.Contains(body, "<th>Quality</th>") {
		t.Error("expected titled column headers")
	}
}

func TestDownloadsAreByteIdentical(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 5}), true)

	cases := []struct {
		path     string
		file     string
		filename string
	}{
		{"/download/dataset", env.datasetPath, "winequality-red.csv"},
		{"/download/model", env.modelPath, "winequality_model.json"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, tc.path, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			want, err := os.ReadFile(tc.file)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(w.Body.Bytes(), want) {
				t.Fatal("download differs from the file on disk")
			}
			disposition := w.Header().Get("Content-Disposition")
			if disposition != "attachment; filename="+tc.filename {
				t.Fatalf("unexpected Content-Disposition %q", disposition)
			}
		})
	}
}

func TestDownloadMissingFile(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 5}), true)
	os.Remove(env.modelPath)

	w := env.do(httptest.NewRequest(http.MethodGet, "/download/model", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPredictAPI(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 7, score: 0.9}), true)

	body := `{"alcohol": 12.8, "pH": 3.3}`
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result predict.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if result.Label != 7 || result.Tier != "Very Good" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Sample.Alcohol != 12.8 || result.Sample.PH != 3.3 || result.Sample.Density != 0.9978 {
		t.Fatalf("sample not built from the request: %+v", result.Sample)
	}
}

func TestPredictAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		loader predict.Loader
		body   string
		status int
	}{
		{"bad json", modelLoader(&fakeModel{}), `{`, http.StatusBadRequest},
		{"unknown column", modelLoader(&fakeModel{}), `{"colour": 1}`, http.StatusBadRequest},
		{"out of range", modelLoader(&fakeModel{}), `{"density": 2}`, http.StatusUnprocessableEntity},
		{"no model", func() (ml.ModelProvider, string, error) { return nil, "", errors.New("missing") }, `{}`, http.StatusServiceUnavailable},
		{"provider error", modelLoader(&fakeModel{err: errors.New("down")}), `{}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.loader, true)
			req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(tt.body))
			w := env.do(req)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestFieldsAndStats(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 5}), true)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/fields", nil))
	var fields struct {
		Fields []struct {
			Column string `json:"column"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fields); err != nil {
		t.Fatal(err)
	}
	if len(fields.Fields) != 11 || fields.Fields[8].Column != "pH" {
		t.Fatalf("unexpected fields %+v", fields)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats struct {
		Service predict.Stats `json:"service"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if !stats.Service.ModelLoaded || stats.Service.Model != "test-model" {
		t.Fatalf("unexpected stats %+v", stats.Service)
	}
}

func TestPredictionsWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, modelLoader(&fakeModel{label: 5}), true)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/predictions?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/predictions", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a database, got %d", w.Code)
	}
}
