package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bbernstein/panelboard-go/internal/document"
	"github.com/bbernstein/panelboard-go/internal/observability"
	"github.com/bbernstein/panelboard-go/internal/services/export"
	"github.com/bbernstein/panelboard-go/internal/services/panel"
	"github.com/bbernstein/panelboard-go/internal/services/pubsub"
	"github.com/bbernstein/panelboard-go/internal/services/testutil"
)

type testEnv struct {
	router    http.Handler
	panels    *panel.Service
	persister *testutil.FailingPersister
	metrics   *observability.Metrics
	pubsub    *pubsub.PubSub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	persister := &testutil.FailingPersister{}
	metrics := observability.NewMetrics()
	ps := pubsub.New()

	svc, err := panel.Open(context.Background(), persister, testutil.ScenarioDocument(),
		panel.WithLogger(logger), panel.WithMetrics(metrics), panel.WithPubSub(ps))
	require.NoError(t, err)

	router := NewRouter(Options{
		Panels:     svc,
		Exporter:   export.NewService(svc, "test"),
		PubSub:     ps,
		Metrics:    metrics,
		Logger:     logger,
		CORSOrigin: "http://example.test",
	})

	return &testEnv{router: router, panels: svc, persister: persister, metrics: metrics, pubsub: ps}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func itemsBody(t *testing.T, cells []string) string {
	t.Helper()
	data, err := json.Marshal(CreatePanelRequest{Items: cells})
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) createPanel(t *testing.T, cells []string) int64 {
	t.Helper()
	w := e.do(t, http.MethodPost, "/", itemsBody(t, cells))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[map[string][]string](t, w)
	require.Len(t, created, 1)
	for key := range created {
		id, err := strconv.ParseInt(key, 10, 64)
		require.NoError(t, err)
		return id
	}
	return 0
}

func TestGetParameters(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/parameters", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, map[string]int{"A": 0, "B": 0, "C": 0}, decode[map[string]int](t, w))
}

func TestUpdateParameter(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/parameters/B", `{"value": -42}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MsgParameterUpdated, decode[MessageResponse](t, w).Message)
	assert.Equal(t, -42, env.panels.GetParameters(context.Background())["B"])
	assert.Equal(t, -42, env.persister.Saved().Parameters["B"])
}

func TestUpdateParameter_Unknown(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/parameters/Z", `{"value": 5}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, MsgParameterNotFound, decode[ErrorResponse](t, w).Error)
	assert.Equal(t, map[string]int{"A": 0, "B": 0, "C": 0}, env.panels.GetParameters(context.Background()))
}

func TestUpdateParameter_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"above range", `{"value": 101}`, document.ReasonParameterRange},
		{"below range", `{"value": -101}`, document.ReasonParameterRange},
		{"missing value", `{}`, "value is required"},
		{"null value", `{"value": null}`, "value is required"},
		{"string value", `{"value": "ten"}`, "Invalid type for value"},
		{"fractional value", `{"value": 1.5}`, "Invalid type for value"},
		{"malformed", `{"value":`, "Invalid JSON"},
		{"empty body", ``, "Request body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(t, http.MethodPut, "/parameters/A", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, tt.want, decode[ErrorResponse](t, w).Error)
			assert.Equal(t, 0, env.panels.GetParameters(context.Background())["A"])
		})
	}
}

func TestCreatePanel_Scenario(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/", itemsBody(t, testutil.ScenarioCells()))

	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[map[string][]string](t, w)
	require.Len(t, created, 1)
	for key, cells := range created {
		id, err := strconv.ParseInt(key, 10, 64)
		require.NoError(t, err)
		assert.Positive(t, id)
		assert.Equal(t, testutil.ScenarioCells(), cells)
	}
}

func TestCreatePanel_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"eight cells", `{"items": ["off","off","off","off","off","off","off","off"]}`, document.ReasonGridSize},
		{"bad length", `{"items": ["A_aa","off","off","off","off","off","off","off","off"]}`, document.ReasonCellLength},
		{"bad off", `{"items": ["ofx","off","off","off","off","off","off","off","off"]}`, document.ReasonOffState},
		{"bad parameter", `{"items": ["Q_a","off","off","off","off","off","off","off","off"]}`, document.ReasonParameter},
		{"bad binding", `{"items": ["A-a","off","off","off","off","off","off","off","off"]}`, document.ReasonBinding},
		{"bad component", `{"items": ["A_q","off","off","off","off","off","off","off","off"]}`, document.ReasonComponent},
		{"missing items", `{}`, "items is required"},
		{"items not a list", `{"items": "off"}`, "Invalid type for items"},
		{"malformed", `{"items": [`, "Invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(t, http.MethodPost, "/", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, tt.want, decode[ErrorResponse](t, w).Error)
			assert.Empty(t, env.panels.GetPanels(context.Background()))
		})
	}
}

func TestGetPanels(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[map[string][]string](t, w))

	id := env.createPanel(t, testutil.ScenarioCells())

	w = env.do(t, http.MethodGet, "/", "")
	panels := decode[map[string][]string](t, w)
	assert.Equal(t, map[string][]string{strconv.FormatInt(id, 10): testutil.ScenarioCells()}, panels)
}

func TestGetPanel(t *testing.T) {
	env := newTestEnv(t)
	id := env.createPanel(t, testutil.ScenarioCells())

	w := env.do(t, http.MethodGet, "/"+strconv.FormatInt(id, 10), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testutil.ScenarioCells(), decode[[]string](t, w))
}

func TestGetPanel_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/abc", http.StatusUnprocessableEntity, MsgInvalidPanelID},
		{"/1.5", http.StatusUnprocessableEntity, MsgInvalidPanelID},
		{"/0", http.StatusUnprocessableEntity, MsgInvalidPanelID},
		{"/-3", http.StatusUnprocessableEntity, MsgInvalidPanelID},
		{"/123", http.StatusNotFound, MsgPanelGetNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.want, decode[ErrorResponse](t, w).Error)
		})
	}
}

func TestUpdatePanel(t *testing.T) {
	env := newTestEnv(t)
	id := env.createPanel(t, document.OffGrid())
	path := "/" + strconv.FormatInt(id, 10)

	w := env.do(t, http.MethodPut, path, itemsBody(t, testutil.ScenarioCells()))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testutil.ScenarioCells(), decode[[]string](t, w))

	w = env.do(t, http.MethodGet, path, "")
	assert.Equal(t, testutil.ScenarioCells(), decode[[]string](t, w))
}

func TestUpdatePanel_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.createPanel(t, document.OffGrid())
	path := "/" + strconv.FormatInt(id, 10)

	w := env.do(t, http.MethodPut, "/999", itemsBody(t, document.OffGrid()))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, MsgPanelNotFound, decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodPut, path, itemsBody(t, []string{"off"}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, document.ReasonGridSize, decode[ErrorResponse](t, w).Error)

	w = env.do(t, http.MethodPut, "/abc", itemsBody(t, document.OffGrid()))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodGet, path, "")
	assert.Equal(t, document.OffGrid(), decode[[]string](t, w))
}

func TestDeletePanel(t *testing.T) {
	env := newTestEnv(t)
	id := env.createPanel(t, document.OffGrid())
	path := "/" + strconv.FormatInt(id, 10)

	w := env.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MsgPanelDeleted, decode[MessageResponse](t, w).Message)

	w = env.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, MsgPanelNotFound, decode[ErrorResponse](t, w).Error)
}

func TestPersistFailure(t *testing.T) {
	env := newTestEnv(t)
	id := env.createPanel(t, document.OffGrid())
	path := "/" + strconv.FormatInt(id, 10)
	env.persister.SetFail(true)

	requests := []struct {
		method, path, body string
	}{
		{http.MethodPut, "/parameters/A", `{"value": 9}`},
		{http.MethodPost, "/", itemsBody(t, document.OffGrid())},
		{http.MethodPut, path, itemsBody(t, testutil.ScenarioCells())},
		{http.MethodDelete, path, ""},
	}

	for _, req := range requests {
		w := env.do(t, req.method, req.path, req.body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, "%s %s", req.method, req.path)
		assert.Equal(t, MsgPersistFailed, decode[ErrorResponse](t, w).Error)
	}

	ctx := context.Background()
	assert.Equal(t, 0, env.panels.GetParameters(ctx)["A"])
	assert.Len(t, env.panels.GetPanels(ctx), 1)
	cells, err := env.panels.GetPanel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, document.OffGrid(), cells)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.createPanel(t, testutil.ScenarioCells())

	w := env.do(t, http.MethodGet, "/export", "")

	require.Equal(t, http.StatusOK, w.Code)
	exported := decode[export.ExportedDocument](t, w)
	assert.Equal(t, export.FormatVersion, exported.Version)
	assert.Equal(t, "test", exported.Metadata.ServerVersion)
	assert.Len(t, exported.Parameters, 3)
	require.Len(t, exported.Panels, 1)
	assert.Equal(t, 3, exported.Panels[0].Bound)
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/parameters", "")
	env.do(t, http.MethodGet, "/77", "")

	assert.Equal(t, 1.0, promtestutil.ToFloat64(env.metrics.RequestsTotal.WithLabelValues("GET", "/parameters", "200")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(env.metrics.RequestsTotal.WithLabelValues("GET", "/{panelID}", "404")))

	w := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "panelboard_http_requests_total")
	assert.Contains(t, w.Body.String(), "panelboard_document_panels")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/1", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, "http://example.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

func TestOptionalRoutes(t *testing.T) {
	svc, err := panel.Open(context.Background(), &testutil.FailingPersister{}, testutil.ScenarioDocument())
	require.NoError(t, err)
	router := NewRouter(Options{Panels: svc})

	// Without metrics /metrics falls through to the panel route
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
