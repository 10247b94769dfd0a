package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-airflow-monitor-ui/internal/config"
	"go-airflow-monitor-ui/internal/connectors/airflow"
	"go-airflow-monitor-ui/internal/logger"
)

type call struct {
	op     string
	args   []string
	limit  int
	token  string
	hasCtx bool
}

type fakeGateway struct {
	calls  []call
	status airflow.Result[airflow.DagStatus]
	runs   airflow.Result[[]airflow.DagRun]
	tasks  airflow.Result[[]airflow.TaskInstance]
	log    airflow.Result[string]
	health airflow.Result[airflow.Health]
}

func (f *fakeGateway) LatestStatus(ctx context.Context, dagID, token string) airflow.Result[airflow.DagStatus] {
	f.calls = append(f.calls, call{op: "LatestStatus", args: []string{dagID}, token: token, hasCtx: ctx != nil})
	return f.status
}

func (f *fakeGateway) RecentRuns(ctx context.Context, dagID, token string, limit int) airflow.Result[[]airflow.DagRun] {
	f.calls = append(f.calls, call{op: "RecentRuns", args: []string{dagID}, limit: limit, token: token, hasCtx: ctx != nil})
	return f.runs
}

func (f *fakeGateway) TaskInstances(ctx context.Context, dagID, dagRunID, token string) airflow.Result[[]airflow.TaskInstance] {
	f.calls = append(f.calls, call{op: "TaskInstances", args: []string{dagID, dagRunID}, token: token, hasCtx: ctx != nil})
	return f.tasks
}

func (f *fakeGateway) TaskLog(ctx context.Context, dagID, dagRunID, taskID, tryNumber, token string) airflow.Result[string] {
	f.calls = append(f.calls, call{op: "TaskLog", args: []string{dagID, dagRunID, taskID, tryNumber}, token: token, hasCtx: ctx != nil})
	return f.log
}

func (f *fakeGateway) Health(ctx context.Context, token string) airflow.Result[airflow.Health] {
	f.calls = append(f.calls, call{op: "Health", token: token, hasCtx: ctx != nil})
	return f.health
}

var testCreds = airflow.Credentials{Username: "airflow", Password: "airflow"}

func testRouter(gw gateway) http.Handler {
	cfg := config.Config{RecentRunsLimit: 5, AirflowBaseURL: "http://airflow.test/api/v1"}
	return newRouter(cfg, gw, testCreds, logger.NewLogger(logger.WithQuiet()))
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestStatusHandler_Success(t *testing.T) {
	runID := "run_1"
	gw := &fakeGateway{status: airflow.Result[airflow.DagStatus]{Value: airflow.DagStatus{
		DagID: "etl_daily", DagRunID: &runID, State: "success", ExecutionDate: "2024-01-01T00:00:00Z",
	}}}

	rr := serve(t, testRouter(gw), http.MethodGet, "/api/status?dag_id=etl_daily&dag_id=ignored")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"dag_id":"etl_daily","dag_run_id":"run_1","state":"success","execution_date":"2024-01-01T00:00:00Z"}`, rr.Body.String())
	require.Len(t, gw.calls, 1)
	assert.Equal(t, []string{"etl_daily"}, gw.calls[0].args)
	token, _ := testCreds.Token()
	assert.Equal(t, token, gw.calls[0].token)
}

func TestStatusHandler_FailureMapsToSentinel(t *testing.T) {
	gw := &fakeGateway{status: airflow.Result[airflow.DagStatus]{Err: errors.New("dial tcp: connection refused")}}

	rr := serve(t, testRouter(gw), http.MethodGet, "/api/status?dag_id=x")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"dag_id":"x","state":"N/A","execution_date":"N/A","dag_run_id":null}`, rr.Body.String())
}

func TestMissingParametersReturnBadRequest(t *testing.T) {
	tests := []struct {
		target  string
		missing string
	}{
		{"/api/status", "dag_id"},
		{"/api/status?dag_id=", "dag_id"},
		{"/api/runs", "dag_id"},
		{"/api/tasks?dag_id=a", "dag_run_id"},
		{"/api/tasks", "dag_id, dag_run_id"},
		{"/api/logs?dag_id=a&dag_run_id=r1", "task_id"},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			gw := &fakeGateway{}
			rr := serve(t, testRouter(gw), http.MethodGet, tc.target)

			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			body := decode[map[string]string](t, rr)
			assert.Equal(t, "missing required parameter: "+tc.missing, body["error"])
			assert.Empty(t, gw.calls, "no upstream call on client error")
		})
	}
}

func TestRunsHandler(t *testing.T) {
	gw := &fakeGateway{runs: airflow.Result[[]airflow.DagRun]{Value: []airflow.DagRun{
		{DagRunID: "run_2", State: "running", ExecutionDate: "2024-01-02T00:00:00Z"},
	}}}
	h := testRouter(gw)

	rr := serve(t, h, http.MethodGet, "/api/runs?dag_id=etl_daily")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"dag_run_id":"run_2","state":"running","execution_date":"2024-01-02T00:00:00Z"}]`, rr.Body.String())
	assert.Equal(t, 5, gw.calls[0].limit)

	serve(t, h, http.MethodGet, "/api/runs?dag_id=etl_daily&limit=20")
	assert.Equal(t, 20, gw.calls[1].limit)

	serve(t, h, http.MethodGet, "/api/runs?dag_id=etl_daily&limit=abc")
	assert.Equal(t, 5, gw.calls[2].limit)
}

func TestListHandlers_FailureIsEmptyArray(t *testing.T) {
	gw := &fakeGateway{
		runs:  airflow.Result[[]airflow.DagRun]{Err: errors.New("timeout")},
		tasks: airflow.Result[[]airflow.TaskInstance]{Err: errors.New("timeout")},
	}
	h := testRouter(gw)

	rr := serve(t, h, http.MethodGet, "/api/runs?dag_id=etl_daily")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = serve(t, h, http.MethodGet, "/api/tasks?dag_id=etl_daily&dag_run_id=run_1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestTasksHandler(t *testing.T) {
	gw := &fakeGateway{tasks: airflow.Result[[]airflow.TaskInstance]{Value: []airflow.TaskInstance{
		{TaskID: "extract", State: "success", TryNumber: 1},
	}}}

	rr := serve(t, testRouter(gw), http.MethodGet, "/api/tasks?dag_id=etl&dag_run_id=2024-01-01T00%3A00%3A00%2B00%3A00")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"task_id":"extract","state":"success","try_number":1}]`, rr.Body.String())
	assert.Equal(t, []string{"etl", "2024-01-01T00:00:00+00:00"}, gw.calls[0].args)
}

func TestLogsHandler(t *testing.T) {
	gw := &fakeGateway{log: airflow.Result[string]{Value: "line1\nline2"}}
	h := testRouter(gw)

	rr := serve(t, h, http.MethodGet, "/api/logs?dag_id=a&dag_run_id=r1&task_id=t1&try_number=2")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "line1\nline2", decode[airflow.LogContent](t, rr).Content)
	assert.Equal(t, []string{"a", "r1", "t1", "2"}, gw.calls[0].args)

	serve(t, h, http.MethodGet, "/api/logs?dag_id=a&dag_run_id=r1&task_id=t1")
	assert.Equal(t, "1", gw.calls[1].args[3], "try_number defaults to the first attempt")
}

func TestLogsHandler_FailureBecomesContent(t *testing.T) {
	gw := &fakeGateway{log: airflow.Result[string]{Err: errors.New("airflow status=404")}}

	rr := serve(t, testRouter(gw), http.MethodGet, "/api/logs?dag_id=a&dag_run_id=r1&task_id=t1&try_number=1")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"content":"airflow status=404"}`, rr.Body.String())
}

func TestFallbackServesPage(t *testing.T) {
	h := testRouter(&fakeGateway{})
	for _, target := range []string{"/", "/index.html", "/API/status?dag_id=x", "/api/status/", "/api/unknown"} {
		rr := serve(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusOK, rr.Code, target)
		assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"), target)
		assert.Contains(t, rr.Body.String(), "<title>Airflow Monitor</title>", target)
	}
}

func TestNonGetRequests(t *testing.T) {
	h := testRouter(&fakeGateway{})

	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, h, http.MethodPost, "/api/status?dag_id=x").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, h, http.MethodDelete, "/").Code)
}

func TestAmbientRoutes(t *testing.T) {
	h := testRouter(&fakeGateway{})

	rr := serve(t, h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])

	assert.Equal(t, http.StatusNoContent, serve(t, h, http.MethodGet, "/favicon.ico").Code)

	serve(t, h, http.MethodGet, "/api/status")
	rr = serve(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `airflow_monitor_http_requests_total{method="GET",route="/api/status",status="400"} 1`)
}

func TestUpstreamMetricsRecorded(t *testing.T) {
	gw := &fakeGateway{status: airflow.Result[airflow.DagStatus]{Err: errors.New("down")}}
	h := testRouter(gw)

	serve(t, h, http.MethodGet, "/api/status?dag_id=x")
	rr := serve(t, h, http.MethodGet, "/metrics")

	assert.Contains(t, rr.Body.String(), `airflow_monitor_upstream_requests_total{operation="LatestStatus",outcome="error"} 1`)
}

func TestUpstreamStatus(t *testing.T) {
	gw := &fakeGateway{health: airflow.Result[airflow.Health]{Value: airflow.Health{
		"metadatabase": {Status: "healthy"},
		"scheduler":    {Status: "unhealthy", LatestHeartbeat: "2024-01-01T00:00:00+00:00"},
	}}}

	rr := serve(t, testRouter(gw), http.MethodGet, "/api/upstream")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "http://airflow.test/api/v1", body["upstream"])
	components := body["components"].(map[string]any)
	assert.Equal(t, "unhealthy", components["scheduler"].(map[string]any)["status"])
}

func TestUpstreamStatus_Failure(t *testing.T) {
	gw := &fakeGateway{health: airflow.Result[airflow.Health]{Err: errors.New("connection refused")}}

	rr := serve(t, testRouter(gw), http.MethodGet, "/api/upstream")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "connection refused", body["error"])
}
