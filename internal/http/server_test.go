package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-airflow-monitor-ui/internal/config"
	"go-airflow-monitor-ui/internal/logger"
)

// fakeAirflow answers the handful of stable-API endpoints the monitor reads.
func fakeAirflow(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/dags/etl_daily/dagRuns", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Basic YWlyZmxvdzphaXJmbG93" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dag_runs":[{"dag_run_id":"run_1","state":"success","execution_date":"2024-01-01T00:00:00Z"}],"total_entries":1}`))
	})
	mux.HandleFunc("/api/v1/dags/a/dagRuns/r1/taskInstances/t1/logs/1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":"line1\nline2"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, baseURL string) http.Handler {
	t.Helper()
	srv, err := NewServer(config.Config{
		ListenAddr:      "127.0.0.1:0",
		AirflowBaseURL:  baseURL,
		AirflowUser:     "airflow",
		AirflowPassword: "airflow",
		AirflowTimeout:  time.Second,
		RecentRunsLimit: 5,
	}, logger.NewLogger(logger.WithQuiet()))
	require.NoError(t, err)
	return srv.Handler()
}

func TestEndToEnd_LatestStatus(t *testing.T) {
	upstream := fakeAirflow(t)
	h := newTestServer(t, upstream.URL+"/api/v1")

	rr := serve(t, h, http.MethodGet, "/api/status?dag_id=etl_daily")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"dag_id":"etl_daily","dag_run_id":"run_1","state":"success","execution_date":"2024-01-01T00:00:00Z"}`, rr.Body.String())
}

func TestEndToEnd_UpstreamUnreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	baseURL := upstream.URL + "/api/v1"
	upstream.Close()
	h := newTestServer(t, baseURL)

	rr := serve(t, h, http.MethodGet, "/api/status?dag_id=x")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"dag_id":"x","state":"N/A","execution_date":"N/A","dag_run_id":null}`, rr.Body.String())

	rr = serve(t, h, http.MethodGet, "/api/runs?dag_id=x")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = serve(t, h, http.MethodGet, "/api/logs?dag_id=x&dag_run_id=r&task_id=t")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decodeContent(t, rr))
}

func TestEndToEnd_TasksWithoutRunID(t *testing.T) {
	h := newTestServer(t, fakeAirflow(t).URL+"/api/v1")

	rr := serve(t, h, http.MethodGet, "/api/tasks?dag_id=etl_daily")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEndToEnd_TaskLog(t *testing.T) {
	h := newTestServer(t, fakeAirflow(t).URL+"/api/v1")

	rr := serve(t, h, http.MethodGet, "/api/logs?dag_id=a&dag_run_id=r1&task_id=t1&try_number=1")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"content":"line1\nline2"}`, rr.Body.String())
}

func decodeContent(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rr)["content"]
}
