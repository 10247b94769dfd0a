package http

import (
	"context"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"go-airflow-monitor-ui/internal/connectors/airflow"
	"go-airflow-monitor-ui/internal/logger"
)

const defaultTryNumber = "1"

func statusHandler(gw gateway, creds airflow.Credentials, m *metrics) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		token, _ := creds.Token()
		params, ok := requireParams(w, r, "dag_id")
		if !ok {
			return
		}
		dagID := params[0]

		start := time.Now()
		res := gw.LatestStatus(r.Context(), dagID, token)
		m.observeUpstream("LatestStatus", time.Since(start), res.Err)

		writeJSON(w, nethttp.StatusOK, airflow.StatusOrUnavailable(dagID, res))
	}
}

func runsHandler(defaultLimit int, gw gateway, creds airflow.Credentials, m *metrics) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		token, _ := creds.Token()
		params, ok := requireParams(w, r, "dag_id")
		if !ok {
			return
		}
		dagID := params[0]
		limit := parseLimit(r, defaultLimit)

		start := time.Now()
		res := gw.RecentRuns(r.Context(), dagID, token, limit)
		m.observeUpstream("RecentRuns", time.Since(start), res.Err)

		writeJSON(w, nethttp.StatusOK, airflow.ListOrEmpty(res))
	}
}

func tasksHandler(gw gateway, creds airflow.Credentials, m *metrics) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		token, _ := creds.Token()
		params, ok := requireParams(w, r, "dag_id", "dag_run_id")
		if !ok {
			return
		}

		start := time.Now()
		res := gw.TaskInstances(r.Context(), params[0], params[1], token)
		m.observeUpstream("TaskInstances", time.Since(start), res.Err)

		writeJSON(w, nethttp.StatusOK, airflow.ListOrEmpty(res))
	}
}

func logsHandler(gw gateway, creds airflow.Credentials, m *metrics) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		token, _ := creds.Token()
		params, ok := requireParams(w, r, "dag_id", "dag_run_id", "task_id")
		if !ok {
			return
		}
		tryNumber := r.URL.Query().Get("try_number")
		if tryNumber == "" {
			tryNumber = defaultTryNumber
		}

		start := time.Now()
		res := gw.TaskLog(r.Context(), params[0], params[1], params[2], tryNumber, token)
		m.observeUpstream("TaskLog", time.Since(start), res.Err)

		writeJSON(w, nethttp.StatusOK, airflow.LogOrMessage(res))
	}
}

// requireParams returns the first value of each named query parameter. When
// any is missing or empty it answers 400 and reports false.
func requireParams(w nethttp.ResponseWriter, r *nethttp.Request, names ...string) ([]string, bool) {
	query := r.URL.Query()
	values := make([]string, len(names))
	var missing []string
	for i, name := range names {
		values[i] = query.Get(name)
		if values[i] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		logMissing(r.Context(), r.URL.Path, missing)
		writeJSON(w, nethttp.StatusBadRequest, map[string]any{
			"error": "missing required parameter: " + strings.Join(missing, ", "),
		})
		return nil, false
	}
	return values, true
}

func logMissing(ctx context.Context, path string, missing []string) {
	logger.Debug(ctx, "rejected request with missing parameters",
		slog.String("path", path),
		slog.String("missing", strings.Join(missing, ",")))
}

func parseLimit(r *nethttp.Request, defaultLimit int) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}
