package airflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"go-airflow-monitor-ui/internal/config"
	"go-airflow-monitor-ui/internal/logger"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultRunsLimit = 5
	maxErrorBody     = 512
)

// ErrNoRuns is returned by LatestStatus when the DAG has no runs.
var ErrNoRuns = errors.New("no dag runs found")

// StatusError is a non-200 answer from the Airflow API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("airflow status=%d", e.Code)
	}
	return fmt.Sprintf("airflow status=%d body=%s", e.Code, e.Body)
}

// Client issues read-only calls against the Airflow stable REST API.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for cfg.AirflowBaseURL. Every call is a single
// attempt bounded by cfg.AirflowTimeout.
func NewClient(cfg config.Config) *Client {
	timeout := cfg.AirflowTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.AirflowBaseURL), "/")
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetLogger(restyLogger{}).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &Client{http: rc}
}

// LatestStatus fetches the newest run of dagID.
func (c *Client) LatestStatus(ctx context.Context, dagID, token string) Result[DagStatus] {
	runs := c.listRuns(ctx, "LatestStatus", dagID, token, 1)
	if !runs.OK() {
		return failed[DagStatus](runs.Err)
	}
	if len(runs.Value) == 0 {
		c.logFailure(ctx, "LatestStatus", dagID, ErrNoRuns)
		return failed[DagStatus](ErrNoRuns)
	}
	latest := runs.Value[0]
	runID := latest.DagRunID
	return ok(DagStatus{
		DagID:         dagID,
		DagRunID:      &runID,
		State:         latest.State,
		ExecutionDate: latest.ExecutionDate,
	})
}

// RecentRuns fetches up to limit runs of dagID, newest first. A non-positive
// limit means the default of 5.
func (c *Client) RecentRuns(ctx context.Context, dagID, token string, limit int) Result[[]DagRun] {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	return c.listRuns(ctx, "RecentRuns", dagID, token, limit)
}

func (c *Client) listRuns(ctx context.Context, op, dagID, token string, limit int) Result[[]DagRun] {
	body, err := c.get(ctx, token, "/dags/{dag_id}/dagRuns",
		map[string]string{"dag_id": dagID},
		map[string]string{
			"limit":    strconv.Itoa(limit),
			"order_by": "-execution_date",
		})
	if err != nil {
		c.logFailure(ctx, op, dagID, err)
		return failed[[]DagRun](err)
	}

	var raw dagRunsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		err = fmt.Errorf("decode dag runs: %w", err)
		c.logFailure(ctx, op, dagID, err)
		return failed[[]DagRun](err)
	}
	return ok(raw.runs())
}

// TaskInstances fetches the task instances of one run.
func (c *Client) TaskInstances(ctx context.Context, dagID, dagRunID, token string) Result[[]TaskInstance] {
	body, err := c.get(ctx, token, "/dags/{dag_id}/dagRuns/{dag_run_id}/taskInstances",
		map[string]string{"dag_id": dagID, "dag_run_id": dagRunID}, nil)
	if err != nil {
		c.logFailure(ctx, "TaskInstances", dagID, err, slog.String("dag-run-id", dagRunID))
		return failed[[]TaskInstance](err)
	}

	var raw taskInstancesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		err = fmt.Errorf("decode task instances: %w", err)
		c.logFailure(ctx, "TaskInstances", dagID, err, slog.String("dag-run-id", dagRunID))
		return failed[[]TaskInstance](err)
	}
	return ok(raw.tasks())
}

// TaskLog fetches the log of one task attempt. The API answers either
// {"content": "..."} or some other JSON document; the latter is returned as
// its JSON text.
func (c *Client) TaskLog(ctx context.Context, dagID, dagRunID, taskID, tryNumber, token string) Result[string] {
	body, err := c.get(ctx, token, "/dags/{dag_id}/dagRuns/{dag_run_id}/taskInstances/{task_id}/logs/{try_number}",
		map[string]string{
			"dag_id":     dagID,
			"dag_run_id": dagRunID,
			"task_id":    taskID,
			"try_number": tryNumber,
		}, nil)
	attrs := []any{slog.String("dag-run-id", dagRunID), slog.String("task-id", taskID), slog.String("try-number", tryNumber)}
	if err != nil {
		c.logFailure(ctx, "TaskLog", dagID, err, attrs...)
		return failed[string](err)
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		err = fmt.Errorf("decode task log: %w", err)
		c.logFailure(ctx, "TaskLog", dagID, err, attrs...)
		return failed[string](err)
	}
	if doc, isObject := parsed.(map[string]any); isObject {
		if content, found := doc["content"]; found {
			return ok(stringify(content))
		}
	}
	return ok(string(bytes.TrimSpace(body)))
}

// Health fetches the component health Airflow reports about itself.
func (c *Client) Health(ctx context.Context, token string) Result[Health] {
	body, err := c.get(ctx, token, "/health", nil, nil)
	if err != nil {
		logger.Warn(ctx, "airflow health probe failed", slog.String("operation", "Health"), logger.Err(err))
		return failed[Health](err)
	}

	var raw healthResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		err = fmt.Errorf("decode health: %w", err)
		logger.Warn(ctx, "airflow health probe failed", slog.String("operation", "Health"), logger.Err(err))
		return failed[Health](err)
	}
	return ok(raw.health())
}

func (c *Client) get(ctx context.Context, token, path string, pathParams, query map[string]string) ([]byte, error) {
	escaped := make(map[string]string, len(pathParams))
	for k, v := range pathParams {
		escaped[k] = EscapePathSegment(v)
	}

	req := c.http.R().
		SetContext(ctx).
		SetRawPathParams(escaped)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if token != "" {
		req.SetHeader("Authorization", "Basic "+token)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		blob := resp.Body()
		if len(blob) > maxErrorBody {
			blob = blob[:maxErrorBody]
		}
		return nil, &StatusError{Code: resp.StatusCode(), Body: strings.TrimSpace(string(blob))}
	}
	return resp.Body(), nil
}

func (c *Client) logFailure(ctx context.Context, op, dagID string, err error, attrs ...any) {
	args := append([]any{slog.String("operation", op), slog.String("dag-id", dagID), logger.Err(err)}, attrs...)
	logger.Warn(ctx, "airflow request failed", args...)
}

// EscapePathSegment percent-encodes every byte outside the RFC 3986
// unreserved set, so run ids such as 2024-01-01T00:00:00+00:00 survive as a
// single path segment.
func EscapePathSegment(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if isUnreserved(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[ch>>4])
		b.WriteByte(hex[ch&0x0f])
	}
	return b.String()
}

func isUnreserved(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	case ch == '-', ch == '_', ch == '.', ch == '~':
		return true
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		blob, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(blob)
	}
}

// restyLogger routes resty's own diagnostics through slog.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) {
	logger.Error(context.Background(), fmt.Sprintf(format, v...), slog.String("component", "resty"))
}

func (restyLogger) Warnf(format string, v ...any) {
	logger.Warn(context.Background(), fmt.Sprintf(format, v...), slog.String("component", "resty"))
}

func (restyLogger) Debugf(format string, v ...any) {
	logger.Debug(context.Background(), fmt.Sprintf(format, v...), slog.String("component", "resty"))
}
