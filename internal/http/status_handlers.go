package http

import (
	"context"
	nethttp "net/http"
	"time"

	"go-airflow-monitor-ui/internal/connectors/airflow"
)

const upstreamProbeTimeout = 8 * time.Second

// upstreamStatusHandler reports what Airflow says about its own components.
// It always answers 200; "ok" carries the verdict.
func upstreamStatusHandler(baseURL string, gw gateway, creds airflow.Credentials, m *metrics) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), upstreamProbeTimeout)
		defer cancel()

		payload := map[string]any{
			"generated_at": time.Now().UTC(),
			"upstream":     baseURL,
		}
		for k, v := range airflowStatus(ctx, gw, creds, m) {
			payload[k] = v
		}
		writeJSON(w, nethttp.StatusOK, payload)
	}
}

func airflowStatus(ctx context.Context, gw gateway, creds airflow.Credentials, m *metrics) map[string]any {
	token, _ := creds.Token()

	start := time.Now()
	res := gw.Health(ctx, token)
	m.observeUpstream("Health", time.Since(start), res.Err)
	if !res.OK() {
		return map[string]any{"ok": false, "error": res.Err.Error()}
	}

	return map[string]any{"ok": res.Value.Healthy(), "components": res.Value}
}
