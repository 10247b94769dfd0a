package airflow

// StateUnavailable marks a status that could not be fetched.
const StateUnavailable = "N/A"

// DagStatus is the latest known state of one DAG.
type DagStatus struct {
	DagID         string  `json:"dag_id"`
	DagRunID      *string `json:"dag_run_id"`
	State         string  `json:"state"`
	ExecutionDate string  `json:"execution_date"`
}

// UnavailableStatus is the placeholder returned when no run data is available.
func UnavailableStatus(dagID string) DagStatus {
	return DagStatus{
		DagID:         dagID,
		DagRunID:      nil,
		State:         StateUnavailable,
		ExecutionDate: StateUnavailable,
	}
}

// Available reports whether s carries a real run.
func (s DagStatus) Available() bool {
	return s.DagRunID != nil
}

// DagRun is one execution of a DAG.
type DagRun struct {
	DagRunID      string `json:"dag_run_id"`
	State         string `json:"state"`
	ExecutionDate string `json:"execution_date"`
}

// TaskInstance is one attempt of one task inside a run.
type TaskInstance struct {
	TaskID    string `json:"task_id"`
	State     string `json:"state"`
	TryNumber int    `json:"try_number"`
}

// LogContent wraps the text of one task attempt log.
type LogContent struct {
	Content string `json:"content"`
}

type dagRunsResponse struct {
	DagRuns []struct {
		DagRunID      string  `json:"dag_run_id"`
		State         *string `json:"state"`
		ExecutionDate string  `json:"execution_date"`
		LogicalDate   string  `json:"logical_date"`
	} `json:"dag_runs"`
}

func (r dagRunsResponse) runs() []DagRun {
	out := make([]DagRun, 0, len(r.DagRuns))
	for _, raw := range r.DagRuns {
		date := raw.ExecutionDate
		if date == "" {
			date = raw.LogicalDate
		}
		out = append(out, DagRun{
			DagRunID:      raw.DagRunID,
			State:         deref(raw.State),
			ExecutionDate: date,
		})
	}
	return out
}

type taskInstancesResponse struct {
	TaskInstances []struct {
		TaskID    string  `json:"task_id"`
		State     *string `json:"state"`
		TryNumber int     `json:"try_number"`
	} `json:"task_instances"`
}

func (r taskInstancesResponse) tasks() []TaskInstance {
	out := make([]TaskInstance, 0, len(r.TaskInstances))
	for _, raw := range r.TaskInstances {
		out = append(out, TaskInstance{
			TaskID:    raw.TaskID,
			State:     deref(raw.State),
			TryNumber: raw.TryNumber,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// HealthyStatus is the status Airflow reports for a working component.
const HealthyStatus = "healthy"

// ComponentHealth is the state of one Airflow component (metadatabase,
// scheduler, triggerer, dag_processor).
type ComponentHealth struct {
	Status          string `json:"status"`
	LatestHeartbeat string `json:"latest_heartbeat,omitempty"`
}

// Health maps component name to its reported state.
type Health map[string]ComponentHealth

// Healthy reports whether every component Airflow listed is healthy.
func (h Health) Healthy() bool {
	if len(h) == 0 {
		return false
	}
	for _, c := range h {
		if c.Status != HealthyStatus {
			return false
		}
	}
	return true
}

type healthResponse map[string]struct {
	Status                   *string `json:"status"`
	LatestSchedulerHeartbeat string  `json:"latest_scheduler_heartbeat"`
	LatestTriggererHeartbeat string  `json:"latest_triggerer_heartbeat"`
	LatestDagProcessorBeat   string  `json:"latest_dag_processor_heartbeat"`
}

func (r healthResponse) health() Health {
	out := make(Health, len(r))
	for name, raw := range r {
		beat := raw.LatestSchedulerHeartbeat
		if beat == "" {
			beat = raw.LatestTriggererHeartbeat
		}
		if beat == "" {
			beat = raw.LatestDagProcessorBeat
		}
		out[name] = ComponentHealth{Status: deref(raw.Status), LatestHeartbeat: beat}
	}
	return out
}
