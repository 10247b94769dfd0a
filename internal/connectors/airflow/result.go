package airflow

// Result is the outcome of one upstream call: a payload, or the reason it failed.
type Result[T any] struct {
	Value T
	Err   error
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// StatusOrUnavailable maps a failed latest-status lookup to UnavailableStatus.
func StatusOrUnavailable(dagID string, r Result[DagStatus]) DagStatus {
	if !r.OK() {
		return UnavailableStatus(dagID)
	}
	return r.Value
}

// ListOrEmpty maps a failed list lookup to an empty, non-nil slice.
func ListOrEmpty[T any](r Result[[]T]) []T {
	if !r.OK() || r.Value == nil {
		return []T{}
	}
	return r.Value
}

// LogOrMessage maps a failed log fetch to the failure message, so the log
// viewer always receives text.
func LogOrMessage(r Result[string]) LogContent {
	if !r.OK() {
		return LogContent{Content: r.Err.Error()}
	}
	return LogContent{Content: r.Value}
}
