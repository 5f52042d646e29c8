package sentinel

// Status is the final state of one report.
type Status string

const (
	// StatusDelivered means the endpoint accepted the report.
	StatusDelivered Status = "delivered"

	// StatusFiltered means the error filter rejected the error. This is a
	// successful no-op, not a failure.
	StatusFiltered Status = "filtered"

	// StatusFailed means delivery was attempted and did not succeed.
	StatusFailed Status = "failed"

	// StatusDropped means the report was discarded before delivery, e.g. by
	// the rate limiter or because the catcher was not running.
	StatusDropped Status = "dropped"
)

// Outcome describes what happened to one report.
type Outcome struct {
	Status  Status
	EventID string

	// Attempts is the number of HTTP requests issued for the report.
	Attempts int

	// StatusCode is the last HTTP status received, 0 when none was.
	StatusCode int

	// Err is the last error; nil unless Status is failed or dropped.
	Err error
}

// OK reports whether the report reached its intended end state.
func (o Outcome) OK() bool {
	return o.Status == StatusDelivered || o.Status == StatusFiltered
}
