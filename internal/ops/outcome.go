package ops

import "time"

// Status is the terminal state of one repository after all attempts.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	// StatusRetried means the operation succeeded after at least one retry.
	StatusRetried Status = "RETRIED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Attempt records one try of Operation.Apply against one target.
type Attempt struct {
	Number int
	Start  time.Time
	End    time.Time
	// Err is nil when the attempt succeeded.
	Err error
}

// Outcome is the immutable terminal result for one target.
type Outcome struct {
	Status   Status    `json:"status"`
	Value    string    `json:"value,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	Kind     ErrorKind `json:"error_kind,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Succeeded builds a success outcome, distinguishing first-try successes
// from retried ones.
func Succeeded(value string, attempts int) Outcome {
	status := StatusSucceeded
	if attempts > 1 {
		status = StatusRetried
	}
	return Outcome{Status: status, Value: value, Attempts: attempts}
}

func Failed(kind ErrorKind, message string, attempts int) Outcome {
	return Outcome{Status: StatusFailed, Kind: kind, Message: message, Attempts: attempts}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Message: reason}
}

// Result is an Outcome stamped with the repository and operation it belongs
// to; this is the unit output sinks consume.
type Result struct {
	Repo string `json:"repo"`
	Op   string `json:"op"`
	Outcome
}
