package output

import "reporanger/internal/ops"

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line), including:
// - run.started
// - repo.result
// - run.finished
//
// JSON mode remains an aggregate of ops.Result values.
type Event struct {
	Type string `json:"type"`
	Op   string `json:"op,omitempty"`
	*ops.Result
	RunID    string         `json:"run_id,omitempty"`
	Repos    int            `json:"repos,omitempty"`
	DryRun   bool           `json:"dry_run,omitempty"`
	Counts   map[string]int `json:"counts,omitempty"`
	ExitCode int            `json:"exit_code,omitempty"`
}

func eventFromResult(r ops.Result) Event {
	return Event{Type: "repo.result", Op: r.Op, Result: &r}
}
