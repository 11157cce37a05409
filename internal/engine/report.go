package engine

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"reporanger/internal/ops"
)

// ReportEntry pairs one target repository with its terminal outcome.
type ReportEntry struct {
	Ref     RepositoryRef
	Outcome ops.Outcome
}

// RunReport is the final per-repository outcome listing of one engine
// invocation. Entries are ordered to match the submitted ref sequence,
// regardless of completion order. Immutable once finalized.
type RunReport struct {
	RunID    string
	Op       string
	Started  time.Time
	Duration time.Duration
	Entries  []ReportEntry
}

func (r *RunReport) Counts() map[ops.Status]int {
	counts := make(map[ops.Status]int)
	for _, e := range r.Entries {
		counts[e.Outcome.Status]++
	}
	return counts
}

// Failures returns the entries that ended Failed, in report order.
func (r *RunReport) Failures() []ReportEntry {
	var out []ReportEntry
	for _, e := range r.Entries {
		if e.Outcome.Status == ops.StatusFailed {
			out = append(out, e)
		}
	}
	return out
}

func (r *RunReport) HasFailures() bool {
	for _, e := range r.Entries {
		if e.Outcome.Status == ops.StatusFailed {
			return true
		}
	}
	return false
}

func newRunID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// reportAggregator accumulates outcomes from concurrent workers. Each ref
// submitted to the scheduler owns one slot; Finalize checks that every slot
// was filled exactly once, which is the run's termination condition.
type reportAggregator struct {
	mu        sync.Mutex
	report    *RunReport
	done      []bool
	finalized bool
}

func newReportAggregator(opID string, refs []RepositoryRef, started time.Time) *reportAggregator {
	entries := make([]ReportEntry, len(refs))
	for i, ref := range refs {
		entries[i] = ReportEntry{Ref: ref}
	}
	return &reportAggregator{
		report: &RunReport{
			RunID:   newRunID(started),
			Op:      opID,
			Started: started,
			Entries: entries,
		},
		done: make([]bool, len(refs)),
	}
}

func (a *reportAggregator) Record(i int, outcome ops.Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return fmt.Errorf("record after finalize (slot %d)", i)
	}
	if i < 0 || i >= len(a.done) {
		return fmt.Errorf("record slot %d out of range [0,%d)", i, len(a.done))
	}
	if a.done[i] {
		return fmt.Errorf("slot %d (%s) recorded twice", i, a.report.Entries[i].Ref)
	}
	a.report.Entries[i].Outcome = outcome
	a.done[i] = true
	return nil
}

// Finalize may be called only once, after every ref has a terminal outcome.
func (a *reportAggregator) Finalize(now time.Time) (*RunReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return nil, fmt.Errorf("report already finalized")
	}
	var missing []string
	for i, done := range a.done {
		if !done {
			missing = append(missing, a.report.Entries[i].Ref.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("report incomplete; missing outcomes for: %s", strings.Join(missing, ", "))
	}
	a.finalized = true
	a.report.Duration = now.Sub(a.report.Started)
	return a.report, nil
}
