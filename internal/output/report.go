package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"reporanger/internal/ops"
)

// ReportSink accumulates streamed results and writes a Markdown run report
// on Close.
type ReportSink struct {
	path         string
	file         *os.File
	mu           sync.Mutex
	results      []ops.Result
	op           string
	runID        string
	dryRun       bool
	exitCode     int
	haveExitCode bool
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{
		path: path,
		file: f,
	}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := v.(type) {
	case ops.Result:
		s.results = append(s.results, t)
		if s.op == "" {
			s.op = t.Op
		}
	case Event:
		if t.Op != "" {
			s.op = t.Op
		}
		if t.RunID != "" {
			s.runID = t.RunID
		}
		if t.Type == "run.started" && t.DryRun {
			s.dryRun = true
		}
		if t.Type == "run.finished" {
			s.exitCode = t.ExitCode
			s.haveExitCode = true
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeErr := func(err error) error {
		_ = s.file.Close()
		return err
	}

	counts := make(map[ops.Status]int)
	var failures, skips, retried []ops.Result
	for _, r := range s.results {
		counts[r.Status]++
		switch r.Status {
		case ops.StatusFailed:
			failures = append(failures, r)
		case ops.StatusSkipped:
			skips = append(skips, r)
		case ops.StatusRetried:
			retried = append(retried, r)
		}
	}

	var b strings.Builder
	b.WriteString("# RepoRanger Run Report\n\n")

	// --- Summary ---
	b.WriteString("## Summary\n\n")
	if s.op != "" {
		b.WriteString(fmt.Sprintf("- **Operation**: %s\n", s.op))
	}
	if s.runID != "" {
		b.WriteString(fmt.Sprintf("- **Run ID**: %s\n", s.runID))
	}
	if s.dryRun {
		b.WriteString("- **Mode**: dry run (no changes were applied)\n")
	}
	b.WriteString(fmt.Sprintf("- **Repositories**: %d\n", len(s.results)))
	for _, st := range []ops.Status{ops.StatusSucceeded, ops.StatusRetried, ops.StatusFailed, ops.StatusSkipped} {
		if counts[st] > 0 {
			b.WriteString(fmt.Sprintf("- **%s**: %d\n", titleStatus(st), counts[st]))
		}
	}
	if s.haveExitCode {
		b.WriteString(fmt.Sprintf("- **Exit code**: %d\n", s.exitCode))
	}
	b.WriteString("\n")

	// --- Failures ---
	b.WriteString("## Failures\n\n")
	if len(failures) == 0 {
		b.WriteString("- None\n\n")
	} else {
		// Group by error kind so systemic problems (permissions, rate limits)
		// stand out from one-off repo issues.
		byKind := make(map[ops.ErrorKind][]ops.Result)
		for _, f := range failures {
			byKind[f.Kind] = append(byKind[f.Kind], f)
		}
		var kinds []string
		for k := range byKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)

		for _, k := range kinds {
			group := byKind[ops.ErrorKind(k)]
			sort.Slice(group, func(i, j int) bool { return group[i].Repo < group[j].Repo })
			b.WriteString(fmt.Sprintf("### %s (%d repos)\n\n", k, len(group)))
			for _, f := range group {
				b.WriteString(fmt.Sprintf("- **%s**: %s", f.Repo, f.Message))
				if f.Attempts > 1 {
					b.WriteString(fmt.Sprintf(" _(after %d attempts)_", f.Attempts))
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	// --- Recovered after retry ---
	if len(retried) > 0 {
		b.WriteString("## Recovered After Retry\n\n")
		sort.Slice(retried, func(i, j int) bool { return retried[i].Repo < retried[j].Repo })
		for _, r := range retried {
			b.WriteString(fmt.Sprintf("- **%s**: %s (%d attempts)\n", r.Repo, r.Value, r.Attempts))
		}
		b.WriteString("\n")
	}

	// --- Skipped ---
	b.WriteString("## Skipped\n\n")
	if len(skips) == 0 {
		b.WriteString("- None\n\n")
	} else {
		sort.Slice(skips, func(i, j int) bool { return skips[i].Repo < skips[j].Repo })
		for _, r := range skips {
			b.WriteString(fmt.Sprintf("- **%s**: %s\n", r.Repo, r.Message))
		}
		b.WriteString("\n")
	}

	// --- Per-repo outcomes ---
	b.WriteString("## Per-repo outcomes\n\n")
	b.WriteString("| Repo | Status | Attempts | Detail |\n")
	b.WriteString("| --- | --- | ---: | --- |\n")
	sorted := make([]ops.Result, len(s.results))
	copy(sorted, s.results)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Status != sorted[j].Status {
			return statusRank(sorted[i].Status) < statusRank(sorted[j].Status)
		}
		return sorted[i].Repo < sorted[j].Repo
	})
	for _, r := range sorted {
		detail := r.Value
		if detail == "" {
			detail = r.Message
		}
		if r.Status == ops.StatusFailed && r.Kind != "" {
			detail = fmt.Sprintf("%s: %s", r.Kind, r.Message)
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n", r.Repo, r.Status, r.Attempts, detail))
	}
	b.WriteString("\n")

	if _, err := s.file.WriteString(b.String()); err != nil {
		return writeErr(err)
	}
	return s.file.Close()
}

func titleStatus(st ops.Status) string {
	s := strings.ToLower(string(st))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func statusRank(st ops.Status) int {
	switch st {
	case ops.StatusFailed:
		return 0
	case ops.StatusSkipped:
		return 1
	case ops.StatusRetried:
		return 2
	case ops.StatusSucceeded:
		return 3
	default:
		return 4
	}
}
