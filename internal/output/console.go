package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"reporanger/internal/ops"
)

type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	noColor         bool
	mu              sync.Mutex
	results         []ops.Result // For JSON array output
	allowedStatuses map[string]bool
}

func NewConsoleSink(w io.Writer, format string, filterStatuses []string, noColor bool) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer:  w,
		format:  format,
		noColor: noColor,
	}

	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[string]bool)
		for _, st := range filterStatuses {
			// Normalize for case-insensitive comparison against the
			// SUCCEEDED/RETRIED/FAILED/SKIPPED status strings.
			s.allowedStatuses[strings.ToUpper(st)] = true
		}
	}

	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	// Apply filtering if configured
	if len(s.allowedStatuses) > 0 {
		if r, ok := v.(ops.Result); ok {
			if !s.allowedStatuses[string(r.Status)] {
				return nil
			}
		}
	}

	switch s.format {
	case "json":
		r, ok := v.(ops.Result)
		if !ok {
			// Ignore lifecycle events in JSON console mode.
			return nil
		}
		s.results = append(s.results, r)
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		switch t := v.(type) {
		case Event:
			if err := encoder.Encode(t); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		case ops.Result:
			e := eventFromResult(t)
			if err := encoder.Encode(e); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		default:
			return nil
		}
	case "text":
		switch t := v.(type) {
		case ops.Result:
			if err := s.writeTextResult(t); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		case Event:
			if t.Type != "run.finished" {
				return nil
			}
			if err := s.writeTextSummary(t); err != nil {
				return err
			}
			return flushIfPossible(s.writer)
		default:
			return nil
		}
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeTextResult(r ops.Result) error {
	if _, err := fmt.Fprintf(s.writer, "[%s] %s", s.paintStatus(r.Status), r.Repo); err != nil {
		return err
	}
	detail := r.Value
	if detail == "" {
		detail = r.Message
	}
	if r.Status == ops.StatusFailed && r.Kind != "" {
		detail = fmt.Sprintf("%s: %s", r.Kind, r.Message)
	}
	if detail != "" {
		if _, err := fmt.Fprintf(s.writer, " - %s", detail); err != nil {
			return err
		}
	}
	if r.Attempts > 1 {
		if _, err := fmt.Fprintf(s.writer, " (%d attempts)", r.Attempts); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(s.writer)
	return err
}

func (s *ConsoleSink) writeTextSummary(e Event) error {
	parts := make([]string, 0, 4)
	for _, st := range []ops.Status{ops.StatusSucceeded, ops.StatusRetried, ops.StatusFailed, ops.StatusSkipped} {
		if n := e.Counts[string(st)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(string(st))))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "0 repositories")
	}
	_, err := fmt.Fprintf(s.writer, "Run %s finished: %s\n", e.RunID, strings.Join(parts, ", "))
	return err
}

func (s *ConsoleSink) paintStatus(st ops.Status) string {
	if s.noColor {
		return string(st)
	}
	var c *color.Color
	switch st {
	case ops.StatusSucceeded:
		c = color.New(color.FgGreen)
	case ops.StatusRetried, ops.StatusSkipped:
		c = color.New(color.FgYellow)
	case ops.StatusFailed:
		c = color.New(color.FgRed)
	default:
		return string(st)
	}
	return c.Sprint(string(st))
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.results); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}
