package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: if you add/change/remove config fields that affect run
	// behavior, keep these in sync:
	// - CLI flags in internal/cli/apply.go
	// - file keys in internal/config/file.go
	Targeting Targeting
	Op        Op
	Output    Output
	Runtime   Runtime
}

type Targeting struct {
	// Org is the GitHub organization account to target (name or URL; see --org).
	Org string

	// User is the GitHub user account to target (name or URL; see --user).
	User string

	// Repos is an explicit list of repositories as OWNER/REPO (see --repos).
	// With --org or --user it acts as an include filter instead. Values may be
	// provided as repeated flags and/or comma-separated lists.
	Repos []string

	// Include filters repositories by name using Go path.Match style (see --include).
	// If a pattern contains '/', it matches OWNER/REPO; otherwise it matches repo name.
	Include []string

	// Exclude filters repositories by name using Go path.Match style (see --exclude).
	// Same matching rules as Include.
	Exclude []string

	// Topic requires repositories to have at least one matching topic (exact
	// match; see --topic). Repeated flags and comma-separated lists accepted.
	Topic []string

	// Visibility filters repositories by visibility (see --visibility).
	// Allowed values: public, private, internal, all.
	Visibility string

	// Archived controls how archived repos are handled (see --archived).
	// Allowed values: include, exclude, only.
	Archived string

	// Forks controls how forked repos are handled (see --forks).
	// Allowed values: include, exclude, only.
	Forks string

	// MaxRepos limits how many repositories to target (see --max-repos). 0 means unlimited.
	MaxRepos int
}

type Op struct {
	// Name selects the operation to run (see `reporanger ops` for the catalog).
	Name string

	// Set provides per-operation option overrides from the CLI.
	// Entries are of the form op.option=value (repeatable; comma-separated
	// accepted; see --set). Option values that themselves hold lists use ';'
	// as the element separator.
	Set []string

	// DryRun runs the operation without performing any mutating API call;
	// each repository reports what it would have changed (see --dry-run).
	DryRun bool
}

type Output struct {
	// ConsoleFormat controls the human-facing console sink format (see --console-format).
	// Allowed values: text, json, ndjson.
	ConsoleFormat string

	// ConsoleFilterStatus filters console output by outcome status (see --console-filter-status).
	// Allowed values: SUCCEEDED, RETRIED, FAILED, SKIPPED.
	ConsoleFilterStatus []string

	// Report writes a Markdown run report to this path (see --report).
	Report string

	// Out writes structured output to this path (see --out).
	Out string

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson. If empty, it is inferred from the --out file extension.
	OutFormat string

	// NoConsole suppresses the console sink (see --no-console).
	// Use with --out/--report for machine-readable output.
	NoConsole bool

	// NoColor disables ANSI colors in text console output (see --no-color).
	NoColor bool
}

type Runtime struct {
	// Concurrency controls how many repositories are worked in parallel (see --concurrency).
	// Must be >= 1.
	Concurrency int

	// Timeout is the global deadline for the run (see --timeout). Must be > 0.
	Timeout time.Duration

	// MaxAttempts bounds the per-repository attempt sequence (see --max-attempts).
	// Must be >= 1; 1 disables retries.
	MaxAttempts int

	// BackoffBase is the delay before the first retry (see --backoff-base).
	BackoffBase time.Duration

	// BackoffCap bounds the exponential backoff delay (see --backoff-cap).
	BackoffCap time.Duration

	// Verbose enables request-level diagnostics on stderr.
	Verbose bool
}

func New() *Config {
	return &Config{
		Targeting: Targeting{
			Visibility: "all",
			Archived:   "exclude",
			Forks:      "exclude",
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: 10,
			Timeout:     30 * time.Minute,
			MaxAttempts: 5,
			BackoffBase: 1 * time.Second,
			BackoffCap:  60 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Targeting.Repos = splitCommaList(c.Targeting.Repos)
	c.Targeting.Topic = splitCommaList(c.Targeting.Topic)
	c.Op.Set = splitCommaList(c.Op.Set)

	// Normalize account selectors.
	if c.Targeting.Org != "" {
		org, err := normalizeAccountSelector(c.Targeting.Org)
		if err != nil {
			return fmt.Errorf("invalid --org value: %w", err)
		}
		c.Targeting.Org = org
	}
	if c.Targeting.User != "" {
		user, err := normalizeAccountSelector(c.Targeting.User)
		if err != nil {
			return fmt.Errorf("invalid --user value: %w", err)
		}
		c.Targeting.User = user
	}

	// Targeting validation
	if c.Targeting.Org == "" && c.Targeting.User == "" && len(c.Targeting.Repos) == 0 {
		return errors.New("at least one of --org, --user, or --repos must be provided")
	}
	if c.Targeting.Org != "" && c.Targeting.User != "" {
		return errors.New("--org and --user are mutually exclusive")
	}

	// Op validation
	if strings.TrimSpace(c.Op.Name) == "" {
		return errors.New("an operation name is required; see `reporanger ops` for the catalog")
	}

	// Output validation
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		return errors.New("--console-format must be one of: text, json, ndjson")
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	for i, st := range c.Output.ConsoleFilterStatus {
		v := strings.ToUpper(strings.TrimSpace(st))
		switch v {
		case "SUCCEEDED", "RETRIED", "FAILED", "SKIPPED":
			c.Output.ConsoleFilterStatus[i] = v
		default:
			return fmt.Errorf("unsupported --console-filter-status: %s (must be one of: SUCCEEDED, RETRIED, FAILED, SKIPPED)", st)
		}
	}

	// Targeting enum validation
	c.Targeting.Visibility = normalizeEnumValue(c.Targeting.Visibility)
	if c.Targeting.Visibility == "" {
		c.Targeting.Visibility = "all"
	}
	if c.Targeting.Visibility != "public" && c.Targeting.Visibility != "private" && c.Targeting.Visibility != "internal" && c.Targeting.Visibility != "all" {
		return fmt.Errorf("unsupported --visibility: %s (must be one of: public, private, internal, all)", c.Targeting.Visibility)
	}

	c.Targeting.Archived = normalizeEnumValue(c.Targeting.Archived)
	if c.Targeting.Archived == "" {
		c.Targeting.Archived = "exclude"
	}
	if c.Targeting.Archived != "include" && c.Targeting.Archived != "exclude" && c.Targeting.Archived != "only" {
		return fmt.Errorf("unsupported --archived: %s (must be one of: include, exclude, only)", c.Targeting.Archived)
	}

	c.Targeting.Forks = normalizeEnumValue(c.Targeting.Forks)
	if c.Targeting.Forks == "" {
		c.Targeting.Forks = "exclude"
	}
	if c.Targeting.Forks != "include" && c.Targeting.Forks != "exclude" && c.Targeting.Forks != "only" {
		return fmt.Errorf("unsupported --forks: %s (must be one of: include, exclude, only)", c.Targeting.Forks)
	}

	// Runtime validation
	if c.Targeting.MaxRepos < 0 {
		return errors.New("--max-repos must be >= 0")
	}
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	if c.Runtime.MaxAttempts <= 0 {
		return errors.New("--max-attempts must be >= 1")
	}
	if c.Runtime.BackoffBase <= 0 {
		return errors.New("--backoff-base must be > 0")
	}
	if c.Runtime.BackoffCap < c.Runtime.BackoffBase {
		return errors.New("--backoff-cap must be >= --backoff-base")
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else {
			if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
				return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
			}
		}
	}

	// Option assignment syntax validation (op.option=value)
	if len(c.Op.Set) > 0 {
		if _, err := ParseOpOptionAssignments(c.Op.Set); err != nil {
			return err
		}
	}

	return nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizeAccountSelector(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	// Accept a raw account name, or a GitHub URL like:
	//   https://github.com/<name>
	//   https://github.com/orgs/<name>
	//   https://github.com/users/<name>
	//   github.com/<name>
	if strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/") {
		raw = "https://" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%q", raw)
		}
		host := strings.ToLower(u.Hostname())
		if host == "www.github.com" {
			host = "github.com"
		}
		if host != "github.com" {
			return "", fmt.Errorf("%q", raw)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			return "", fmt.Errorf("%q", raw)
		}
		if parts[0] == "orgs" || parts[0] == "users" {
			if len(parts) < 2 {
				return "", fmt.Errorf("%q", raw)
			}
			return parts[1], nil
		}
		return parts[0], nil
	}

	// Basic sanity: reject obvious repo-like inputs.
	if strings.Contains(raw, "/") {
		return "", fmt.Errorf("%q", raw)
	}
	return raw, nil
}

// ParseOpOptionAssignments parses values of the form "opID.option=value".
//
// Notes:
// - Entries may be provided via repeated flags and/or comma-delimited lists.
// - This validates syntax only (no validation of op IDs or option names).
// - Empty values are allowed ("op.option=").
func ParseOpOptionAssignments(values []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	for _, raw := range splitCommaList(values) {
		left, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set entry %q: expected op.option=value", raw)
		}
		left = strings.TrimSpace(left)
		value = strings.TrimSpace(value)
		opID, opt, ok := strings.Cut(left, ".")
		if !ok {
			return nil, fmt.Errorf("invalid --set entry %q: expected op.option=value", raw)
		}
		opID = strings.TrimSpace(opID)
		opt = strings.TrimSpace(opt)
		if opID == "" || opt == "" {
			return nil, fmt.Errorf("invalid --set entry %q: expected non-empty op and option", raw)
		}
		if _, ok := out[opID]; !ok {
			out[opID] = make(map[string]string)
		}
		out[opID][opt] = value
	}
	return out, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
