package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"reporanger/internal/config"
	"reporanger/internal/gh"
	"reporanger/internal/ops"
	"reporanger/internal/output"
)

func exitCodeForRun(fatal, failed, cancelled bool) int {
	// Exit code contract:
	// 0 = clean run, every repo succeeded or was skipped
	// 1 = at least one repo failed
	// 2 = run interrupted (cancellation/timeout), no hard failures
	// 3 = fatal error (run did not execute)
	if fatal {
		return 3
	}
	if failed {
		return 1
	}
	if cancelled {
		return 2
	}
	return 0
}

func setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		sink := output.NewConsoleSink(nil, cfg.Output.ConsoleFormat, cfg.Output.ConsoleFilterStatus, cfg.Output.NoColor)
		if err := outMgr.AddSink(sink); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

// resolveAndConfigureOp looks up the selected operation and applies any
// per-operation options supplied via repeated --set flags.
//
// --set values are parsed as "opID.option=value" and routed to the matching
// operation's Configure method (only ops that implement
// ops.ConfigurableOperation).
//
// Example:
//
//	reporanger apply label-sync --org my-org --set label-sync.prune=true
func resolveAndConfigureOp(cfg *config.Config) (ops.Operation, error) {
	op, err := ops.Resolve(cfg.Op.Name)
	if err != nil {
		return nil, err
	}

	if len(cfg.Op.Set) == 0 {
		return op, nil
	}

	assignments, err := config.ParseOpOptionAssignments(cfg.Op.Set)
	if err != nil {
		return nil, err
	}

	for opID, opts := range assignments {
		if opID != op.ID() {
			return nil, fmt.Errorf("--set refers to %q but the selected operation is %q", opID, op.ID())
		}
		co, ok := op.(ops.ConfigurableOperation)
		if !ok {
			return nil, fmt.Errorf("operation %q does not support options", opID)
		}

		allowed := make(map[string]struct{})
		for _, opt := range co.Options() {
			allowed[opt.Name] = struct{}{}
		}
		for name := range opts {
			if _, ok := allowed[name]; !ok {
				return nil, fmt.Errorf("unknown option %q for operation %q", name, opID)
			}
		}

		if err := co.Configure(opts); err != nil {
			return nil, fmt.Errorf("configure operation %q: %w", opID, err)
		}
	}

	return op, nil
}

type Engine struct {
	Client *gh.Client

	// FS is the filesystem handed to operations that read local files.
	// Defaults to the OS filesystem; tests inject an in-memory one.
	FS afero.Fs

	// runScheduler is a test seam for the dispatch phase. If nil, Engine
	// builds the real scheduler.
	runScheduler func(ctx context.Context, cfg *config.Config, op ops.Operation, refs []RepositoryRef, onResult func(ops.Result)) (*RunReport, error)
}

func NewEngine(client *gh.Client) *Engine {
	return &Engine{
		Client: client,
		FS:     afero.NewOsFs(),
	}
}

func retryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.Runtime.MaxAttempts > 0 {
		p.MaxAttempts = cfg.Runtime.MaxAttempts
	}
	if cfg.Runtime.BackoffBase > 0 {
		p.BaseDelay = cfg.Runtime.BackoffBase
	}
	if cfg.Runtime.BackoffCap > 0 {
		p.MaxDelay = cfg.Runtime.BackoffCap
	}
	return p
}

func (e *Engine) dispatch(ctx context.Context, cfg *config.Config, op ops.Operation, refs []RepositoryRef, onResult func(ops.Result)) (*RunReport, error) {
	if e.runScheduler != nil {
		return e.runScheduler(ctx, cfg, op, refs, onResult)
	}

	req := ops.Request{
		Client: e.Client,
		FS:     e.FS,
		DryRun: cfg.Op.DryRun,
	}
	sched, err := NewScheduler(req, retryPolicyFromConfig(cfg), cfg.Runtime.Concurrency)
	if err != nil {
		return nil, err
	}
	sched.OnResult = onResult
	return sched.Run(ctx, op, refs)
}

func isExplicitReposOnly(cfg *config.Config) bool {
	return cfg.Targeting.Org == "" && cfg.Targeting.User == "" && len(cfg.Targeting.Repos) > 0
}

func (e *Engine) discoverRepos(ctx context.Context, cfg *config.Config, explicitReposOnly bool) ([]RepositoryRef, bool) {
	if !cfg.Output.NoConsole {
		if explicitReposOnly {
			fmt.Fprintln(os.Stderr, "Resolving repositories...")
		} else {
			fmt.Fprintln(os.Stderr, "Discovering repositories...")
		}
	}
	repos, err := ResolveRepos(ctx, e.Client, cfg)
	if err != nil {
		if explicitReposOnly {
			fmt.Fprintf(os.Stderr, "Error resolving repositories: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error discovering repositories: %v\n", err)
		}
		return nil, false
	}
	return repos, true
}

func filterReposIfNeeded(repos []RepositoryRef, cfg *config.Config, explicitReposOnly bool) []RepositoryRef {
	// If the user explicitly provided repos (and did not use org/user
	// discovery), treat the repo list as exact: do not filter out explicitly
	// targeted repos.
	if explicitReposOnly {
		return repos
	}
	return FilterRepos(repos, cfg)
}

// runWasCancelled reports whether the run was cut short: either the context
// expired, or any repo ended cancelled or was skipped before starting.
func runWasCancelled(ctx context.Context, report *RunReport) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, entry := range report.Entries {
		if entry.Outcome.Kind == ops.KindCancelled {
			return true
		}
		if entry.Outcome.Status == ops.StatusSkipped && entry.Outcome.Message == skipReasonCancelled {
			return true
		}
	}
	return false
}

// Run executes one fleet operation end to end: discover targets, filter,
// resolve + configure the op, dispatch with bounded concurrency, and emit
// results to the configured sinks. The returned value is the process exit
// code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	explicitReposOnly := isExplicitReposOnly(cfg)

	repos, ok := e.discoverRepos(ctx, cfg, explicitReposOnly)
	if !ok {
		return exitCodeForRun(true, false, false)
	}

	repos = filterReposIfNeeded(repos, cfg, explicitReposOnly)
	if !cfg.Output.NoConsole {
		fmt.Fprintf(os.Stderr, "Found %d repositories.\n", len(repos))
	}

	op, err := resolveAndConfigureOp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving operation: %v\n", err)
		return exitCodeForRun(true, false, false)
	}

	outMgr, err := setupOutputManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false, false)
	}
	defer outMgr.Close()

	if cfg.Op.DryRun && !cfg.Output.NoConsole {
		fmt.Fprintln(os.Stderr, "Dry run: no changes will be applied.")
	}

	_ = outMgr.Write(output.Event{
		Type:   "run.started",
		Op:     op.ID(),
		Repos:  len(repos),
		DryRun: cfg.Op.DryRun,
	})

	report, err := e.dispatch(ctx, cfg, op, repos, func(r ops.Result) {
		_ = outMgr.Write(r)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running operation: %v\n", err)
		code := exitCodeForRun(true, false, false)
		_ = outMgr.Write(output.Event{Type: "run.finished", Op: op.ID(), ExitCode: code})
		return code
	}

	counts := make(map[string]int)
	for status, n := range report.Counts() {
		counts[string(status)] = n
	}

	code := exitCodeForRun(false, report.HasFailures(), runWasCancelled(ctx, report))
	_ = outMgr.Write(output.Event{
		Type:     "run.finished",
		Op:       op.ID(),
		RunID:    report.RunID,
		Repos:    len(report.Entries),
		Counts:   counts,
		ExitCode: code,
	})
	return code
}
