package engine

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporanger/internal/config"
	"reporanger/internal/ops"
)

func TestExitCodeForRun(t *testing.T) {
	tests := []struct {
		name                     string
		fatal, failed, cancelled bool
		want                     int
	}{
		{name: "clean", want: 0},
		{name: "failures", failed: true, want: 1},
		{name: "cancelled only", cancelled: true, want: 2},
		{name: "failures trump cancellation", failed: true, cancelled: true, want: 1},
		{name: "fatal trumps everything", fatal: true, failed: true, cancelled: true, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeForRun(tt.fatal, tt.failed, tt.cancelled))
		})
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	cfg := config.New()
	cfg.Runtime.MaxAttempts = 3
	cfg.Runtime.BackoffBase = 500 * time.Millisecond
	cfg.Runtime.BackoffCap = 10 * time.Second

	p := retryPolicyFromConfig(cfg)
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 10*time.Second, p.MaxDelay)
	assert.Equal(t, float64(2), p.Multiplier)
}

type configurableFakeOp struct {
	fakeOp
	options    []ops.OptionSpec
	configured map[string]string
	cfgErr     error
}

func (c *configurableFakeOp) Options() []ops.OptionSpec { return c.options }
func (c *configurableFakeOp) Configure(opts map[string]string) error {
	if c.cfgErr != nil {
		return c.cfgErr
	}
	c.configured = opts
	return nil
}

func TestResolveAndConfigureOp(t *testing.T) {
	op := &configurableFakeOp{
		fakeOp:  fakeOp{id: "engine-test-configurable"},
		options: []ops.OptionSpec{{Name: "mode"}},
	}
	ops.Register(op)

	cfg := config.New()
	cfg.Op.Name = op.ID()
	cfg.Op.Set = []string{"engine-test-configurable.mode=fast"}

	got, err := resolveAndConfigureOp(cfg)
	require.NoError(t, err)
	assert.Equal(t, op.ID(), got.ID())
	assert.Equal(t, map[string]string{"mode": "fast"}, op.configured)
}

func TestResolveAndConfigureOpRejectsUnknownOption(t *testing.T) {
	op := &configurableFakeOp{
		fakeOp:  fakeOp{id: "engine-test-strict"},
		options: []ops.OptionSpec{{Name: "mode"}},
	}
	ops.Register(op)

	cfg := config.New()
	cfg.Op.Name = op.ID()
	cfg.Op.Set = []string{"engine-test-strict.bogus=1"}

	_, err := resolveAndConfigureOp(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown option")
}

func TestResolveAndConfigureOpRejectsMismatchedOpID(t *testing.T) {
	op := &configurableFakeOp{
		fakeOp:  fakeOp{id: "engine-test-selected"},
		options: []ops.OptionSpec{{Name: "mode"}},
	}
	ops.Register(op)

	cfg := config.New()
	cfg.Op.Name = op.ID()
	cfg.Op.Set = []string{"some-other-op.mode=fast"}

	_, err := resolveAndConfigureOp(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "some-other-op")
}

func TestResolveAndConfigureOpUnknownOp(t *testing.T) {
	cfg := config.New()
	cfg.Op.Name = "does-not-exist"

	_, err := resolveAndConfigureOp(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunWasCancelled(t *testing.T) {
	report := &RunReport{Entries: []ReportEntry{
		{Outcome: ops.Succeeded("ok", 1)},
	}}
	assert.False(t, runWasCancelled(context.Background(), report))

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, runWasCancelled(cancelledCtx, report))

	report.Entries = append(report.Entries, ReportEntry{Outcome: ops.Skipped(skipReasonCancelled)})
	assert.True(t, runWasCancelled(context.Background(), report))

	report.Entries = []ReportEntry{{Outcome: ops.Failed(ops.KindCancelled, "retry aborted", 2)}}
	assert.True(t, runWasCancelled(context.Background(), report))
}

func newRunTestEngine(t *testing.T) (*Engine, *config.Config) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/alpha", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":1,"name":"alpha","owner":{"login":"acme"}}`)
	})
	client := newTestClient(t, mux)

	cfg := config.New()
	cfg.Targeting.Repos = []string{"acme/alpha"}
	cfg.Output.NoConsole = true

	return NewEngine(client), cfg
}

func registerRunTestOp(t *testing.T, id string) {
	t.Helper()
	ops.Register(&fakeOp{
		id: id,
		apply: func(ctx context.Context, req ops.Request, target ops.Target) (string, error) {
			return "ok", nil
		},
	})
}

func reportWith(opID string, refs []RepositoryRef, outcomes ...ops.Outcome) (*RunReport, error) {
	agg := newReportAggregator(opID, refs, time.Now())
	for i, o := range outcomes {
		if err := agg.Record(i, o); err != nil {
			return nil, err
		}
	}
	return agg.Finalize(time.Now())
}

func TestEngineRunCleanExitCode(t *testing.T) {
	eng, cfg := newRunTestEngine(t)
	registerRunTestOp(t, "engine-run-clean")
	cfg.Op.Name = "engine-run-clean"

	eng.runScheduler = func(ctx context.Context, cfg *config.Config, op ops.Operation, refs []RepositoryRef, onResult func(ops.Result)) (*RunReport, error) {
		return reportWith(op.ID(), refs, ops.Succeeded("ok", 1))
	}

	assert.Equal(t, 0, eng.Run(context.Background(), cfg))
}

func TestEngineRunFailureExitCode(t *testing.T) {
	eng, cfg := newRunTestEngine(t)
	registerRunTestOp(t, "engine-run-failed")
	cfg.Op.Name = "engine-run-failed"

	eng.runScheduler = func(ctx context.Context, cfg *config.Config, op ops.Operation, refs []RepositoryRef, onResult func(ops.Result)) (*RunReport, error) {
		return reportWith(op.ID(), refs, ops.Failed(ops.KindPermission, "denied", 1))
	}

	assert.Equal(t, 1, eng.Run(context.Background(), cfg))
}

func TestEngineRunCancelledExitCode(t *testing.T) {
	eng, cfg := newRunTestEngine(t)
	registerRunTestOp(t, "engine-run-cancelled")
	cfg.Op.Name = "engine-run-cancelled"

	eng.runScheduler = func(ctx context.Context, cfg *config.Config, op ops.Operation, refs []RepositoryRef, onResult func(ops.Result)) (*RunReport, error) {
		return reportWith(op.ID(), refs, ops.Skipped(skipReasonCancelled))
	}

	assert.Equal(t, 2, eng.Run(context.Background(), cfg))
}

func TestEngineRunSchedulerErrorIsFatal(t *testing.T) {
	eng, cfg := newRunTestEngine(t)
	registerRunTestOp(t, "engine-run-fatal")
	cfg.Op.Name = "engine-run-fatal"

	eng.runScheduler = func(ctx context.Context, cfg *config.Config, op ops.Operation, refs []RepositoryRef, onResult func(ops.Result)) (*RunReport, error) {
		return nil, fmt.Errorf("boom")
	}

	assert.Equal(t, 3, eng.Run(context.Background(), cfg))
}

func TestEngineRunUnknownOpIsFatal(t *testing.T) {
	eng, cfg := newRunTestEngine(t)
	cfg.Op.Name = "engine-run-nonexistent"

	assert.Equal(t, 3, eng.Run(context.Background(), cfg))
}

func TestIsExplicitReposOnly(t *testing.T) {
	cfg := config.New()
	cfg.Targeting.Repos = []string{"a/b"}
	assert.True(t, isExplicitReposOnly(cfg))

	cfg.Targeting.Org = "acme"
	assert.False(t, isExplicitReposOnly(cfg))
}
