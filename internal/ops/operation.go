package ops

import (
	"context"

	"github.com/google/go-github/v81/github"
	"github.com/spf13/afero"

	"reporanger/internal/gh"
)

// Target identifies one repository an operation is applied to.
type Target struct {
	Owner string
	Name  string
	// Repo carries the full discovery object when available; operations that
	// only need owner/name must not rely on it being set.
	Repo *github.Repository
}

func (t Target) String() string {
	return t.Owner + "/" + t.Name
}

// Request bundles the collaborators an operation needs to do its work. One
// Request is shared by all targets of a run, so everything in it must be safe
// for concurrent use.
type Request struct {
	Client *gh.Client
	// FS is the local filesystem seam for operations that read files
	// (e.g. file-push). Tests substitute an in-memory Fs.
	FS afero.Fs
	// DryRun makes Apply validate and report the change it would make
	// without calling any mutating endpoint.
	DryRun bool
}

// Operation is one unit of idempotent work applied identically to every
// target repository of a run.
//
// Apply must converge: running it twice against the same target with the
// same configuration leaves the remote side in the same end state, because
// the engine may re-invoke it after a failure whose remote effect is
// unknown. Apply is called concurrently from multiple workers, so an
// operation holds only configuration set before the run starts.
//
// On success Apply returns a short human-readable summary of what was done
// (or would be done, under DryRun). Failures should be returned as *OpError
// so the engine can classify them; a bare error is classified by Classify.
type Operation interface {
	ID() string
	Title() string
	Description() string
	Apply(ctx context.Context, req Request, target Target) (string, error)
}

type OptionSpec struct {
	Name        string
	Description string
	Default     string
}

// ConfigurableOperation is implemented by operations that accept per-run
// options supplied via repeated --set flags.
type ConfigurableOperation interface {
	Operation
	Options() []OptionSpec
	Configure(opts map[string]string) error
}
