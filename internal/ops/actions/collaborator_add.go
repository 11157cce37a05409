package actions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/go-github/v81/github"
	"golang.org/x/sync/singleflight"

	"reporanger/internal/ops"
)

func init() {
	ops.Register(&collaboratorAdd{known: make(map[string]bool)})
}

// collaboratorAdd grants a user access to each repository unless they
// already have it. The user-existence lookup is the same for every target,
// so concurrent workers share one flight and later workers read the cached
// answer instead of spending quota.
type collaboratorAdd struct {
	user       string
	permission string

	lookups singleflight.Group
	mu      sync.Mutex
	known   map[string]bool
}

func (o *collaboratorAdd) ID() string {
	return "collaborator-add"
}

func (o *collaboratorAdd) Title() string {
	return "Add a collaborator"
}

func (o *collaboratorAdd) Description() string {
	return "Adds the configured user as a collaborator on each repository. " +
		"Repositories where the user already has access are left untouched."
}

func (o *collaboratorAdd) Options() []ops.OptionSpec {
	return []ops.OptionSpec{
		{Name: "user", Description: "GitHub username to add"},
		{Name: "permission", Description: "Permission to grant (pull, triage, push, maintain, admin)", Default: "push"},
	}
}

func (o *collaboratorAdd) Configure(opts map[string]string) error {
	if v, ok := opts["user"]; ok {
		o.user = v
	}
	if v, ok := opts["permission"]; ok {
		switch v {
		case "pull", "triage", "push", "maintain", "admin":
			o.permission = v
		default:
			return fmt.Errorf("invalid permission %q", v)
		}
	}
	return nil
}

func (o *collaboratorAdd) grantPermission() string {
	if o.permission != "" {
		return o.permission
	}
	return "push"
}

func (o *collaboratorAdd) userExists(ctx context.Context, client *github.Client) (bool, error) {
	v, err, _ := o.lookups.Do(o.user, func() (any, error) {
		o.mu.Lock()
		known, ok := o.known[o.user]
		o.mu.Unlock()
		if ok {
			return known, nil
		}

		_, _, err := client.Users.Get(ctx, o.user)
		if err != nil {
			if ops.Classify(err) == ops.KindNotFound {
				o.mu.Lock()
				o.known[o.user] = false
				o.mu.Unlock()
				return false, nil
			}
			return nil, err
		}
		o.mu.Lock()
		o.known[o.user] = true
		o.mu.Unlock()
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (o *collaboratorAdd) Apply(ctx context.Context, req ops.Request, target ops.Target) (string, error) {
	if o.user == "" {
		return "", ops.Errorf(ops.KindInvalid, "collaborator-add requires the user option (--set collaborator-add.user=...)")
	}

	client := req.Client.Client

	exists, err := o.userExists(ctx, client)
	if err != nil {
		return "", fmt.Errorf("check user %q: %w", o.user, err)
	}
	if !exists {
		return "", ops.Errorf(ops.KindInvalid, "user %q does not exist", o.user)
	}

	isCollab, _, err := client.Repositories.IsCollaborator(ctx, target.Owner, target.Name, o.user)
	if err != nil {
		return "", fmt.Errorf("check collaborator %q: %w", o.user, err)
	}
	if isCollab {
		return fmt.Sprintf("%s already has access", o.user), nil
	}

	if req.DryRun {
		return fmt.Sprintf("would add %s (permission %s)", o.user, o.grantPermission()), nil
	}

	addOpts := &github.RepositoryAddCollaboratorOptions{Permission: o.grantPermission()}
	invitation, _, err := client.Repositories.AddCollaborator(ctx, target.Owner, target.Name, o.user, addOpts)
	if err != nil {
		return "", fmt.Errorf("add collaborator %q: %w", o.user, err)
	}
	if invitation != nil {
		return fmt.Sprintf("invited %s (permission %s)", o.user, o.grantPermission()), nil
	}
	return fmt.Sprintf("added %s (permission %s)", o.user, o.grantPermission()), nil
}
