package actions

import (
	"context"
	"fmt"

	"github.com/google/go-github/v81/github"
	"github.com/spf13/afero"

	"reporanger/internal/ops"
)

func init() {
	ops.Register(&filePush{})
}

// filePush upserts one file through the contents API. The local source is
// read through the Request's filesystem; when the remote content already
// matches, no write is issued, so repeated runs converge without creating
// empty commits.
type filePush struct {
	source  string
	dest    string
	branch  string
	message string
}

func (o *filePush) ID() string {
	return "file-push"
}

func (o *filePush) Title() string {
	return "Push a file to repositories"
}

func (o *filePush) Description() string {
	return "Creates or updates a single file via the contents API. " +
		"The write is skipped when the remote content already matches the local source."
}

func (o *filePush) Options() []ops.OptionSpec {
	return []ops.OptionSpec{
		{Name: "source", Description: "Local path of the file to push"},
		{Name: "dest", Description: "Path of the file inside each repository"},
		{Name: "branch", Description: "Target branch (empty = repository default branch)"},
		{Name: "message", Description: "Commit message", Default: "Update <dest>"},
	}
}

func (o *filePush) Configure(opts map[string]string) error {
	if v, ok := opts["source"]; ok {
		o.source = v
	}
	if v, ok := opts["dest"]; ok {
		o.dest = v
	}
	if v, ok := opts["branch"]; ok {
		o.branch = v
	}
	if v, ok := opts["message"]; ok {
		o.message = v
	}
	return nil
}

func (o *filePush) commitMessage() string {
	if o.message != "" {
		return o.message
	}
	return "Update " + o.dest
}

func (o *filePush) Apply(ctx context.Context, req ops.Request, target ops.Target) (string, error) {
	if o.source == "" || o.dest == "" {
		return "", ops.Errorf(ops.KindInvalid, "file-push requires the source and dest options")
	}

	content, err := afero.ReadFile(req.FS, o.source)
	if err != nil {
		return "", ops.Errorf(ops.KindInvalid, "read source %q: %v", o.source, err)
	}

	client := req.Client.Client

	getOpts := &github.RepositoryContentGetOptions{Ref: o.branch}
	fc, dir, resp, err := client.Repositories.GetContents(ctx, target.Owner, target.Name, o.dest, getOpts)
	exists := err == nil
	if err != nil && (resp == nil || resp.StatusCode != 404) {
		return "", fmt.Errorf("get contents %q: %w", o.dest, err)
	}
	if exists && fc == nil && len(dir) > 0 {
		return "", ops.Errorf(ops.KindInvalid, "destination %q is a directory", o.dest)
	}

	fileOpts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(o.commitMessage()),
		Content: content,
	}
	if o.branch != "" {
		fileOpts.Branch = github.Ptr(o.branch)
	}

	if !exists {
		if req.DryRun {
			return fmt.Sprintf("would create %s (%d bytes)", o.dest, len(content)), nil
		}
		if _, _, err := client.Repositories.CreateFile(ctx, target.Owner, target.Name, o.dest, fileOpts); err != nil {
			return "", fmt.Errorf("create %q: %w", o.dest, err)
		}
		return fmt.Sprintf("created %s", o.dest), nil
	}

	remote, decodeErr := fc.GetContent()
	if decodeErr == nil && remote == string(content) {
		return fmt.Sprintf("%s already up to date", o.dest), nil
	}

	if req.DryRun {
		return fmt.Sprintf("would update %s (%d bytes)", o.dest, len(content)), nil
	}
	fileOpts.SHA = fc.SHA
	if _, _, err := client.Repositories.UpdateFile(ctx, target.Owner, target.Name, o.dest, fileOpts); err != nil {
		return "", fmt.Errorf("update %q: %w", o.dest, err)
	}
	return fmt.Sprintf("updated %s", o.dest), nil
}
