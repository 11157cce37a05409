package actions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v81/github"

	"reporanger/internal/ops"
)

func init() {
	ops.Register(&labelSync{})
}

type labelSpec struct {
	name        string
	color       string
	description string
}

// labelSync converges a repository's labels towards a desired set: missing
// labels are created, color/description drift is corrected, and (optionally)
// labels outside the set are pruned.
type labelSync struct {
	labels []labelSpec
	prune  bool
}

func (o *labelSync) ID() string {
	return "label-sync"
}

func (o *labelSync) Title() string {
	return "Synchronize repository labels"
}

func (o *labelSync) Description() string {
	return "Ensures the configured label set exists with the configured colors and descriptions. " +
		"With prune=true, labels outside the set are deleted."
}

func (o *labelSync) Options() []ops.OptionSpec {
	return []ops.OptionSpec{
		{
			Name:        "labels",
			Description: "Desired labels as name:color[:description], separated by ';' (e.g. bug:d73a4a;feature:a2eeef)",
		},
		{
			Name:        "prune",
			Description: "Delete labels not in the desired set",
			Default:     "false",
		},
	}
}

func (o *labelSync) Configure(opts map[string]string) error {
	if raw, ok := opts["labels"]; ok {
		specs, err := parseLabelSpecs(raw)
		if err != nil {
			return err
		}
		o.labels = specs
	}
	if raw, ok := opts["prune"]; ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid prune value %q: expected true or false", raw)
		}
		o.prune = v
	}
	return nil
}

func parseLabelSpecs(raw string) ([]labelSpec, error) {
	var specs []labelSpec
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid label spec %q: expected name:color[:description]", entry)
		}
		spec := labelSpec{
			name:  strings.TrimSpace(parts[0]),
			color: strings.TrimLeft(strings.TrimSpace(parts[1]), "#"),
		}
		if len(parts) == 3 {
			spec.description = strings.TrimSpace(parts[2])
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("labels option is empty")
	}
	return specs, nil
}

func (o *labelSync) Apply(ctx context.Context, req ops.Request, target ops.Target) (string, error) {
	if len(o.labels) == 0 {
		return "", ops.Errorf(ops.KindInvalid, "label-sync requires the labels option (--set label-sync.labels=...)")
	}

	client := req.Client.Client

	existing := make(map[string]*github.Label)
	listOpts := &github.ListOptions{PerPage: 100}
	for {
		labels, resp, err := client.Issues.ListLabels(ctx, target.Owner, target.Name, listOpts)
		if err != nil {
			return "", fmt.Errorf("list labels: %w", err)
		}
		for _, l := range labels {
			existing[strings.ToLower(l.GetName())] = l
		}
		if resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}

	desired := make(map[string]struct{}, len(o.labels))
	var created, updated, pruned int

	for _, spec := range o.labels {
		desired[strings.ToLower(spec.name)] = struct{}{}

		cur, ok := existing[strings.ToLower(spec.name)]
		if !ok {
			created++
			if req.DryRun {
				continue
			}
			label := &github.Label{
				Name:  github.Ptr(spec.name),
				Color: github.Ptr(spec.color),
			}
			if spec.description != "" {
				label.Description = github.Ptr(spec.description)
			}
			if _, _, err := client.Issues.CreateLabel(ctx, target.Owner, target.Name, label); err != nil {
				return "", fmt.Errorf("create label %q: %w", spec.name, err)
			}
			continue
		}

		if labelMatches(cur, spec) {
			continue
		}
		updated++
		if req.DryRun {
			continue
		}
		label := &github.Label{
			Name:        github.Ptr(spec.name),
			Color:       github.Ptr(spec.color),
			Description: github.Ptr(spec.description),
		}
		if _, _, err := client.Issues.EditLabel(ctx, target.Owner, target.Name, cur.GetName(), label); err != nil {
			return "", fmt.Errorf("update label %q: %w", spec.name, err)
		}
	}

	if o.prune {
		for key, cur := range existing {
			if _, ok := desired[key]; ok {
				continue
			}
			pruned++
			if req.DryRun {
				continue
			}
			if _, err := client.Issues.DeleteLabel(ctx, target.Owner, target.Name, cur.GetName()); err != nil {
				return "", fmt.Errorf("delete label %q: %w", cur.GetName(), err)
			}
		}
	}

	if created == 0 && updated == 0 && pruned == 0 {
		return "labels already in sync", nil
	}
	summary := fmt.Sprintf("%d created, %d updated, %d pruned", created, updated, pruned)
	if req.DryRun {
		return "would sync labels: " + summary, nil
	}
	return "synced labels: " + summary, nil
}

func labelMatches(cur *github.Label, spec labelSpec) bool {
	if !strings.EqualFold(cur.GetColor(), spec.color) {
		return false
	}
	if spec.description != "" && cur.GetDescription() != spec.description {
		return false
	}
	return true
}
