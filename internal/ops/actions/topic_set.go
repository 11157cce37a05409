package actions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"reporanger/internal/ops"
)

func init() {
	ops.Register(&topicSet{})
}

// topicSet replaces a repository's topics with a configured set. The
// replace endpoint is a PUT, so re-running against a converged repository
// is a no-op by construction; the operation still compares first to avoid
// spending a mutating call when nothing changed.
type topicSet struct {
	topics []string
}

func (o *topicSet) ID() string {
	return "topic-set"
}

func (o *topicSet) Title() string {
	return "Set repository topics"
}

func (o *topicSet) Description() string {
	return "Replaces the repository topic list with the configured set."
}

func (o *topicSet) Options() []ops.OptionSpec {
	return []ops.OptionSpec{
		{
			Name:        "topics",
			Description: "Desired topics separated by ';' (e.g. go;tooling;internal)",
		},
	}
}

func (o *topicSet) Configure(opts map[string]string) error {
	raw, ok := opts["topics"]
	if !ok {
		return nil
	}
	var topics []string
	for _, t := range strings.Split(raw, ";") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return fmt.Errorf("topics option is empty")
	}
	o.topics = topics
	return nil
}

func (o *topicSet) Apply(ctx context.Context, req ops.Request, target ops.Target) (string, error) {
	if len(o.topics) == 0 {
		return "", ops.Errorf(ops.KindInvalid, "topic-set requires the topics option (--set topic-set.topics=...)")
	}

	client := req.Client.Client

	current, _, err := client.Repositories.ListAllTopics(ctx, target.Owner, target.Name)
	if err != nil {
		return "", fmt.Errorf("list topics: %w", err)
	}

	if sameTopicSet(current, o.topics) {
		return fmt.Sprintf("topics already set (%d)", len(o.topics)), nil
	}

	if req.DryRun {
		return fmt.Sprintf("would replace topics [%s] with [%s]",
			strings.Join(current, " "), strings.Join(o.topics, " ")), nil
	}

	if _, _, err := client.Repositories.ReplaceAllTopics(ctx, target.Owner, target.Name, o.topics); err != nil {
		return "", fmt.Errorf("replace topics: %w", err)
	}
	return fmt.Sprintf("set %d topics", len(o.topics)), nil
}

func sameTopicSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if !strings.EqualFold(as[i], bs[i]) {
			return false
		}
	}
	return true
}
