package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reporanger/internal/config"
	"reporanger/internal/flags"
)

func TestApplyImplicitDefaultsUserForks(t *testing.T) {
	c := config.New()
	c.Targeting.User = "octocat"

	applyImplicitDefaults(applyCmd, c)
	assert.Equal(t, "include", c.Targeting.Forks, "user scope includes forks by default")
}

func TestApplyImplicitDefaultsExplicitForksWins(t *testing.T) {
	c := config.New()
	c.Targeting.User = "octocat"
	c.Targeting.Forks = "only"

	require.NoError(t, applyCmd.Flags().Set(flags.FlagForks, "only"))
	defer func() {
		f := applyCmd.Flags().Lookup(flags.FlagForks)
		f.Changed = false
		_ = f.Value.Set("exclude")
	}()

	applyImplicitDefaults(applyCmd, c)
	assert.Equal(t, "only", c.Targeting.Forks)
}

func TestApplyImplicitDefaultsOrgScopeUnchanged(t *testing.T) {
	c := config.New()
	c.Targeting.Org = "acme"

	applyImplicitDefaults(applyCmd, c)
	assert.Equal(t, "exclude", c.Targeting.Forks)
}

func TestApplyCommandRegistersAllFlags(t *testing.T) {
	names := []string{
		flags.FlagOrg, flags.FlagUser, flags.FlagRepos,
		flags.FlagInclude, flags.FlagExclude, flags.FlagTopic,
		flags.FlagVisibility, flags.FlagArchived, flags.FlagForks, flags.FlagMaxRepos,
		flags.FlagSet, flags.FlagDryRun,
		flags.FlagConsoleFormat, flags.FlagConsoleFilterStatus,
		flags.FlagReport, flags.FlagOut, flags.FlagOutFormat,
		flags.FlagNoConsole, flags.FlagNoColor,
		flags.FlagConcurrency, flags.FlagTimeout,
		flags.FlagMaxAttempts, flags.FlagBackoffBase, flags.FlagBackoffCap,
		flags.FlagConfig, flags.FlagToken,
	}
	for _, name := range names {
		assert.NotNil(t, applyCmd.Flags().Lookup(name), "missing flag --%s", name)
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flags.FlagVerbose))
}

func TestApplyHelpMentionsExitCodes(t *testing.T) {
	buf := new(bytes.Buffer)
	applyCmd.SetOut(buf)
	require.NoError(t, applyCmd.Help())

	out := buf.String()
	assert.Contains(t, out, "Exit codes:")
	assert.Contains(t, out, "GITHUB_TOKEN")
	assert.Contains(t, out, "--dry-run")
}
