package flags

// Package flags defines canonical CLI flag names shared across the CLI and
// config file merging. Keeping these as constants helps avoid drift between
// Cobra flag wiring and other code paths that need to reference flags by name
// (e.g. config file precedence checks).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Targeting.Org, flags.FlagOrg, "", "...")
//	arg := "--" + flags.FlagOrg
const (
	// Targeting
	FlagOrg        = "org"
	FlagUser       = "user"
	FlagRepos      = "repos"
	FlagInclude    = "include"
	FlagExclude    = "exclude"
	FlagTopic      = "topic"
	FlagVisibility = "visibility"
	FlagArchived   = "archived"
	FlagForks      = "forks"
	FlagMaxRepos   = "max-repos"

	// Operation
	FlagSet    = "set"
	FlagDryRun = "dry-run"

	// Output
	FlagConsoleFormat       = "console-format"
	FlagConsoleFilterStatus = "console-filter-status"
	FlagReport              = "report"
	FlagOut                 = "out"
	FlagOutFormat           = "out-format"
	FlagNoConsole           = "no-console"
	FlagNoColor             = "no-color"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagMaxAttempts = "max-attempts"
	FlagBackoffBase = "backoff-base"
	FlagBackoffCap  = "backoff-cap"
	FlagConfig      = "config"
	FlagToken       = "token"
	FlagVerbose     = "verbose"
)
