package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reporanger/internal/flags"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "reporanger",
	Short: "Apply one operation across a fleet of GitHub repositories",
	Long: `RepoRanger applies a single idempotent operation to many GitHub repositories
at once: sync labels, set topics, push a file, add a collaborator.

Operations are safe to re-run: a repository that is already in the desired
state reports success without making changes.

Examples:
	# Show available commands and global flags
	reporanger --help

	# Sync labels across an organization
	reporanger apply label-sync --org my-org --set "label-sync.labels=bug:d73a4a;docs:0075ca"

	# List operations
	reporanger ops

	# Print build info
	reporanger version

Output:
	By default, commands write human-readable output to stdout.
	The apply command supports structured output (see "reporanger apply --help").`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (prints every GitHub API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
