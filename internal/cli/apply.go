package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reporanger/internal/config"
	"reporanger/internal/engine"
	"reporanger/internal/flags"
	"reporanger/internal/gh"
	"reporanger/internal/ratelimit"
)

var cfg = config.New()

var (
	applyConfigPath string
	applyToken      string
)

const applyHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	RepoRanger authenticates to GitHub using an access token.

	Sources (in order):
	1) --token flag
	2) GITHUB_TOKEN environment variable
	3) GitHub CLI (gh) authentication via gh auth token (if gh is installed and logged in)

  Token guidance (brief):
  - PAT (classic): typically needs repo (to read and modify private repos) and
    read:org (to enumerate org repositories).
  - Fine-grained PAT: grant access to the target repositories with
    Metadata: Read and Administration: Read & Write.

  Examples:
    # macOS/Linux
    export GITHUB_TOKEN="<your_token>"
    reporanger apply topic-set --org my-org --set "topic-set.topics=golang;infra"

		# GitHub CLI auth
		gh auth login
		reporanger apply label-sync --user octocat --set "label-sync.labels=bug:d73a4a"

    # Windows PowerShell
    $env:GITHUB_TOKEN = "<your_token>"
    reporanger apply topic-set --org my-org --set "topic-set.topics=golang"

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasHelpSubCommands}}Additional help topics:
{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var applyCmd = &cobra.Command{
	Use:   "apply OPERATION",
	Short: "Apply one operation to a set of GitHub repositories",
	Long: `Apply a single idempotent operation to every repository in the target set.

The target set comes from --org, --user, or --repos, narrowed by the
filtering flags. Repositories are worked in parallel; transient API errors
are retried with exponential backoff, and one repository's failure never
stops the others.

Authentication:
  RepoRanger uses a GitHub access token. It prefers --token, then
  GITHUB_TOKEN, then GitHub CLI authentication if the gh CLI is installed
  and logged in.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --report: write a Markdown run report to a file
	- --no-console: suppress the console sink (use with --out/--report for machine output)

	NDJSON mode emits one JSON object per line. Objects are lifecycle Events with a
	"type" field (run.started, repo.result, run.finished). Per-repo outcomes are
	represented as an Event with type "repo.result" and a nested "result" object.

Exit codes:
	0 = clean run, every repo succeeded or was skipped
	1 = at least one repo failed
	2 = run interrupted (Ctrl-C or --timeout), no hard failures
	3 = fatal error (run did not execute)

Examples:
  # Token via environment variable
  export GITHUB_TOKEN="<your_token>"
  reporanger apply label-sync --org my-org --set "label-sync.labels=bug:d73a4a;docs:0075ca"

  # Preview without mutating anything
  reporanger apply file-push --org my-org --dry-run \
    --set file-push.source=./CODEOWNERS --set file-push.dest=.github/CODEOWNERS

	# AI Agent: stream machine-readable events to stdout
	reporanger apply topic-set --org my-org --no-console --console-format ndjson
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}
		if len(args) == 1 {
			cfg.Op.Name = args[0]
		}

		if applyConfigPath != "" {
			fc, err := config.LoadFile(applyConfigPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(3)
			}
			if err := fc.ApplyTo(cfg, cmd.Flags().Changed); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(3)
			}
		}

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(3)
		}

		applyImplicitDefaults(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
		defer cancel()

		token, _, err := gh.ResolveAuthToken(ctx, applyToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to resolve GitHub auth token: %v\n", err)
			os.Exit(3)
		}
		if strings.TrimSpace(token) == "" {
			fmt.Fprintln(os.Stderr, "Error: GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
			os.Exit(3)
		}

		client, err := gh.NewClient(ctx, token,
			gh.WithVerbose(cfg.Runtime.Verbose, nil),
			gh.WithBudget(ratelimit.NewBudget()),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create GitHub client: %v\n", err)
			os.Exit(3)
		}
		eng := engine.NewEngine(client)
		os.Exit(eng.Run(ctx, cfg))
	},
}

func applyImplicitDefaults(cmd *cobra.Command, cfg *config.Config) {
	// When targeting a user account, include forks by default. Many GitHub
	// users have a significant portion of their repos as forks, and excluding
	// them by default is surprising.
	if cfg.Targeting.User != "" && cmd != nil {
		if !cmd.Flags().Changed(flags.FlagForks) {
			cfg.Targeting.Forks = "include"
		}
	}
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.SetHelpTemplate(applyHelpTemplate)

	// MAINTAINER NOTE: If you add/change/remove any run-affecting flags here,
	// keep the config file keys in internal/config/file.go in sync.

	// Targeting
	applyCmd.Flags().StringVar(&cfg.Targeting.Org, flags.FlagOrg, "", "GitHub organization account to target (name or URL)")
	applyCmd.Flags().StringVar(&cfg.Targeting.User, flags.FlagUser, "", "GitHub user account to target (name or URL)")
	applyCmd.Flags().StringSliceVar(&cfg.Targeting.Repos, flags.FlagRepos, nil, "Repositories as OWNER/REPO (repeatable; comma-separated accepted). With --org/--user, acts as an include filter")
	applyCmd.Flags().StringSliceVar(&cfg.Targeting.Include, flags.FlagInclude, nil, "Include pattern(s) (repeatable; comma-separated accepted). Go path.Match style; if pattern contains '/', matches OWNER/REPO, else matches repo name")
	applyCmd.Flags().StringSliceVar(&cfg.Targeting.Exclude, flags.FlagExclude, nil, "Exclude pattern(s) (repeatable; comma-separated accepted). Same matching rules as --include")
	applyCmd.Flags().StringSliceVar(&cfg.Targeting.Topic, flags.FlagTopic, nil, "Require at least one topic match (repeatable; comma-separated accepted; exact match)")
	applyCmd.Flags().StringVar(&cfg.Targeting.Visibility, flags.FlagVisibility, "all", "Visibility filter: public|private|internal|all (default: all)")
	applyCmd.Flags().StringVar(&cfg.Targeting.Archived, flags.FlagArchived, "exclude", "Archived repos policy: include|exclude|only (default: exclude)")
	applyCmd.Flags().StringVar(&cfg.Targeting.Forks, flags.FlagForks, "exclude", "Forks policy: include|exclude|only (default: exclude). If --user is set and this flag is omitted, forks default to include")
	applyCmd.Flags().IntVar(&cfg.Targeting.MaxRepos, flags.FlagMaxRepos, 0, "Maximum number of repositories to target (0 = unlimited)")

	// Operation
	applyCmd.Flags().StringSliceVar(&cfg.Op.Set, flags.FlagSet, nil, "Per-operation options as opID.option=value (repeatable; comma-separated accepted; list-valued options use ';' between elements)")
	applyCmd.Flags().BoolVar(&cfg.Op.DryRun, flags.FlagDryRun, false, "Run the operation without mutating anything; report what would change (still requires auth token)")

	// Output
	applyCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, "text", "Console output format: text|json|ndjson (default: text)")
	applyCmd.Flags().StringSliceVar(&cfg.Output.ConsoleFilterStatus, flags.FlagConsoleFilterStatus, nil, "Filter console output by status (SUCCEEDED, RETRIED, FAILED, SKIPPED). Comma-separated.")
	applyCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown run report to this path")
	applyCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	applyCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	applyCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --out/--report)")
	applyCmd.Flags().BoolVar(&cfg.Output.NoColor, flags.FlagNoColor, false, "Disable ANSI colors in text console output")

	// Runtime
	applyCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent workers (default: 10)")
	applyCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout (default: 30m)")
	applyCmd.Flags().IntVar(&cfg.Runtime.MaxAttempts, flags.FlagMaxAttempts, cfg.Runtime.MaxAttempts, "Maximum attempts per repository, including the first (default: 5)")
	applyCmd.Flags().DurationVar(&cfg.Runtime.BackoffBase, flags.FlagBackoffBase, cfg.Runtime.BackoffBase, "Delay before the first retry (default: 1s)")
	applyCmd.Flags().DurationVar(&cfg.Runtime.BackoffCap, flags.FlagBackoffCap, cfg.Runtime.BackoffCap, "Upper bound on the exponential backoff delay (default: 60s)")
	applyCmd.Flags().StringVar(&applyConfigPath, flags.FlagConfig, "", "Load defaults from a YAML config file (CLI flags win)")
	applyCmd.Flags().StringVar(&applyToken, flags.FlagToken, "", "GitHub access token (overrides GITHUB_TOKEN and gh auth)")
}
