package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"reporanger/internal/ops"
)

var opsListQuiet bool
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List available operations",
	Long: `List the operations registered in this build.

Operations are applied to repositories with "reporanger apply" (see
"reporanger apply --help"). Each operation is idempotent: re-running it
against a converged repository makes no changes.

Operations are sorted by ID.

Examples:
  # List all available operations
  reporanger ops

  # Only print operation IDs
  reporanger ops -q

Output:
  A vertical list of operations:
    ----------------------------------------
    OPERATION: {ID}
    ----------------------------------------
    {TITLE}
    {DESCRIPTION}
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, op := range ops.List() {
			if opsListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), op.ID())
			} else {
				printOp(cmd.OutOrStdout(), op)
			}
		}
		return nil
	},
}

var opsShowCmd = &cobra.Command{
	Use:   "show [op-id]",
	Short: "Show details of a specific operation",
	Long: `Show details of a specific operation by its ID.

Examples:
  reporanger ops show label-sync
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := ops.Resolve(args[0])
		if err != nil {
			return err
		}
		printOp(cmd.OutOrStdout(), op)
		return nil
	},
}

func printOp(w io.Writer, op ops.Operation) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "OPERATION: %s\n", op.ID())
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, op.Title())
	fmt.Fprintln(w, op.Description())

	if co, ok := op.(ops.ConfigurableOperation); ok {
		opts := co.Options()
		if len(opts) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Options:")
			for _, opt := range opts {
				def := opt.Default
				if def == "" {
					def = "\"\""
				}
				fmt.Fprintf(w, "  %s\n", opt.Name)
				fmt.Fprintf(w, "    Description: %s\n", opt.Description)
				fmt.Fprintf(w, "    Default:     %s\n", def)
			}
		}
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(opsCmd)
	opsCmd.Flags().BoolVarP(&opsListQuiet, "quiet", "q", false, "Only print operation IDs")
	opsCmd.AddCommand(opsShowCmd)
}
