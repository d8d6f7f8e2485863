package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/branchreel/internal/schedule"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check experience definitions without importing them",
	Long: `Check YAML experience definitions without touching the catalog.

Only the media lengths declared in each file are used, so checks against
the end of a source are skipped for sources without a declared length.

Examples:
  branchreel validate ./experiences/pilot.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0

	for _, path := range args {
		def, err := schedule.LoadFile(path)
		if err == nil {
			exp := def.Experience()
			err = schedule.Validate(&exp)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s\n", path)
			printProblems(cmd, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s\n", path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definitions are invalid", failed, len(args))
	}
	return nil
}

// printProblems lists each validation problem, or the error itself.
func printProblems(cmd *cobra.Command, err error) {
	out := cmd.OutOrStdout()

	var verr *schedule.ValidationError
	if errors.As(err, &verr) {
		for _, p := range verr.Problems {
			fmt.Fprintf(out, "    - %s\n", p)
		}
		return
	}
	fmt.Fprintf(out, "    - %v\n", err)
}
