package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/branchreel/internal/db"
	"github.com/stwalsh4118/branchreel/internal/schedule"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Export a stored experience as a YAML definition",
	Long: `Export a stored experience as a YAML definition.

The output can be edited and imported again; the experience keeps its id.

Examples:
  branchreel export "Pilot"
  branchreel export "Pilot" -o pilot.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	database, err := openCatalog()
	if err != nil {
		return err
	}
	defer closeCatalog(cmd, database)

	repos := db.NewRepositories(database)
	exp, err := repos.Experiences.GetByName(cmd.Context(), args[0])
	if err != nil {
		if db.IsNotFound(err) {
			return fmt.Errorf("experience not found: %s", args[0])
		}
		return fmt.Errorf("get experience: %w", err)
	}

	data, err := schedule.DefinitionOf(exp).ToYAML()
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", exp.Name, exportOutput)
	return nil
}
