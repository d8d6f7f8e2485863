package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/branchreel/internal/catalog"
	"github.com/stwalsh4118/branchreel/internal/db"
	"github.com/stwalsh4118/branchreel/internal/server"
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import experience definitions into the catalog",
	Long: `Import YAML experience definitions into the catalog database.

Each definition is validated before it is stored. A definition whose name
already exists replaces the stored experience and keeps its id. Missing
media lengths are measured with FFprobe when it is installed.

Examples:
  branchreel import ./experiences/pilot.yaml
  branchreel import ./experiences/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	database, err := openCatalog()
	if err != nil {
		return err
	}
	defer closeCatalog(cmd, database)

	repos := db.NewRepositories(database)
	importer := catalog.NewImporter(repos.Experiences, server.NewDurationCatalog(cfg, repos))

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		exp, err := importer.ImportFile(cmd.Context(), path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s\n", path)
			printProblems(cmd, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s → %s (%s)\n", path, exp.Name, exp.ID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definitions failed to import", failed, len(args))
	}
	return nil
}
