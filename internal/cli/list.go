package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/branchreel/internal/db"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored experiences",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	database, err := openCatalog()
	if err != nil {
		return err
	}
	defer closeCatalog(cmd, database)

	repos := db.NewRepositories(database)
	experiences, err := repos.Experiences.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list experiences: %w", err)
	}

	if len(experiences) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No experiences found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMAIN SOURCE\tUPDATED")
	for _, e := range experiences {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Name, e.MainSource, e.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
