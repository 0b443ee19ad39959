package cli

import (
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/YoshitsuguKoike/ladas/internal/infrastructure/persistence/sqlite"
)

func newTasksCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List recent tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sql.Open("sqlite3", globalConfig.Storage.DBPath)
			if err != nil {
				return fmt.Errorf("open task history: %w", err)
			}
			defer db.Close()
			if err := sqlite.NewMigrator(db).Migrate(); err != nil {
				return err
			}

			repo := sqlite.NewTaskRepository(db)
			tasks, err := repo.ListRecentTasks(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Println("no tasks recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tINSTRUCTION")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					t.ID(), t.Status(), t.StartedAt(), truncate(t.RawInstruction(), 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of tasks to list")
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
