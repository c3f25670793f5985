// File: cmd/migrate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/easyapply/internal/observability"
	"github.com/xkilldash9x/easyapply/internal/store"
)

// migrator is swapped in tests.
var migrator = store.Migrate

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := app.Config().Database().URL
			if url == "" {
				return fmt.Errorf("database URL is not configured (hint: check EASYAPPLY_DATABASE_URL)")
			}
			if err := migrator(cmd.Context(), url); err != nil {
				return err
			}
			observability.GetLogger().Info("Database schema is up to date.")
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}
