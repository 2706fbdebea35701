package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/persistence"
)

func newMigrateCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply the embedded schema migrations to the configured Postgres
database. Migrations already recorded in schema_migrations are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st.cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs STORE_DRIVER=%s, got %q", config.DriverPostgres, st.cfg.Store.Driver)
			}
			ctx := cmd.Context()

			pg, err := persistence.NewPostgres(ctx, st.cfg.Postgres, st.logger)
			if err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer pg.Close()

			applied, err := persistence.RunMigrations(ctx, pg.PoolHandle(), st.logger)
			if err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			if applied == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", applied)
			return nil
		},
	}
}
