package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/isp-support/internal/seed"
)

func newSeedCommand(st *state) *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load directory fixtures (areas, customers, connections, staff)",
		Long: `Upsert service areas, customers, connections, team members and admins
from a YAML or JSONC fixture file. Re-running the same file is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "%s: %d areas, %d customers, %d connections, %d teams, %d admins (not applied)\n",
					file, len(fixtures.ServiceAreas), len(fixtures.Customers), len(fixtures.Connections),
					len(fixtures.Teams), len(fixtures.Admins))
				return nil
			}

			rt, _, err := st.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := seed.Apply(cmd.Context(), rt.Repos.Directory, fixtures, st.logger)
			if err != nil {
				return fmt.Errorf("failed to apply fixtures: %w", err)
			}
			fmt.Fprintf(out, "Seeded %d areas, %d customers, %d connections, %d teams, %d admins.\n",
				report.ServiceAreas, report.Customers, report.Connections, report.Teams, report.Admins)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (.yaml, .yml, .json or .jsonc)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
