package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRepairLinksCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-links",
		Short: "Point every connection at its customer's open ticket",
		Long: `Recompute each connection's ticket link from the tickets table. Use after
a crash between a ticket write and its link update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, services, err := st.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			changed, err := services.Maintenance.RepairConnectionLinks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Repaired %d connection link(s).\n", changed)
			return nil
		},
	}
}

func newReapOrphansCommand(st *state) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "reap-orphans",
		Short: "Delete comments and attachments whose ticket is gone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if grace < 0 {
				return fmt.Errorf("--grace must not be negative")
			}
			rt, services, err := st.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := services.Maintenance.ReapOrphans(cmd.Context(), grace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reaped %d comment(s), %d attachment(s); released %d blob(s).\n",
				report.Comments, report.Attachments, report.BlobsReleased)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 24*time.Hour, "only reap records older than this")
	return cmd
}
