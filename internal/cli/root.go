// Package cli implements ticketctl, the operator command line for the
// support ticket engine.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/bootstrap"
	"github.com/spec-kit/isp-support/internal/config"
	"github.com/spec-kit/isp-support/internal/observability"
)

var version = "dev"

// SetVersion overrides the build version reported by `ticketctl version`.
func SetVersion(v string) {
	version = v
}

type state struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds the ticketctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(nil)
}

func newRootCommand(logger *zap.Logger) *cobra.Command {
	st := &state{logger: logger}

	root := &cobra.Command{
		Use:   "ticketctl",
		Short: "Operator tooling for the ISP support ticket engine",
		Long: `ticketctl runs one-off operations against the ticket store:
schema migrations, directory fixtures, link repair and orphan cleanup.

Configuration is read the same way the API server reads it: defaults,
then the optional --config file, then the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return st.load()
		},
	}

	root.PersistentFlags().StringVarP(&st.cfgFile, "config", "c", "", "config file path (YAML or JSONC)")

	root.AddCommand(newMigrateCommand(st))
	root.AddCommand(newSeedCommand(st))
	root.AddCommand(newRepairLinksCommand(st))
	root.AddCommand(newReapOrphansCommand(st))
	root.AddCommand(newTokenCommand(st))
	root.AddCommand(newVersionCommand())
	return root
}

func (s *state) load() error {
	var err error
	if s.cfgFile == "" {
		s.cfg, err = config.Load()
	} else {
		s.cfg, err = config.LoadWithFile(s.cfgFile)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if s.logger == nil {
		s.logger, err = observability.NewLogger(s.cfg.Logger, s.cfg.App)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
	}
	return nil
}

// open connects the configured stores and builds the service graph.
func (s *state) open(cmd *cobra.Command) (*bootstrap.Runtime, *bootstrap.Services, error) {
	rt, err := bootstrap.Open(cmd.Context(), s.cfg, s.logger)
	if err != nil {
		return nil, nil, err
	}
	return rt, bootstrap.NewServices(rt), nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ticketctl %s\n", version)
		},
	}
}
