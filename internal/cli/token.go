package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spec-kit/isp-support/internal/domain"
)

// actorKindFlag parses --kind into a domain.ActorKind.
type actorKindFlag struct {
	kind domain.ActorKind
}

var _ pflag.Value = (*actorKindFlag)(nil)

func (f *actorKindFlag) String() string { return string(f.kind) }

func (f *actorKindFlag) Set(raw string) error {
	kind, err := domain.ParseActorKind(raw)
	if err != nil {
		return err
	}
	f.kind = kind
	return nil
}

func (f *actorKindFlag) Type() string { return "kind" }

func newTokenCommand(st *state) *cobra.Command {
	var (
		kind   actorKindFlag
		id     string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a directory actor",
		Example: `  ticketctl token --kind team --id team-1
  ticketctl token --kind customer --id cust-1 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, services, err := st.open(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			issued, err := services.Auth.IssueToken(cmd.Context(), domain.NewActorRef(kind.kind, id))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(issued)
			}
			fmt.Fprintln(out, issued.Token)
			return nil
		},
	}
	cmd.Flags().Var(&kind, "kind", "actor kind: customer, team or admin")
	cmd.Flags().StringVar(&id, "id", "", "actor id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the token with its expiry and actor")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
