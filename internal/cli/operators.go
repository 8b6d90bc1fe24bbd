package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// OperatorInfo describes one registered operator.
type OperatorInfo struct {
	Token       string `json:"token"`
	Description string `json:"description"`
}

// NewOperatorsCommand creates the operators command.
func NewOperatorsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "operators",
		Short:         "List supported filter operators",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return s.fail(err)
			}

			rules := s.compiler.Registry().Rules()
			infos := make([]OperatorInfo, len(rules))
			for i, r := range rules {
				infos[i] = OperatorInfo{Token: r.Token, Description: r.Description}
			}

			if s.formatter.Format == "json" {
				return s.formatter.Success(infos)
			}
			w := tabwriter.NewWriter(s.formatter.Writer, 0, 4, 2, ' ', 0)
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\n", info.Token, info.Description)
			}
			return w.Flush()
		},
	}
}
