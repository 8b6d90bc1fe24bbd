package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the demo tables in a SQLite database",
		Long: `Create the users, roles, user_roles and internal_test tables
described by the bundled schema. Running it again is a no-op.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return s.fail(err)
			}

			st, err := s.openStore(dbPath)
			if err != nil {
				return s.fail(err)
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return s.fail(tagError(ErrCodeDatabase, err))
			}

			if s.formatter.Format == "json" {
				return s.formatter.Success(map[string]bool{"migrated": true})
			}
			fmt.Fprintln(s.formatter.Writer, "✓ Database migrated")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default from config)")

	return cmd
}
