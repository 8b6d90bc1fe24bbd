package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strapiql/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Entity string   `json:"entity"`
	Issues []string `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [query-file|-]",
		Short: "Check a request against an entity schema",
		Long: `Compile a request and check every column, sort key, field and
populated relation it references against the entity's CUE schema.

Exits 1 when the request does not fit the entity.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, firstArg(args), cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runValidate(opts *QueryOptions, path string, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return s.fail(err)
	}

	reg, entity, err := s.entity(opts.Entity)
	if err != nil {
		return s.fail(err)
	}

	q, err := s.compile(path, opts.QueryString, entity)
	if err != nil {
		return s.fail(err)
	}

	if err := entity.Check(reg, q); err != nil {
		var ve *schema.ValidationError
		if !errors.As(err, &ve) {
			return s.fail(err)
		}
		s.logger.Debug("query rejected", "entity", entity.Name, "issues", len(ve.Issues))
		return reportError(s.formatter, ExitFailure, ErrCodeSchemaValidation,
			fmt.Sprintf("query does not fit entity %s", entity.Name), ve.Issues)
	}

	return outputValidateSuccess(s.formatter, entity.Name)
}

// outputValidateSuccess outputs successful validation result.
func outputValidateSuccess(formatter *OutputFormatter, entity string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Entity: entity})
	}

	fmt.Fprintf(formatter.Writer, "✓ Query fits entity %s\n", entity)
	return nil
}
