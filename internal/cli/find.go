package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strapiql/internal/store"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	QueryOptions
	DBPath string // overrides database.path from config
}

// FindResult is the JSON payload of the find command.
type FindResult struct {
	Entity  string         `json:"entity"`
	Records []store.Record `json:"records"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "find [query-file|-]",
		Short: "Run a request against a SQLite database",
		Long: `Compile a request, check it against the entity schema and run it
against the SQLite database, loading populated relations.

The total counts every matching row, ignoring limit and offset.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, firstArg(args), cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "database path (default from config)")

	return cmd
}

func runFind(opts *FindOptions, path string, cmd *cobra.Command) error {
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
		return reportError(s.formatter, ExitFailure, ErrCodeSchemaValidation, err.Error(), nil)
	}

	st, err := s.openStore(opts.DBPath)
	if err != nil {
		return s.fail(err)
	}
	defer st.Close()

	ctx := cmd.Context()
	records, err := st.Find(ctx, entity, q)
	if err != nil {
		return s.fail(tagError(ErrCodeDatabase, err))
	}
	total, err := st.Count(ctx, entity, q)
	if err != nil {
		return s.fail(tagError(ErrCodeDatabase, err))
	}
	s.logger.Debug("find complete", "entity", entity.Name, "returned", len(records), "total", total)

	return outputFindSuccess(s.formatter, &FindResult{
		Entity:  entity.Name,
		Records: records,
		Total:   total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	})
}

// openStore opens the database named by path, or by the config.
func (s *session) openStore(path string) (*store.Store, error) {
	if path == "" {
		path = s.cfg.Database.Path
	}
	st, err := store.Open(path, store.WithSoftDeleteColumn(s.compiler.Config().SoftDeleteColumn))
	if err != nil {
		return nil, tagError(ErrCodeDatabase, err)
	}
	s.logger.Debug("opened database", "path", path)
	return st, nil
}

func outputFindSuccess(formatter *OutputFormatter, result *FindResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, rec := range result.Records {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		fmt.Fprintln(formatter.Writer, string(line))
	}
	fmt.Fprintf(formatter.Writer, "%d of %d %s (offset %d)\n",
		len(result.Records), result.Total, result.Entity, result.Offset)
	return nil
}
