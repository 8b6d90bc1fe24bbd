package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strapiql/internal/queryir"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	QueryOptions
	Rows string // JSON array of row objects, or "-" for stdin
}

// EvalResult is the JSON payload of the eval command.
type EvalResult struct {
	Rows    []queryir.Row `json:"rows"`
	Matched int           `json:"matched"`
	Scanned int           `json:"scanned"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{QueryOptions: QueryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "eval [query-file|-] --rows rows.json",
		Short: "Apply a request to rows in memory",
		Long: `Compile a request and apply it to a JSON array of rows without a
database, using the same NULL, LIKE and ordering rules as SQLite.

Populated relations are ignored.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, firstArg(args), cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Rows, "rows", "", "JSON array of rows (- for stdin)")
	_ = cmd.MarkFlagRequired("rows")

	return cmd
}

func runEval(opts *EvalOptions, path string, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return s.fail(err)
	}
	if path == "-" && opts.Rows == "-" {
		return s.fail(tagError(ErrCodeGeneric, errors.New("query and rows cannot both be read from stdin")))
	}

	rows, err := s.readRows(opts.Rows)
	if err != nil {
		return s.fail(err)
	}

	q, err := s.compile(path, opts.QueryString, nil)
	if err != nil {
		return s.fail(err)
	}

	out, err := queryir.Eval(q, rows)
	if err != nil {
		return s.fail(err)
	}

	result := &EvalResult{Rows: out, Matched: len(out), Scanned: len(rows)}
	if s.formatter.Format == "json" {
		return s.formatter.Success(result)
	}
	for _, row := range out {
		line, err := json.Marshal(row)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.formatter.Writer, string(line))
	}
	fmt.Fprintf(s.formatter.Writer, "%d row(s) returned from %d\n", result.Matched, result.Scanned)
	return nil
}

// readRows decodes a JSON array of objects, keeping numbers exact.
func (s *session) readRows(path string) ([]queryir.Row, error) {
	data, err := s.readInput(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []queryir.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, tagError(ErrCodeDecode, fmt.Errorf("decode rows: %w", err))
	}
	if rows == nil {
		rows = []queryir.Row{}
	}
	return rows, nil
}
