package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strapiql/internal/queryir"
	"github.com/roach88/strapiql/internal/querysql"
	"github.com/roach88/strapiql/internal/schema"
)

// QueryOptions holds the flags shared by commands that read a request.
type QueryOptions struct {
	*RootOptions
	Entity      string // entity name from the schema
	QueryString string // request as a URL query string instead of a file
}

func (o *QueryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Entity, "entity", "e", "", "entity to compile against")
	cmd.Flags().StringVar(&o.QueryString, "qs", "", "request as a URL query string")
}

// CompileResult is the JSON payload of the compile command.
type CompileResult struct {
	Query     *queryir.CompiledQuery `json:"query"`
	ShapeHash string                 `json:"shape_hash"`
	SQL       string                 `json:"sql,omitempty"`
	Args      map[string]any         `json:"args,omitempty"`

	argNames []string // Args keys in placeholder order
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [query-file|-]",
		Short: "Compile a request to query IR and SQL",
		Long: `Compile a JSON or YAML request into the query IR.

With --entity the query is also rendered as parameterized SQLite SQL
against the entity's table.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, firstArg(args), cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runCompile(opts *QueryOptions, path string, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return s.fail(err)
	}

	var entity *schema.Entity
	if opts.Entity != "" {
		if _, entity, err = s.entity(opts.Entity); err != nil {
			return s.fail(err)
		}
	}

	q, err := s.compile(path, opts.QueryString, entity)
	if err != nil {
		return s.fail(err)
	}

	hash, err := queryir.ShapeHash(q)
	if err != nil {
		return s.fail(err)
	}
	result := &CompileResult{Query: q, ShapeHash: hash}

	if entity != nil {
		st, err := querysql.NewSQLCompiler().Render(querysql.Target{
			Table:      entity.Table,
			PrimaryKey: entity.PrimaryKey,
		}, q)
		if err != nil {
			return s.fail(err)
		}
		result.SQL = st.SQL
		result.Args = statementArgs(st)
		result.argNames = st.ArgNames()
	}

	return outputCompileSuccess(s.formatter, result)
}

// compile reads a request and compiles it. When entity is non-nil, soft
// delete visibility is adjusted to what the entity supports.
func (s *session) compile(path, queryString string, entity *schema.Entity) (*queryir.CompiledQuery, error) {
	spec, err := s.readQuery(path, queryString)
	if err != nil {
		return nil, err
	}
	if entity != nil {
		spec.SoftDelete = visibilityFor(entity, spec)
	}
	return s.compiler.Compile(spec)
}

// outputCompileSuccess prints SQL when rendered, the query IR otherwise.
func outputCompileSuccess(formatter *OutputFormatter, result *CompileResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if result.SQL != "" {
		fmt.Fprintln(formatter.Writer, result.SQL)
		for _, name := range result.argNames {
			fmt.Fprintf(formatter.Writer, "  :%s = %#v\n", name, result.Args[name])
		}
		return nil
	}

	data, err := json.MarshalIndent(result.Query, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(formatter.Writer, string(data))
	fmt.Fprintf(formatter.Writer, "shape: %s\n", result.ShapeHash)
	return nil
}

// statementArgs maps placeholder names to bound values.
func statementArgs(st querysql.Statement) map[string]any {
	args := make(map[string]any, len(st.Args))
	for _, a := range st.Args {
		if na, ok := a.(sql.NamedArg); ok {
			args[na.Name] = na.Value
		}
	}
	return args
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
