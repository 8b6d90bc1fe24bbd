package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/strapiql/internal/compiler"
	"github.com/roach88/strapiql/internal/config"
	"github.com/roach88/strapiql/internal/schema"
)

// session is the state shared by every command invocation: one trace ID,
// one logger, the loaded config and the compiler built from it.
type session struct {
	traceID   string
	logger    *slog.Logger
	cfg       config.Config
	compiler  *compiler.Compiler
	formatter *OutputFormatter
	stdin     io.Reader
}

// newSession loads config and builds the compiler. The formatter is usable
// even when an error is returned.
func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	traceID := uuid.Must(uuid.NewV7()).String()

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
		TraceID: traceID,
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})).With("trace_id", traceID)

	s := &session{
		traceID:   traceID,
		logger:    logger,
		formatter: formatter,
		stdin:     cmd.InOrStdin(),
	}

	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return s, tagError(ErrCodeConfig, err)
		}
		cfg = loaded
		logger.Debug("loaded config", "path", opts.Config)
	}
	s.cfg = cfg

	cc, err := cfg.CompilerConfig()
	if err != nil {
		return s, tagError(ErrCodeConfig, err)
	}
	c, err := compiler.New(cc, compiler.WithLogger(logger))
	if err != nil {
		return s, tagError(ErrCodeConfig, err)
	}
	s.compiler = c
	return s, nil
}

// registry loads the entity schema named by the config, or the bundled
// demo schema.
func (s *session) registry() (*schema.Registry, error) {
	if s.cfg.Schema.Dir == "" {
		reg, err := schema.Default()
		return reg, tagError(ErrCodeSchemaLoad, err)
	}
	s.logger.Debug("loading schema", "dir", s.cfg.Schema.Dir)
	reg, err := schema.Load(s.cfg.Schema.Dir)
	return reg, tagError(ErrCodeSchemaLoad, err)
}

// entity resolves name against the schema.
func (s *session) entity(name string) (*schema.Registry, *schema.Entity, error) {
	if name == "" {
		return nil, nil, tagError(ErrCodeGeneric, errors.New("--entity is required"))
	}
	reg, err := s.registry()
	if err != nil {
		return nil, nil, err
	}
	e, err := reg.Entity(name)
	if err != nil {
		return nil, nil, tagError(ErrCodeSchemaValidation, err)
	}
	return reg, e, nil
}

// readInput reads path, or stdin when path is "-".
func (s *session) readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(s.stdin)
		if err != nil {
			return nil, tagError(ErrCodeReadFailed, fmt.Errorf("reading stdin: %w", err))
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, tagError(ErrCodeNotFound, fmt.Errorf("file not found: %s", path))
	}
	if err != nil {
		return nil, tagError(ErrCodeReadFailed, fmt.Errorf("reading %s: %w", path, err))
	}
	return data, nil
}

// readQuery decodes a request from a JSON or YAML file, stdin, or a
// query string such as "filters[name][$eq]=John&sort=name:desc".
func (s *session) readQuery(path, queryString string) (compiler.QuerySpec, error) {
	if queryString != "" {
		values, err := url.ParseQuery(strings.TrimPrefix(queryString, "?"))
		if err != nil {
			return compiler.QuerySpec{}, tagError(ErrCodeDecode, fmt.Errorf("parse query string: %w", err))
		}
		return compiler.QuerySpecFromValues(values)
	}
	if path == "" {
		return compiler.QuerySpec{}, tagError(ErrCodeGeneric, errors.New("a query file, - or --qs is required"))
	}

	data, err := s.readInput(path)
	if err != nil {
		return compiler.QuerySpec{}, err
	}

	var spec compiler.QuerySpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		spec, err = compiler.DecodeQuerySpecYAML(data)
	default:
		spec, err = compiler.DecodeQuerySpec(data)
	}
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return compiler.QuerySpec{}, err
		}
		return compiler.QuerySpec{}, tagError(ErrCodeDecode, err)
	}
	return spec, nil
}

// fail routes err to the right report: compile errors reject the query,
// everything else is a command error.
func (s *session) fail(err error) error {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return reportCompileError(s.formatter, err)
	}
	return reportSessionError(s.formatter, err)
}

// visibilityFor forces Inclusive for entities without a soft-delete column.
func visibilityFor(e *schema.Entity, spec compiler.QuerySpec) compiler.Visibility {
	if e == nil || !e.SoftDelete {
		return compiler.Inclusive
	}
	return spec.SoftDelete
}
