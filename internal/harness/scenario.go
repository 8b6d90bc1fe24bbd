package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a query conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Entity is the schema entity the request targets.
	Entity string `yaml:"entity"`

	// Setup lists rows to insert before the request runs, table by table.
	Setup []TableRows `yaml:"setup,omitempty"`

	// Request is the request document. An absent request is {}.
	Request yaml.Node `yaml:"request,omitempty"`

	// QueryString is the request in URL query-string form, as an
	// alternative to Request ("filters[age][$gt]=26&sort=age").
	QueryString string `yaml:"query_string,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// TableRows seeds one table.
type TableRows struct {
	Table string           `yaml:"table"`
	Rows  []map[string]any `yaml:"rows"`
}

// Assertion validates one aspect of a scenario's outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// IDs are the expected primary keys, in order (ids).
	IDs []int64 `yaml:"ids,omitempty"`

	// Count is the expected total (total).
	Count *int64 `yaml:"count,omitempty"`

	// Code is the expected compile error code (error).
	Code string `yaml:"code,omitempty"`

	// Issues are the expected schema issues, in order (issues).
	Issues []string `yaml:"issues,omitempty"`

	// Text must appear in the rendered SQL (sql_contains).
	Text string `yaml:"text,omitempty"`

	// Index selects a record (record).
	Index int `yaml:"index,omitempty"`

	// Expect holds expected field values (record). Subset match; nested
	// maps match populated relations.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertIDs            = "ids"
	AssertTotal          = "total"
	AssertError          = "error"
	AssertIssues         = "issues"
	AssertSQLContains    = "sql_contains"
	AssertRecord         = "record"
	AssertAgreesWithEval = "agrees_with_eval"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), s.Name, prev)
		}
		names[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Entity == "" {
		return fmt.Errorf("entity is required")
	}

	if s.Request.Kind != 0 && s.Request.Kind != yaml.MappingNode {
		return fmt.Errorf("request must be a mapping")
	}

	if s.Request.Kind != 0 && s.QueryString != "" {
		return fmt.Errorf("request and query_string are mutually exclusive")
	}

	for i, t := range s.Setup {
		if t.Table == "" {
			return fmt.Errorf("setup[%d]: table is required", i)
		}
		if len(t.Rows) == 0 {
			return fmt.Errorf("setup[%d]: rows list is required and must be non-empty", i)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertIDs:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids list is required for ids (use [] for none)", index)
		}
	case AssertTotal:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for total", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	case AssertIssues:
		if len(a.Issues) == 0 {
			return fmt.Errorf("assertions[%d]: issues list is required for issues", index)
		}
	case AssertSQLContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for sql_contains", index)
		}
	case AssertRecord:
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertAgreesWithEval:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
