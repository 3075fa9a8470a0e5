// Package domain holds the value types shared across the harness: test
// cases, per-test outcomes and implementation self-descriptions.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TestCase groups one schema with the ordered tests that exercise it.
// Instances come from the external input stream and are read-only.
type TestCase struct {
	Description string                     `json:"description"`
	Schema      json.RawMessage            `json:"schema"`
	Registry    map[string]json.RawMessage `json:"registry,omitempty"`
	Comment     string                     `json:"comment,omitempty"`
	Tests       []Test                     `json:"tests"`
}

// Test is a single instance checked against the case's schema. Valid is the
// expected validity used by downstream consumers; the harness itself never
// reads it.
type Test struct {
	Description string          `json:"description"`
	Instance    json.RawMessage `json:"instance"`
	Comment     string          `json:"comment,omitempty"`
	Valid       *bool           `json:"valid,omitempty"`
}

// ParseTestCase decodes one input-stream line and checks the structural
// invariants the orchestrator relies on.
func ParseTestCase(line []byte) (TestCase, error) {
	var tc TestCase
	if err := json.Unmarshal(line, &tc); err != nil {
		return TestCase{}, fmt.Errorf("malformed test case: %w", err)
	}
	if err := tc.Check(); err != nil {
		return TestCase{}, err
	}
	return tc, nil
}

// Check verifies the case invariants: a description, a schema and at least
// one test.
func (tc TestCase) Check() error {
	if tc.Description == "" {
		return errors.New("test case has no description")
	}
	if len(tc.Schema) == 0 {
		return fmt.Errorf("test case %q has no schema", tc.Description)
	}
	if len(tc.Tests) == 0 {
		return fmt.Errorf("test case %q has no tests", tc.Description)
	}
	return nil
}

// WithSchemaDialect returns a copy of the case whose schema carries an
// explicit $schema set to the given dialect URI. Boolean schemas are
// returned unchanged since they cannot carry keywords.
func (tc TestCase) WithSchemaDialect(uri string) (TestCase, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(tc.Schema, &obj); err != nil {
		// Not an object (boolean schema); nothing to set.
		return tc, nil //nolint:nilerr
	}
	quoted, err := json.Marshal(uri)
	if err != nil {
		return tc, err
	}
	obj["$schema"] = quoted
	raw, err := json.Marshal(obj)
	if err != nil {
		return tc, err
	}
	out := tc
	out.Schema = raw
	return out, nil
}
