// Package schema handles loading, validating, and applying versioned table
// contracts for the staging and processed layers.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry manages table contracts loaded from YAML files. Lookups by table
// name return the current (highest loaded) version; older versions are kept
// for inspection but never used for validation.
type Registry struct {
	current  map[string]*Schema
	versions map[string][]*Schema
}

// NewRegistry creates a new empty schema registry.
func NewRegistry() *Registry {
	return &Registry{
		current:  make(map[string]*Schema),
		versions: make(map[string][]*Schema),
	}
}

// LoadDir loads all YAML contract files from a directory.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading schema dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		if err := r.LoadFile(path); err != nil {
			return fmt.Errorf("loading schema %s: %w", path, err)
		}
	}
	return nil
}

// LoadFile loads a single contract YAML file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return r.Register(&s)
}

// Register adds a contract directly to the registry.
func (r *Registry) Register(s *Schema) error {
	if err := validateDefinition(s); err != nil {
		return err
	}
	r.versions[s.Table] = append(r.versions[s.Table], s)
	if cur, ok := r.current[s.Table]; !ok || s.Version > cur.Version {
		r.current[s.Table] = s
	}
	return nil
}

// Get returns the current contract for a table.
func (r *Registry) Get(table string) (*Schema, error) {
	s, ok := r.current[table]
	if !ok {
		return nil, fmt.Errorf("no schema registered for table %q", table)
	}
	return s, nil
}

// Validate checks one row against the current contract for the table.
// Returns nil for a valid row or a *types.SchemaViolation.
func (r *Registry) Validate(table string, row map[string]interface{}) error {
	s, err := r.Get(table)
	if err != nil {
		return err
	}
	return s.Validate(row)
}

// Tables returns the table names with a registered contract.
func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.current))
	for t := range r.current {
		out = append(out, t)
	}
	return out
}
