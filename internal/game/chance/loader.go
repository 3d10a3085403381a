package chance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTable reads and validates one probability table from a YAML file.
//
// Precondition: path must name a readable YAML file.
// Postcondition: the returned table passes Validate, or err is non-nil.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing table file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validating table file %s: %w", path, err)
	}
	return &t, nil
}

// LoadTables reads all .yaml files in dir and returns the parsed tables
// keyed by table ID.
//
// Precondition: dir must be a readable directory path.
// Postcondition: every returned table passes Validate and IDs are unique.
func LoadTables(dir string) (map[string]*Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	tables := make(map[string]*Table)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		t, err := LoadTable(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if _, dup := tables[t.ID]; dup {
			return nil, fmt.Errorf("duplicate table id %q in %s", t.ID, dir)
		}
		tables[t.ID] = t
	}
	return tables, nil
}
