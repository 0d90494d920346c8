package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"carebase/internal/sheet"
)

// patternsFile is the YAML shape of a header pattern override file.
type patternsFile struct {
	Patterns []sheet.FieldPattern `yaml:"patterns"`
}

// LoadPatterns returns the header classification rules. An empty path
// yields the built-in defaults; otherwise the YAML file replaces them
// wholesale, so an override file must list every field it wants mapped.
func LoadPatterns(path string) ([]sheet.FieldPattern, error) {
	if path == "" {
		return sheet.DefaultPatterns(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patterns file: %w", err)
	}

	var pf patternsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse patterns file: %w", err)
	}

	if len(pf.Patterns) == 0 {
		return nil, fmt.Errorf("patterns file %s defines no patterns", path)
	}

	for i, p := range pf.Patterns {
		if p.Field == "" {
			return nil, fmt.Errorf("patterns file %s: rule %d has no field", path, i)
		}
		if len(p.Exact) == 0 && len(p.Keywords) == 0 {
			return nil, fmt.Errorf("patterns file %s: rule for %q has no exact names or keywords", path, p.Field)
		}
	}

	return pf.Patterns, nil
}
