// Package achievement derives streak, points, level and badge state from a
// student's assignments and reconciles badge unlocks into persisted records.
// Everything in this package is pure except LoadCatalog, which reads a file.
package achievement

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gpadva81/crystal-edu-track-now/internal/domain/shared"
)

// BadgeKind selects the counter a badge is measured against.
type BadgeKind string

const (
	// KindCompletedCount compares against the number of completed assignments.
	KindCompletedCount BadgeKind = "completed_count"
	// KindStreak compares against the current day streak.
	KindStreak BadgeKind = "streak"
)

// IsValid reports whether k is a known kind.
func (k BadgeKind) IsValid() bool {
	return k == KindCompletedCount || k == KindStreak
}

// BadgeDefinition is one catalog row.
type BadgeDefinition struct {
	Name        string    `yaml:"name" json:"name"`
	Kind        BadgeKind `yaml:"kind" json:"kind"`
	Threshold   int       `yaml:"threshold" json:"threshold"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// Catalog is an ordered set of badge definitions.
type Catalog struct {
	Badges []BadgeDefinition `yaml:"badges"`
}

// DefaultCatalog returns the built-in badge table.
func DefaultCatalog() Catalog {
	return Catalog{Badges: []BadgeDefinition{
		{Name: "Beginner", Kind: KindCompletedCount, Threshold: 5, Description: "Complete 5 assignments"},
		{Name: "Dedicated", Kind: KindCompletedCount, Threshold: 20, Description: "Complete 20 assignments"},
		{Name: "On Fire", Kind: KindStreak, Threshold: 3, Description: "3 day streak"},
		{Name: "Champion", Kind: KindCompletedCount, Threshold: 50, Description: "Complete 50 assignments"},
	}}
}

// Lookup finds a definition by exact name.
func (c Catalog) Lookup(name string) (BadgeDefinition, bool) {
	for _, b := range c.Badges {
		if b.Name == name {
			return b, true
		}
	}
	return BadgeDefinition{}, false
}

// Validate checks names, kinds and thresholds.
func (c Catalog) Validate() error {
	if len(c.Badges) == 0 {
		return shared.WrapError("achievement", "Validate", shared.ErrValidation, "invalid badge catalog", fmt.Errorf("catalog is empty"))
	}

	var problems []string
	seen := make(map[string]struct{}, len(c.Badges))
	for i, b := range c.Badges {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("badge %d: name is required", i))
			continue
		}
		if _, dup := seen[name]; dup {
			problems = append(problems, fmt.Sprintf("badge %q: duplicate name", name))
		}
		seen[name] = struct{}{}
		if !b.Kind.IsValid() {
			problems = append(problems, fmt.Sprintf("badge %q: unknown kind %q", name, b.Kind))
		}
		if b.Threshold <= 0 {
			problems = append(problems, fmt.Sprintf("badge %q: threshold must be positive", name))
		}
	}

	if len(problems) > 0 {
		return shared.WrapError("achievement", "Validate", shared.ErrValidation, "invalid badge catalog",
			fmt.Errorf("%s", strings.Join(problems, "; ")))
	}
	return nil
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, shared.WrapError("achievement", "ParseCatalog", shared.ErrInvalidFormat, "cannot decode badge catalog", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// LoadCatalog reads a YAML catalog. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read badge catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}
