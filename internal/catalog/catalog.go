// Package catalog holds the static per-category scan rules: where to look and
// what counts as reclaimable. The scanner consumes it read-only.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fenilsonani/macsweep/internal/security"
	"github.com/fenilsonani/macsweep/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Rule selects a content-based matcher for a category
type Rule string

const (
	RuleNone       Rule = ""
	RuleDuplicates Rule = "duplicates"
	RuleRawJPEG    Rule = "raw_jpeg"
)

// Item type tags a category may assign
const (
	TypeCache     = "cache"
	TypeLog       = "log"
	TypeTemp      = "temp"
	TypeDownload  = "download"
	TypeDuplicate = "duplicate"
	TypeLarge     = "large"
	TypeTrash     = "trash"
	TypeOther     = "other"
)

var knownTypes = map[string]bool{
	TypeCache: true, TypeLog: true, TypeTemp: true, TypeDownload: true,
	TypeDuplicate: true, TypeLarge: true, TypeTrash: true, TypeOther: true,
}

// Size is a byte count that reads and writes as "100MB" style strings in YAML
type Size int64

// UnmarshalYAML accepts either an integer byte count or a human-readable size
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*s = Size(n)
		return nil
	}

	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	parsed, err := utils.ParseSize(str)
	if err != nil {
		return err
	}
	*s = Size(parsed)
	return nil
}

// MarshalYAML writes the size in IEC units
func (s Size) MarshalYAML() (interface{}, error) {
	if s <= 0 {
		return 0, nil
	}
	return utils.FormatBytes(int64(s)), nil
}

// Category describes one group of reclaimable files
type Category struct {
	Name  string   `yaml:"name"`
	Label string   `yaml:"label"`
	Type  string   `yaml:"type"`
	Roots []string `yaml:"roots"`

	// A file matches when any of these apply. A category with none of them
	// matches every regular file under its roots.
	Extensions   []string `yaml:"extensions,omitempty"`
	MinSize      Size     `yaml:"min_size,omitempty"`
	NamePatterns []string `yaml:"name_patterns,omitempty"`

	// PathContains narrows candidates to paths containing one of the fragments
	PathContains []string `yaml:"path_contains,omitempty"`

	IncludeHidden      bool `yaml:"include_hidden,omitempty"`
	RequiresPrivileges bool `yaml:"requires_privileges,omitempty"`
	Rule               Rule `yaml:"rule,omitempty"`
}

// HasRules reports whether the category restricts matches at all
func (c *Category) HasRules() bool {
	return len(c.Extensions) > 0 || c.MinSize > 0 || len(c.NamePatterns) > 0
}

// DisplayLabel returns Label, falling back to Name
func (c *Category) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// Catalog is the ordered list of categories
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// Names returns category names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		names[i] = cat.Name
	}
	return names
}

// Get looks up a category by name
func (c *Catalog) Get(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// Filter returns a catalog containing only the named categories, keeping catalog order.
// An empty names list returns the catalog unchanged.
func (c *Catalog) Filter(names []string) (*Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := c.Get(n); !ok {
			return nil, fmt.Errorf("unknown category: %s", n)
		}
		want[n] = true
	}

	out := &Catalog{}
	for _, cat := range c.Categories {
		if want[cat.Name] {
			out.Categories = append(out.Categories, cat)
		}
	}
	return out, nil
}

// Validate checks names, types, roots and patterns
func (c *Catalog) Validate() error {
	seen := make(map[string]bool)

	for i := range c.Categories {
		cat := &c.Categories[i]
		if cat.Name == "" {
			return fmt.Errorf("category %d has no name", i)
		}
		if seen[cat.Name] {
			return fmt.Errorf("duplicate category name: %s", cat.Name)
		}
		seen[cat.Name] = true

		if cat.Type == "" {
			cat.Type = TypeOther
		}
		if !knownTypes[cat.Type] {
			return fmt.Errorf("category %s: unknown type %q", cat.Name, cat.Type)
		}

		switch cat.Rule {
		case RuleNone, RuleDuplicates, RuleRawJPEG:
		default:
			return fmt.Errorf("category %s: unknown rule %q", cat.Name, cat.Rule)
		}

		for _, root := range cat.Roots {
			if !filepath.IsAbs(root) {
				return fmt.Errorf("category %s: root must be absolute: %s", cat.Name, root)
			}
		}
		cat.Roots = collapseRoots(cat.Roots)
		for _, pattern := range cat.NamePatterns {
			if err := security.ValidateGlobPattern(pattern); err != nil {
				return fmt.Errorf("category %s: %w", cat.Name, err)
			}
		}
		for j, ext := range cat.Extensions {
			cat.Extensions[j] = NormalizeExt(ext)
		}
	}

	return nil
}

// collapseRoots cleans roots and drops repeats and roots nested inside
// another root, keeping the first-listed order.
func collapseRoots(roots []string) []string {
	if len(roots) < 2 {
		return roots
	}
	cleaned := make([]string, len(roots))
	for i, r := range roots {
		cleaned[i] = filepath.Clean(r)
	}

	out := cleaned[:0:0]
	for i, r := range cleaned {
		covered := false
		for j, other := range cleaned {
			if i == j {
				continue
			}
			if r == other {
				// keep the first of identical roots
				covered = j < i
			} else {
				covered = within(r, other)
			}
			if covered {
				break
			}
		}
		if !covered {
			out = append(out, r)
		}
	}
	return out
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// NormalizeExt lowercases an extension and strips the leading dot
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// Load reads a catalog from a YAML file. Roots may start with "~/".
func Load(path, homeDir string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data, homeDir)
}

// Parse decodes a catalog from YAML and validates it
func Parse(data []byte, homeDir string) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	for i := range cat.Categories {
		for j, root := range cat.Categories[i].Roots {
			cat.Categories[i].Roots[j] = expandHome(root, homeDir)
		}
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &cat, nil
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(homeDir, rest)
	}
	return path
}
