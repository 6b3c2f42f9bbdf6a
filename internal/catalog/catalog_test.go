package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fenilsonani/macsweep/internal/platform"
	"github.com/fenilsonani/macsweep/pkg/utils"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Default Tests
// =============================================================================

func TestDefaultMacOSCatalog(t *testing.T) {
	info, err := platform.InfoFor(platform.MacOS, "/Users/test", "test", 501)
	if err != nil {
		t.Fatal(err)
	}

	cat := Default(info)
	if err := cat.Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}

	names := cat.Names()
	if names[0] != "browser_safari" {
		t.Errorf("first category = %q, want browser_safari", names[0])
	}
	if names[len(names)-1] != "trash" {
		t.Errorf("last category = %q, want trash", names[len(names)-1])
	}

	trash, ok := cat.Get("trash")
	if !ok {
		t.Fatal("trash category missing")
	}
	if !trash.IncludeHidden {
		t.Error("trash must include hidden entries")
	}

	large, _ := cat.Get("large_files")
	if int64(large.MinSize) != 100*utils.MB {
		t.Errorf("large_files MinSize = %d, want 100 MiB", large.MinSize)
	}

	sys, _ := cat.Get("system_caches")
	if !sys.RequiresPrivileges {
		t.Error("system caches should require privileges")
	}

	dups, _ := cat.Get("duplicate_photos")
	if dups.Rule != RuleDuplicates {
		t.Errorf("duplicate_photos rule = %q", dups.Rule)
	}
}

func TestDefaultSkipsCategoriesWithoutRoots(t *testing.T) {
	info, _ := platform.InfoFor(platform.Linux, "/home/test", "test", 1000)
	cat := Default(info)

	if _, ok := cat.Get("ios_backups"); ok {
		t.Error("ios_backups has no roots on linux and should be omitted")
	}
	if _, ok := cat.Get("user_caches"); !ok {
		t.Error("user_caches should be present on linux")
	}
}

// =============================================================================
// Parse / Validate Tests
// =============================================================================

func TestParseCatalog(t *testing.T) {
	data := `
categories:
  - name: logs
    label: App Logs
    type: log
    roots: ["~/Library/Logs"]
    extensions: [".LOG", "txt"]
  - name: big
    type: large
    roots: ["/data"]
    min_size: 250MB
  - name: raw
    roots: ["/data"]
    min_size: 4096
`
	cat, err := Parse([]byte(data), "/Users/test")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	logs, _ := cat.Get("logs")
	if logs.Roots[0] != "/Users/test/Library/Logs" {
		t.Errorf("home not expanded: %q", logs.Roots[0])
	}
	if logs.Extensions[0] != "log" || logs.Extensions[1] != "txt" {
		t.Errorf("extensions not normalized: %v", logs.Extensions)
	}

	big, _ := cat.Get("big")
	if int64(big.MinSize) != 250*utils.MB {
		t.Errorf("min_size = %d, want %d", big.MinSize, 250*utils.MB)
	}

	raw, _ := cat.Get("raw")
	if raw.MinSize != 4096 || raw.Type != TypeOther {
		t.Errorf("raw = %+v", raw)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cat  Catalog
		msg  string
	}{
		{"missing name", Catalog{Categories: []Category{{Roots: []string{"/x"}}}}, "has no name"},
		{"duplicate", Catalog{Categories: []Category{{Name: "a"}, {Name: "a"}}}, "duplicate category"},
		{"bad type", Catalog{Categories: []Category{{Name: "a", Type: "weird"}}}, "unknown type"},
		{"bad rule", Catalog{Categories: []Category{{Name: "a", Rule: "magic"}}}, "unknown rule"},
		{"relative root", Catalog{Categories: []Category{{Name: "a", Roots: []string{"rel"}}}}, "must be absolute"},
		{"bad pattern", Catalog{Categories: []Category{{Name: "a", NamePatterns: []string{"["}}}}, "invalid glob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cat.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.msg)
			}
		})
	}
}

func TestValidateCollapsesOverlappingRoots(t *testing.T) {
	tests := []struct {
		name  string
		roots []string
		want  []string
	}{
		{"nested", []string{"/u/Pictures", "/u/Pictures/Imports"}, []string{"/u/Pictures"}},
		{"nested listed first", []string{"/u/Pictures/Imports", "/u/Pictures"}, []string{"/u/Pictures"}},
		{"repeated", []string{"/u/Logs", "/u/Logs/", "/u/Caches"}, []string{"/u/Logs", "/u/Caches"}},
		{"sibling prefix", []string{"/u/Pictures", "/u/Pictures2"}, []string{"/u/Pictures", "/u/Pictures2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Catalog{Categories: []Category{{Name: "a", Roots: tt.roots}}}
			if err := c.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got := c.Categories[0].Roots; strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Roots = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "/home"); err == nil {
		t.Error("expected error for missing catalog file")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	os.WriteFile(path, []byte("categories:\n  - name: tmp\n    roots: [/tmp/x]\n"), 0644)

	cat, err := Load(path, "/home")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cat.Categories) != 1 {
		t.Errorf("expected 1 category, got %d", len(cat.Categories))
	}
}

func TestSizeMarshalsHumanReadable(t *testing.T) {
	out, err := yaml.Marshal(Category{Name: "x", MinSize: Size(utils.MB)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "min_size: 1.0 MiB") {
		t.Errorf("marshaled = %s", out)
	}

	var back Category
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if int64(back.MinSize) != utils.MB {
		t.Errorf("round trip MinSize = %d", back.MinSize)
	}
}

// =============================================================================
// Filter / Override Tests
// =============================================================================

func TestFilterKeepsCatalogOrder(t *testing.T) {
	cat := &Catalog{Categories: []Category{{Name: "a"}, {Name: "b"}, {Name: "c"}}}

	got, err := cat.Filter([]string{"c", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if names := got.Names(); len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Errorf("Filter names = %v, want [a c]", names)
	}

	if _, err := cat.Filter([]string{"zzz"}); err == nil {
		t.Error("expected unknown category error")
	}

	all, _ := cat.Filter(nil)
	if len(all.Categories) != 3 {
		t.Error("empty filter should keep everything")
	}
}

func TestWithOverrides(t *testing.T) {
	base := &Catalog{Categories: []Category{{Name: "a", Label: "A"}, {Name: "b"}}}
	override := &Catalog{Categories: []Category{{Name: "a", Label: "Custom"}, {Name: "z"}}}

	got := WithOverrides(base, override)
	if got.Categories[0].Label != "Custom" {
		t.Errorf("override not applied: %+v", got.Categories[0])
	}
	if names := got.Names(); len(names) != 3 || names[2] != "z" {
		t.Errorf("names = %v", names)
	}
	if base.Categories[0].Label != "A" {
		t.Error("base catalog was mutated")
	}
}
