package scanner

import (
	"slices"
	"time"

	"github.com/fenilsonani/macsweep/internal/catalog"
)

// ItemType is the coarse classification of a scanned file
type ItemType string

const (
	TypeCache     ItemType = catalog.TypeCache
	TypeLog       ItemType = catalog.TypeLog
	TypeTemp      ItemType = catalog.TypeTemp
	TypeDownload  ItemType = catalog.TypeDownload
	TypeDuplicate ItemType = catalog.TypeDuplicate
	TypeLarge     ItemType = catalog.TypeLarge
	TypeTrash     ItemType = catalog.TypeTrash
	TypeOther     ItemType = catalog.TypeOther

	// Refinements used for large files
	TypeImage    ItemType = "image"
	TypeVideo    ItemType = "video"
	TypeArchive  ItemType = "archive"
	TypeDocument ItemType = "document"
)

// ScanItem is one reclaimable file found during a scan
type ScanItem struct {
	ID                 string    `json:"id" yaml:"id"`
	Path               string    `json:"path" yaml:"path"`
	Size               int64     `json:"size" yaml:"size"`
	Type               ItemType  `json:"type" yaml:"type"`
	Category           string    `json:"category" yaml:"category"`
	Selected           bool      `json:"selected" yaml:"selected"`
	CreatedAt          time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	ModifiedAt         time.Time `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
	Reason             string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Hash               string    `json:"hash,omitempty" yaml:"hash,omitempty"`
	RequiresPrivileges bool      `json:"requires_privileges,omitempty" yaml:"requires_privileges,omitempty"`
}

// CategoryResult is the output of scanning one category
type CategoryResult struct {
	Index     int        `json:"-" yaml:"-"`
	Name      string     `json:"name" yaml:"name"`
	Label     string     `json:"label" yaml:"label"`
	Items     []ScanItem `json:"items" yaml:"items"`
	TotalSize int64      `json:"total_size" yaml:"total_size"`
	Err       error      `json:"-" yaml:"-"`
}

func (r *CategoryResult) recompute() {
	r.TotalSize = 0
	for _, item := range r.Items {
		r.TotalSize += item.Size
	}
}

// Inventory is the aggregated result of a full scan, ordered by category.
// Callers may change only the Selected flags once it is returned.
type Inventory struct {
	Categories []CategoryResult `json:"categories" yaml:"categories"`
	ScannedAt  time.Time        `json:"scanned_at" yaml:"scanned_at"`
}

// Aggregate merges per-category results into one inventory.
// Results are ordered by Index whatever order they completed in, and a path
// reported by several categories is kept only in the first.
func Aggregate(results []CategoryResult) *Inventory {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b CategoryResult) int {
		return a.Index - b.Index
	})

	inv := &Inventory{ScannedAt: time.Now()}
	seen := make(map[string]bool)

	for _, res := range ordered {
		kept := make([]ScanItem, 0, len(res.Items))
		for _, item := range res.Items {
			if seen[item.Path] {
				continue
			}
			seen[item.Path] = true
			kept = append(kept, item)
		}
		res.Items = kept
		res.Err = nil
		res.recompute()
		inv.Categories = append(inv.Categories, res)
	}

	return inv
}

// TotalSize is the sum of all item sizes
func (inv *Inventory) TotalSize() int64 {
	var total int64
	for _, c := range inv.Categories {
		total += c.TotalSize
	}
	return total
}

// TotalCount is the number of items across all categories
func (inv *Inventory) TotalCount() int {
	n := 0
	for _, c := range inv.Categories {
		n += len(c.Items)
	}
	return n
}

// Category returns the result for a category name
func (inv *Inventory) Category(name string) (*CategoryResult, bool) {
	for i := range inv.Categories {
		if inv.Categories[i].Name == name {
			return &inv.Categories[i], true
		}
	}
	return nil, false
}

// All returns every item in category order
func (inv *Inventory) All() []ScanItem {
	items := make([]ScanItem, 0, inv.TotalCount())
	for _, c := range inv.Categories {
		items = append(items, c.Items...)
	}
	return items
}

// Selected returns the selected items in category order
func (inv *Inventory) Selected() []ScanItem {
	var items []ScanItem
	for _, c := range inv.Categories {
		for _, item := range c.Items {
			if item.Selected {
				items = append(items, item)
			}
		}
	}
	return items
}

// Select sets the selection flag of the item at path and reports whether it was found
func (inv *Inventory) Select(path string, selected bool) bool {
	for ci := range inv.Categories {
		items := inv.Categories[ci].Items
		for i := range items {
			if items[i].Path == path {
				items[i].Selected = selected
				return true
			}
		}
	}
	return false
}

// SelectCategory sets the selection flag for every item in a category
func (inv *Inventory) SelectCategory(name string, selected bool) bool {
	c, ok := inv.Category(name)
	if !ok {
		return false
	}
	for i := range c.Items {
		c.Items[i].Selected = selected
	}
	return true
}

// SelectAll sets the selection flag on every item
func (inv *Inventory) SelectAll(selected bool) {
	for ci := range inv.Categories {
		for i := range inv.Categories[ci].Items {
			inv.Categories[ci].Items[i].Selected = selected
		}
	}
}
