package scanner

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// DiskNode is one entry in a space-usage tree
type DiskNode struct {
	Name     string      `json:"name" yaml:"name"`
	Path     string      `json:"path" yaml:"path"`
	IsDir    bool        `json:"is_dir" yaml:"is_dir"`
	Children []*DiskNode `json:"children,omitempty" yaml:"children,omitempty"`

	// own is the node's size when it has no expanded children: the file
	// length, or the walked total of a directory below the depth limit
	own int64

	sizeOnce sync.Once
	size     int64
}

// Size is the recursive byte total of the node, computed once and cached.
// The tree must not be modified after the first call.
func (n *DiskNode) Size() int64 {
	n.sizeOnce.Do(func() {
		total := n.own
		for _, c := range n.Children {
			total += c.Size()
		}
		n.size = total
	})
	return n.size
}

// Largest returns up to k children ordered by size, largest first
func (n *DiskNode) Largest(k int) []*DiskNode {
	children := slices.Clone(n.Children)
	slices.SortStableFunc(children, func(a, b *DiskNode) int {
		switch {
		case a.Size() > b.Size():
			return -1
		case a.Size() < b.Size():
			return 1
		}
		return 0
	})
	if k > 0 && len(children) > k {
		children = children[:k]
	}
	return children
}

// BuildTree expands root to maxDepth levels of children. Directories at the
// depth limit are kept as leaves whose size is the total of everything
// beneath them. Hidden entries are skipped, as are entries that cannot be read.
func BuildTree(ctx context.Context, root string, maxDepth int) (*DiskNode, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}

	node := &DiskNode{Name: filepath.Base(root), Path: root, IsDir: info.IsDir()}
	if !node.IsDir {
		node.own = info.Size()
		return node, nil
	}

	if err := expand(ctx, node, maxDepth, 0); err != nil {
		return nil, err
	}
	return node, nil
}

func expand(ctx context.Context, node *DiskNode, maxDepth, depth int) error {
	if depth >= maxDepth {
		total, err := dirSize(ctx, node.Path)
		node.own = total
		return err
	}

	entries, err := os.ReadDir(node.Path)
	if err != nil {
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if isHidden(entry.Name()) {
			continue
		}

		child := &DiskNode{
			Name: entry.Name(),
			Path: filepath.Join(node.Path, entry.Name()),
		}

		switch {
		case entry.IsDir():
			child.IsDir = true
			if err := expand(ctx, child, maxDepth, depth+1); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				continue
			}
			child.own = info.Size()
		default:
			continue
		}

		node.Children = append(node.Children, child)
	}
	return nil
}

// dirSize totals the regular files under dir, skipping hidden entries
func dirSize(ctx context.Context, dir string) (int64, error) {
	var total int64
	err := walkFiles(ctx, dir, walkOptions{}, func(fe fileEntry) {
		total += fe.info.Size()
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
