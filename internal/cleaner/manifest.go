package cleaner

import (
	"fmt"
	"os"
	"time"

	"github.com/fenilsonani/macsweep/pkg/utils"
)

// DeletionManifest keeps track of deleted files
type DeletionManifest struct {
	Files     []DeletedFileInfo
	Timestamp time.Time
	TotalSize int64
}

// DeletedFileInfo represents information about a deleted file
type DeletedFileInfo struct {
	Path      string
	Size      int64
	Category  string
	DeletedAt time.Time
}

// NewDeletionManifest creates a new DeletionManifest
func NewDeletionManifest() *DeletionManifest {
	return &DeletionManifest{
		Files:     []DeletedFileInfo{},
		Timestamp: time.Now(),
	}
}

// Add adds a file to the manifest
func (m *DeletionManifest) Add(path string, size int64, category string) {
	m.Files = append(m.Files, DeletedFileInfo{
		Path:      path,
		Size:      size,
		Category:  category,
		DeletedAt: time.Now(),
	})
	m.TotalSize += size
}

// Save writes the manifest as plain text
func (m *DeletionManifest) Save(path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	fmt.Fprintf(file, "Deletion Manifest\n")
	fmt.Fprintf(file, "Created: %s\n", m.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(file, "Total Size: %d bytes (%s)\n", m.TotalSize, utils.FormatBytes(m.TotalSize))
	fmt.Fprintf(file, "Total Files: %d\n\n", len(m.Files))

	for _, f := range m.Files {
		fmt.Fprintf(file, "%s | %d bytes | %s | %s\n",
			f.Path, f.Size, f.Category, f.DeletedAt.Format(time.RFC3339))
	}

	return file.Close()
}
