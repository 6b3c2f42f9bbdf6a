// Package erase overwrites files with random data before unlinking them.
package erase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Pass count presets
const (
	PassesQuick   = 3
	PassesDoD     = 7
	PassesGutmann = 35

	DefaultPasses = PassesDoD
)

// BlockSize is the size of each random write
const BlockSize = 4096

var (
	ErrNotFound        = errors.New("file not found")
	ErrSizeUnavailable = errors.New("unable to determine file size")
	ErrInvalidPasses   = errors.New("passes must be at least 1")
)

// Step names the I/O operation that failed during an overwrite
type Step string

const (
	StepOpen   Step = "open"
	StepSeek   Step = "seek"
	StepRandom Step = "random"
	StepWrite  Step = "write"
	StepSync   Step = "sync"
	StepClose  Step = "close"
	StepUnlink Step = "unlink"
)

// OverwriteError reports an I/O failure part way through a secure delete.
// The file is left in place; Pass is 0 when the failure happened outside a pass.
type OverwriteError struct {
	Path string
	Pass int
	Step Step
	Err  error
}

func (e *OverwriteError) Error() string {
	if e.Pass > 0 {
		return fmt.Sprintf("secure delete %s: pass %d: %s: %v", e.Path, e.Pass, e.Step, e.Err)
	}
	return fmt.Sprintf("secure delete %s: %s: %v", e.Path, e.Step, e.Err)
}

func (e *OverwriteError) Unwrap() error {
	return e.Err
}

// PresetPasses maps a preset name to its pass count
func PresetPasses(name string) (int, error) {
	switch name {
	case "quick":
		return PassesQuick, nil
	case "dod", "standard", "":
		return PassesDoD, nil
	case "gutmann":
		return PassesGutmann, nil
	default:
		return 0, fmt.Errorf("unknown preset %q (quick, dod, gutmann)", name)
	}
}

// Shredder performs multi-pass overwrite deletion
type Shredder struct {
	// Random supplies overwrite data; crypto/rand when nil
	Random io.Reader

	// OnPass is called after each pass has been written and synced
	OnPass func(path string, pass, total int)
}

// New returns a Shredder using crypto/rand
func New() *Shredder {
	return &Shredder{}
}

// SecureDelete overwrites path passes times with random data, syncing to
// stable storage after each pass, then unlinks it. Symlinks are refused.
// ctx is checked only before work starts; a started overwrite runs to completion.
func (s *Shredder) SecureDelete(ctx context.Context, path string, passes int) error {
	if passes < 1 {
		return ErrInvalidPasses
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrSizeUnavailable, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrSizeUnavailable, path)
	}
	size := info.Size()

	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return &OverwriteError{Path: path, Step: StepOpen, Err: err}
	}

	if err := s.overwrite(f, path, size, passes); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return &OverwriteError{Path: path, Step: StepClose, Err: err}
	}
	if err := os.Remove(path); err != nil {
		return &OverwriteError{Path: path, Step: StepUnlink, Err: err}
	}
	return nil
}

func (s *Shredder) overwrite(f *os.File, path string, size int64, passes int) error {
	random := s.Random
	if random == nil {
		random = rand.Reader
	}
	buf := make([]byte, BlockSize)

	for pass := 1; pass <= passes; pass++ {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return &OverwriteError{Path: path, Pass: pass, Step: StepSeek, Err: err}
		}

		for remaining := size; remaining > 0; {
			n := int64(BlockSize)
			if remaining < n {
				n = remaining
			}
			if _, err := io.ReadFull(random, buf[:n]); err != nil {
				return &OverwriteError{Path: path, Pass: pass, Step: StepRandom, Err: err}
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return &OverwriteError{Path: path, Pass: pass, Step: StepWrite, Err: err}
			}
			remaining -= n
		}

		if err := syncFile(f); err != nil {
			return &OverwriteError{Path: path, Pass: pass, Step: StepSync, Err: err}
		}

		if s.OnPass != nil {
			s.OnPass(path, pass, passes)
		}
	}
	return nil
}
