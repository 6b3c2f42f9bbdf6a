package erase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fenilsonani/macsweep/internal/testutil"
)

// fillReader yields a constant byte and records the size of every read
type fillReader struct {
	fill  byte
	reads []int
}

func (r *fillReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.fill
	}
	r.reads = append(r.reads, len(p))
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

// =============================================================================
// SecureDelete Tests
// =============================================================================

func TestSecureDeleteOverwritesEveryPass(t *testing.T) {
	f := testutil.NewFixture(t)
	const size = 2*BlockSize + 1808
	path := f.CreateRandomFile("secret.bin", size)

	random := &fillReader{fill: 0xAB}
	var passes []int
	s := &Shredder{
		Random: random,
		OnPass: func(p string, pass, total int) {
			passes = append(passes, pass)
			if total != 3 {
				t.Errorf("total = %d, want 3", total)
			}
			data, err := os.ReadFile(p)
			if err != nil {
				t.Fatalf("file gone before unlink: %v", err)
			}
			if len(data) != size {
				t.Errorf("pass %d: size changed to %d", pass, len(data))
			}
			if !bytes.Equal(data, bytes.Repeat([]byte{0xAB}, size)) {
				t.Errorf("pass %d: content not fully overwritten", pass)
			}
		},
	}

	if err := s.SecureDelete(context.Background(), path, 3); err != nil {
		t.Fatalf("SecureDelete() error = %v", err)
	}

	f.AssertFileNotExists(path)
	if len(passes) != 3 || passes[0] != 1 || passes[2] != 3 {
		t.Errorf("passes observed = %v, want [1 2 3]", passes)
	}

	// each pass: two full blocks then a truncated final block
	want := []int{BlockSize, BlockSize, 1808}
	if len(random.reads) != 9 {
		t.Fatalf("reads = %v, want 9 reads", random.reads)
	}
	for i, n := range random.reads {
		if n != want[i%3] {
			t.Errorf("read %d = %d bytes, want %d", i, n, want[i%3])
		}
	}
}

func TestSecureDeleteEmptyFile(t *testing.T) {
	f := testutil.NewFixture(t)
	path := f.CreateFile("empty", nil)

	random := &fillReader{}
	calls := 0
	s := &Shredder{Random: random, OnPass: func(string, int, int) { calls++ }}

	if err := s.SecureDelete(context.Background(), path, DefaultPasses); err != nil {
		t.Fatalf("SecureDelete() error = %v", err)
	}
	f.AssertFileNotExists(path)
	if len(random.reads) != 0 {
		t.Errorf("empty file consumed %d random reads", len(random.reads))
	}
	if calls != DefaultPasses {
		t.Errorf("OnPass called %d times, want %d", calls, DefaultPasses)
	}
}

func TestSecureDeleteRejections(t *testing.T) {
	f := testutil.NewFixture(t)
	dir := f.CreateDir("somedir")
	target := f.CreateFile("target.txt", []byte("keep me"))
	link := f.CreateSymlink(target, "link.txt")

	tests := []struct {
		name   string
		path   string
		passes int
		want   error
	}{
		{"zero passes", target, 0, ErrInvalidPasses},
		{"negative passes", target, -1, ErrInvalidPasses},
		{"missing file", filepath.Join(f.RootDir, "missing"), 1, ErrNotFound},
		{"directory", dir, 1, ErrSizeUnavailable},
		{"symlink", link, 1, ErrSizeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().SecureDelete(context.Background(), tt.path, tt.passes)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	f.AssertFileExists(target)
	f.AssertFileExists(link)
	data, _ := os.ReadFile(target)
	if string(data) != "keep me" {
		t.Errorf("symlink target modified: %q", data)
	}
}

func TestSecureDeleteRandomFailureLeavesFile(t *testing.T) {
	f := testutil.NewFixture(t)
	path := f.CreateFile("data.bin", []byte("original content"))

	s := &Shredder{Random: failingReader{}}
	err := s.SecureDelete(context.Background(), path, 3)

	var owErr *OverwriteError
	if !errors.As(err, &owErr) {
		t.Fatalf("error = %v, want *OverwriteError", err)
	}
	if owErr.Pass != 1 || owErr.Step != StepRandom {
		t.Errorf("failure at pass %d step %s, want pass 1 step random", owErr.Pass, owErr.Step)
	}
	f.AssertFileExists(path)
	f.AssertFileSize(path, int64(len("original content")))
}

func TestSecureDeleteReadOnlyFile(t *testing.T) {
	testutil.SkipIfRoot(t)

	f := testutil.NewFixture(t)
	path := f.CreateReadOnlyFile("locked.bin", []byte("locked"))

	err := New().SecureDelete(context.Background(), path, 1)

	var owErr *OverwriteError
	if !errors.As(err, &owErr) {
		t.Fatalf("error = %v, want *OverwriteError", err)
	}
	if owErr.Step != StepOpen || owErr.Pass != 0 {
		t.Errorf("failure at pass %d step %s, want open", owErr.Pass, owErr.Step)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("error %v should wrap a permission error", err)
	}
	f.AssertFileExists(path)
}

func TestSecureDeleteCancelledBeforeStart(t *testing.T) {
	f := testutil.NewFixture(t)
	path := f.CreateFile("data.bin", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New().SecureDelete(ctx, path, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	f.AssertFileExists(path)
}

func TestPresetPasses(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"quick", 3, false},
		{"dod", 7, false},
		{"", 7, false},
		{"gutmann", 35, false},
		{"extreme", 0, true},
	}

	for _, tt := range tests {
		got, err := PresetPasses(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("PresetPasses(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("PresetPasses(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
