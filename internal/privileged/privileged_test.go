package privileged

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/logging"
	"github.com/fenilsonani/macsweep/internal/security"
	"github.com/fenilsonani/macsweep/internal/testutil"
)

// fakeRunner records external commands instead of running them
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  error
	out   string
}

func (r *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return []byte(r.out), r.fail
}

func (r *fakeRunner) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

type countingListener struct {
	net.Listener
	accepts atomic.Int32
}

func (l *countingListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err == nil {
		l.accepts.Add(1)
	}
	return c, err
}

// startServer serves svc on a fresh socket and returns the listener for inspection.
// Without options only the current user is allowed.
func startServer(t *testing.T, sock string, svc *Service, opts ...ServerOption) (*Server, *countingListener) {
	t.Helper()
	if len(opts) == 0 {
		opts = []ServerOption{WithAllowedUIDs(os.Getuid())}
	}

	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cl := &countingListener{Listener: l}
	srv := NewServer(sock, svc, opts...)
	go srv.Serve(cl)
	t.Cleanup(func() { srv.Close() })
	return srv, cl
}

func newTestService(runner *fakeRunner) *Service {
	return NewService("1.2.3", WithCommandRunner(runner.run))
}

// =============================================================================
// Framing Tests
// =============================================================================

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{ID: 7, Op: OpSecureDelete, Path: "/tmp/x", Passes: 3}
	if err := WriteFrame(&buf, req); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	if n := binary.BigEndian.Uint32(buf.Bytes()[:4]); int(n) != buf.Len()-4 {
		t.Errorf("length prefix = %d, body = %d bytes", n, buf.Len()-4)
	}

	var got Request
	if err := ReadFrame(&buf, &got); err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if got.ID != req.ID || got.Op != req.Op || got.Path != req.Path || got.Passes != req.Passes {
		t.Errorf("got %+v, want %+v", got, req)
	}
}

func TestFrameLimits(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)
	var v Request
	if err := ReadFrame(bytes.NewReader(header[:]), &v); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("oversized read error = %v, want ErrFrameTooLarge", err)
	}

	huge := Request{Path: strings.Repeat("a", MaxFrameSize)}
	if err := WriteFrame(&bytes.Buffer{}, huge); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("oversized write error = %v, want ErrFrameTooLarge", err)
	}

	binary.BigEndian.PutUint32(header[:], 10)
	truncated := append(header[:], []byte(`{"id"`)...)
	if err := ReadFrame(bytes.NewReader(truncated), &v); err == nil {
		t.Error("truncated frame decoded without error")
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestKindFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid passes", erase.ErrInvalidPasses, KindInvalidArgument},
		{"protected path", &security.ValidationError{Path: "/etc", Err: security.ErrProtectedPath}, KindInvalidArgument},
		{"erase not found", fmt.Errorf("%w: /x", erase.ErrNotFound), KindNotFound},
		{"os not exist", &os.PathError{Op: "lstat", Path: "/x", Err: os.ErrNotExist}, KindNotFound},
		{"size unavailable", erase.ErrSizeUnavailable, KindPathUnavailable},
		{"overwrite", &erase.OverwriteError{Path: "/x", Pass: 2, Step: erase.StepWrite, Err: errors.New("io")}, KindOverwriteFailed},
		{"permission", &os.PathError{Op: "unlink", Path: "/x", Err: os.ErrPermission}, KindPermissionDenied},
		{"other", errors.New("boom"), KindOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kindFor(tt.err); got != tt.want {
				t.Errorf("kindFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindNotFound, Op: OpDeleteFile, Path: "/x", Message: "gone"})
	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = false")
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Error("errors.Is(err, ErrPermissionDenied) = true")
	}
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf(plain error) should be empty")
	}
}

// =============================================================================
// Client/Server Tests
// =============================================================================

func TestGetVersion(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	startServer(t, sock, newTestService(&fakeRunner{}))

	c := NewClient(sock)
	defer c.Close()

	v, err := c.GetVersion(context.Background())
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if v != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", v)
	}
}

func TestDeleteFile(t *testing.T) {
	f := testutil.NewFixture(t)
	sock := testutil.ShortSocketPath(t)
	startServer(t, sock, newTestService(&fakeRunner{}))
	c := NewClient(sock)
	defer c.Close()
	ctx := context.Background()

	file := f.CreateCacheFile("a.db", 100)
	if err := c.DeleteFile(ctx, file); err != nil {
		t.Fatalf("DeleteFile(file) error = %v", err)
	}
	f.AssertFileNotExists(file)

	dir := f.CreateDir("home/Library/Caches/com.app")
	f.CreateCacheFile("com.app/nested/b.db", 10)
	if err := c.DeleteFile(ctx, dir); err != nil {
		t.Fatalf("DeleteFile(dir) error = %v", err)
	}
	f.AssertFileNotExists(dir)

	err := c.DeleteFile(ctx, file)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteFile(missing) error = %v, want ErrNotFound", err)
	}

	err = c.DeleteFile(ctx, "/etc")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("DeleteFile(/etc) error = %v, want ErrInvalidArgument", err)
	}

	err = c.DeleteFile(ctx, "relative/path")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("DeleteFile(relative) error = %v, want ErrInvalidArgument", err)
	}
}

func TestSecureDelete(t *testing.T) {
	f := testutil.NewFixture(t)
	sock := testutil.ShortSocketPath(t)

	var passes atomic.Int32
	sh := &erase.Shredder{OnPass: func(string, int, int) { passes.Add(1) }}
	startServer(t, sock, NewService("test", WithShredder(sh)))

	c := NewClient(sock)
	defer c.Close()

	path := f.CreateRandomFile("secret.bin", 10000)
	if err := c.SecureDelete(context.Background(), path, 3); err != nil {
		t.Fatalf("SecureDelete() error = %v", err)
	}
	f.AssertFileNotExists(path)
	if passes.Load() != 3 {
		t.Errorf("passes run = %d, want 3", passes.Load())
	}

	other := f.CreateFile("other.bin", []byte("x"))
	if err := c.SecureDelete(context.Background(), other, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SecureDelete(passes=0) error = %v, want ErrInvalidArgument", err)
	}
	f.AssertFileExists(other)

	dir := f.CreateDir("dir")
	if err := c.SecureDelete(context.Background(), dir, 1); !errors.Is(err, ErrPathUnavailable) {
		t.Errorf("SecureDelete(dir) error = %v, want ErrPathUnavailable", err)
	}
}

func TestRepairPermissionsUsesPeerUID(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	runner := &fakeRunner{}
	startServer(t, sock, newTestService(runner))

	c := NewClient(sock)
	defer c.Close()

	if err := c.RepairPermissions(context.Background()); err != nil {
		t.Fatalf("RepairPermissions() error = %v", err)
	}

	calls := runner.snapshot()
	if len(calls) != 1 {
		t.Fatalf("commands run = %v, want 1", calls)
	}
	want := append(append([]string{}, DefaultRepairCommand...), strconv.Itoa(os.Getuid()))
	if strings.Join(calls[0], " ") != strings.Join(want, " ") {
		t.Errorf("command = %v, want %v", calls[0], want)
	}
}

func TestRunMaintenance(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	runner := &fakeRunner{}
	startServer(t, sock, newTestService(runner))

	c := NewClient(sock)
	defer c.Close()
	ctx := context.Background()

	if err := c.RunMaintenance(ctx, nil); err != nil {
		t.Fatalf("RunMaintenance() error = %v", err)
	}
	calls := runner.snapshot()
	if len(calls) != 3 {
		t.Fatalf("commands run = %v, want 3", calls)
	}
	for i, script := range DefaultMaintenanceScripts {
		if calls[i][0] != DefaultMaintenanceCommand || calls[i][1] != script {
			t.Errorf("call %d = %v, want %s %s", i, calls[i], DefaultMaintenanceCommand, script)
		}
	}

	if err := c.RunMaintenance(ctx, []string{"hourly"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("RunMaintenance(hourly) error = %v, want ErrInvalidArgument", err)
	}

	runner.mu.Lock()
	runner.fail = errors.New("exit status 1")
	runner.out = "periodic: not permitted"
	runner.mu.Unlock()

	err := c.RunMaintenance(ctx, []string{"daily"})
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("RunMaintenance(failing) error = %v, want ErrOperationFailed", err)
	}
	if !strings.Contains(err.Error(), "not permitted") {
		t.Errorf("error %q should include command output", err)
	}
}

func TestDisallowedUID(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	startServer(t, sock, newTestService(&fakeRunner{}), WithAllowedUIDs(os.Getuid()+1))

	c := NewClient(sock)
	defer c.Close()

	if _, err := c.GetVersion(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("GetVersion() error = %v, want ErrPermissionDenied", err)
	}
}

func TestEmptyAllowListRejectsEveryone(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	startServer(t, sock, newTestService(&fakeRunner{}), WithServerLogger(logging.Nop()))

	c := NewClient(sock)
	defer c.Close()

	if _, err := c.GetVersion(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("GetVersion() error = %v, want ErrPermissionDenied", err)
	}
}

func TestAllowAllUIDs(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	startServer(t, sock, newTestService(&fakeRunner{}), WithAllowAllUIDs())

	c := NewClient(sock)
	defer c.Close()

	v, err := c.GetVersion(context.Background())
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if v != "1.2.3" {
		t.Errorf("GetVersion() = %q, want 1.2.3", v)
	}
}

func TestWorkerNotInstalled(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "missing.sock")
	c := NewClient(sock, WithDialTimeout(200*time.Millisecond))

	start := time.Now()
	_, err := c.GetVersion(context.Background())
	if !errors.Is(err, ErrWorkerNotInstalled) {
		t.Fatalf("error = %v, want ErrWorkerNotInstalled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("missing helper took %v to report", elapsed)
	}
	if c.Installed() {
		t.Error("Installed() = true for missing socket")
	}
}

func TestConcurrentCallsShareOneConnection(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	_, l := startServer(t, sock, newTestService(&fakeRunner{}))

	c := NewClient(sock)
	defer c.Close()

	const callers = 50
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetVersion(context.Background())
			if err == nil && v != "1.2.3" {
				err = fmt.Errorf("version %q", v)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("GetVersion() error = %v", err)
		}
	}
	if n := l.accepts.Load(); n != 1 {
		t.Errorf("server accepted %d connections, want 1", n)
	}
	if !c.Installed() {
		t.Error("Installed() = false with socket present")
	}
}

func TestReconnectAfterInvalidate(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	_, l := startServer(t, sock, newTestService(&fakeRunner{}))

	c := NewClient(sock)
	defer c.Close()
	ctx := context.Background()

	if _, err := c.GetVersion(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}
	c.Invalidate()
	if _, err := c.GetVersion(ctx); err != nil {
		t.Fatalf("call after Invalidate: %v", err)
	}
	if n := l.accepts.Load(); n != 2 {
		t.Errorf("server accepted %d connections, want 2", n)
	}
}

func TestReconnectAfterHelperRestart(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	srv, _ := startServer(t, sock, newTestService(&fakeRunner{}))

	c := NewClient(sock)
	defer c.Close()
	ctx := context.Background()

	if _, err := c.GetVersion(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}

	srv.Close()
	if _, err := c.GetVersion(ctx); !errors.Is(err, ErrWorkerNotInstalled) {
		t.Errorf("call while helper down error = %v, want ErrWorkerNotInstalled", err)
	}

	startServer(t, sock, newTestService(&fakeRunner{}))
	if _, err := c.GetVersion(ctx); err != nil {
		t.Fatalf("call after restart: %v", err)
	}
}

func TestListenAndServeReplacesStaleSocket(t *testing.T) {
	sock := testutil.ShortSocketPath(t)

	stale, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	stale.Close()

	srv := NewServer(sock, newTestService(&fakeRunner{}), WithAllowedUIDs(os.Getuid()))
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()

	c := NewClient(sock)
	defer c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := c.GetVersion(context.Background())
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("helper never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	srv.Close()
	if err := <-done; !errors.Is(err, ErrServerClosed) {
		t.Errorf("ListenAndServe() = %v, want ErrServerClosed", err)
	}
}

// =============================================================================
// Transport Loss Tests
// =============================================================================

// scriptedHelper accepts one connection per handler, in order
func scriptedHelper(t *testing.T, sock string, handlers ...func(net.Conn)) {
	t.Helper()

	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		for _, h := range handlers {
			nc, err := l.Accept()
			if err != nil {
				return
			}
			h(nc)
		}
	}()
}

func TestRetryTreatsNotFoundAsDone(t *testing.T) {
	f := testutil.NewFixture(t)
	path := f.CreateCacheFile("a.db", 10)
	sock := testutil.ShortSocketPath(t)

	scriptedHelper(t, sock,
		// performs the delete, then drops the connection before replying
		func(nc net.Conn) {
			var req Request
			if err := ReadFrame(nc, &req); err == nil {
				os.Remove(req.Path)
			}
			nc.Close()
		},
		func(nc net.Conn) {
			defer nc.Close()
			var req Request
			if err := ReadFrame(nc, &req); err != nil {
				return
			}
			WriteFrame(nc, Response{ID: req.ID, Kind: KindNotFound, Message: "no such file"})
		},
	)

	c := NewClient(sock)
	defer c.Close()

	if err := c.DeleteFile(context.Background(), path); err != nil {
		t.Fatalf("DeleteFile() error = %v, want nil", err)
	}
	f.AssertFileNotExists(path)
}

func TestTransportLostTwice(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	drop := func(nc net.Conn) {
		var req Request
		ReadFrame(nc, &req)
		nc.Close()
	}
	scriptedHelper(t, sock, drop, drop)

	c := NewClient(sock)
	defer c.Close()

	_, err := c.GetVersion(context.Background())
	if !errors.Is(err, ErrTransportLost) {
		t.Errorf("error = %v, want ErrTransportLost", err)
	}
}

func TestCallHonoursContext(t *testing.T) {
	sock := testutil.ShortSocketPath(t)
	// reads the request and never answers; the second read ends when the client closes
	scriptedHelper(t, sock, func(nc net.Conn) {
		defer nc.Close()
		var req Request
		ReadFrame(nc, &req)
		ReadFrame(nc, &req)
	})

	c := NewClient(sock)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := c.GetVersion(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}
