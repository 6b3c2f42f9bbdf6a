package privileged

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fenilsonani/macsweep/internal/logging"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultDialTimeout bounds connection establishment so a missing helper
	// never hangs a caller
	DefaultDialTimeout = 2 * time.Second

	dialAttempts = 3
	dialBackoff  = 50 * time.Millisecond
)

// errConnClosed marks a call that lost its connection
var errConnClosed = errors.New("connection closed")

// Client talks to the helper over one lazily established, shared connection.
// It is safe for concurrent use.
type Client struct {
	socketPath   string
	helperBinary string
	dialTimeout  time.Duration
	logger       *logging.Logger

	dials  singleflight.Group
	mu     sync.Mutex
	conn   *clientConn
	nextID atomic.Uint64
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithDialTimeout sets the per-attempt connection timeout
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithClientLogger sets the client logger
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithHelperBinary sets the helper executable checked by Installed
func WithHelperBinary(path string) ClientOption {
	return func(c *Client) { c.helperBinary = path }
}

// NewClient returns a client for the helper listening on socketPath.
// No connection is made until the first call.
func NewClient(socketPath string, opts ...ClientOption) *Client {
	c := &Client{
		socketPath:  socketPath,
		dialTimeout: DefaultDialTimeout,
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SocketPath returns the helper socket the client dials
func (c *Client) SocketPath() string {
	return c.socketPath
}

// Installed reports whether the helper binary (when configured) and its socket exist
func (c *Client) Installed() bool {
	if c.helperBinary != "" {
		if _, err := os.Stat(c.helperBinary); err != nil {
			return false
		}
	}
	info, err := os.Stat(c.socketPath)
	return err == nil && info.Mode()&os.ModeSocket != 0
}

// DeleteFile removes path with the helper's privileges.
// Directories are removed recursively.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	_, err := c.call(ctx, Request{Op: OpDeleteFile, Path: path})
	return err
}

// SecureDelete overwrites path passes times and unlinks it
func (c *Client) SecureDelete(ctx context.Context, path string, passes int) error {
	if passes < 1 {
		return &Error{Kind: KindInvalidArgument, Op: OpSecureDelete, Path: path, Message: "passes must be at least 1"}
	}
	_, err := c.call(ctx, Request{Op: OpSecureDelete, Path: path, Passes: passes})
	return err
}

// RepairPermissions resets home directory permissions for the calling user
func (c *Client) RepairPermissions(ctx context.Context) error {
	_, err := c.call(ctx, Request{Op: OpRepairPermissions})
	return err
}

// GetVersion returns the helper build version
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	return c.call(ctx, Request{Op: OpGetVersion})
}

// RunMaintenance runs the periodic maintenance scripts. An empty list runs
// daily, weekly and monthly.
func (c *Client) RunMaintenance(ctx context.Context, scripts []string) error {
	_, err := c.call(ctx, Request{Op: OpRunMaintenance, Scripts: scripts})
	return err
}

// Invalidate drops the current connection; the next call reconnects.
// Calls in flight on it fail with a transport error and retry once.
func (c *Client) Invalidate() {
	c.mu.Lock()
	cn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if cn != nil {
		cn.close(errConnClosed)
	}
}

// Close releases the connection
func (c *Client) Close() error {
	c.Invalidate()
	return nil
}

// call sends req and waits for its response. If the connection is lost the
// call reconnects and retries once. A delete that reports NotFound on the
// retry after the first attempt reached the helper is treated as done: the
// first attempt most likely removed the file before the connection dropped.
func (c *Client) call(ctx context.Context, req Request) (string, error) {
	var sentBefore bool

	for attempt := 0; ; attempt++ {
		cn, err := c.connection(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", &Error{
				Kind:    KindWorkerNotInstalled,
				Op:      req.Op,
				Path:    req.Path,
				Message: fmt.Sprintf("helper not reachable at %s", c.socketPath),
				Err:     err,
			}
		}

		req.ID = c.nextID.Add(1)
		resp, sent, err := cn.roundTrip(ctx, req)
		if err == nil {
			if resp.OK {
				return resp.Result, nil
			}
			if attempt > 0 && sentBefore && resp.Kind == KindNotFound && isDelete(req.Op) {
				c.logger.Debug("%s %s: not found on retry, assuming first attempt succeeded", req.Op, req.Path)
				return "", nil
			}
			return "", responseError(req, resp)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		c.drop(cn)
		sentBefore = sentBefore || sent

		if attempt > 0 {
			return "", &Error{Kind: KindTransportLost, Op: req.Op, Path: req.Path, Err: err}
		}
		c.logger.Warn("helper connection lost during %s, reconnecting: %v", req.Op, err)
	}
}

func isDelete(op Op) bool {
	return op == OpDeleteFile || op == OpSecureDelete
}

// connection returns the memoized connection, dialing if there is none.
// Concurrent callers share a single dial.
func (c *Client) connection(ctx context.Context) (*clientConn, error) {
	if cn := c.current(); cn != nil {
		return cn, nil
	}

	ch := c.dials.DoChan("dial", func() (any, error) {
		if cn := c.current(); cn != nil {
			return cn, nil
		}

		// Shared by every waiter, so one caller's cancellation must not fail the rest
		nc, err := c.dial(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		cn := newClientConn(nc)
		c.mu.Lock()
		c.conn = cn
		c.mu.Unlock()
		c.logger.Debug("connected to helper at %s", c.socketPath)
		return cn, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*clientConn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) current() *clientConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.isClosed() {
		return c.conn
	}
	return nil
}

// drop clears the memo if it still holds cn
func (c *Client) drop(cn *clientConn) {
	c.mu.Lock()
	if c.conn == cn {
		c.conn = nil
	}
	c.mu.Unlock()
	cn.close(errConnClosed)
}

// dial connects to the socket, retrying briefly on transient errors.
// A missing socket or a refused connection means no helper is running and
// fails immediately.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.dialTimeout}

	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * dialBackoff)
		}

		nc, err := d.DialContext(ctx, "unix", c.socketPath)
		if err == nil {
			return nc, nil
		}
		lastErr = err

		if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
			break
		}
	}
	return nil, lastErr
}

// clientConn is one connection with its in-flight calls
type clientConn struct {
	nc      net.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan Response
	closed  bool
	err     error
}

func newClientConn(nc net.Conn) *clientConn {
	cn := &clientConn{
		nc:      nc,
		pending: make(map[uint64]chan Response),
	}
	go cn.readLoop()
	return cn
}

// roundTrip reports whether the request was fully written, so callers can
// tell a call that never reached the helper from one whose reply was lost
func (cn *clientConn) roundTrip(ctx context.Context, req Request) (Response, bool, error) {
	ch := make(chan Response, 1)

	cn.mu.Lock()
	if cn.closed {
		err := cn.err
		cn.mu.Unlock()
		return Response{}, false, err
	}
	cn.pending[req.ID] = ch
	cn.mu.Unlock()

	cn.writeMu.Lock()
	err := WriteFrame(cn.nc, req)
	cn.writeMu.Unlock()
	if err != nil {
		cn.close(err)
		return Response{}, false, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, true, cn.closeErr()
		}
		return resp, true, nil
	case <-ctx.Done():
		cn.forget(req.ID)
		return Response{}, true, ctx.Err()
	}
}

func (cn *clientConn) readLoop() {
	for {
		var resp Response
		if err := ReadFrame(cn.nc, &resp); err != nil {
			cn.close(err)
			return
		}

		cn.mu.Lock()
		ch, ok := cn.pending[resp.ID]
		delete(cn.pending, resp.ID)
		cn.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

// close fails every pending call and closes the socket; only the first error is kept
func (cn *clientConn) close(err error) {
	cn.mu.Lock()
	if cn.closed {
		cn.mu.Unlock()
		return
	}
	cn.closed = true
	cn.err = err
	pending := cn.pending
	cn.pending = nil
	cn.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	cn.nc.Close()
}

func (cn *clientConn) forget(id uint64) {
	cn.mu.Lock()
	delete(cn.pending, id)
	cn.mu.Unlock()
}

func (cn *clientConn) isClosed() bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.closed
}

func (cn *clientConn) closeErr() error {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.err == nil {
		return errConnClosed
	}
	return cn.err
}
