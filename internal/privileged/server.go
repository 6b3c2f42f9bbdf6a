package privileged

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/fenilsonani/macsweep/internal/logging"
)

// ErrServerClosed is returned by Serve after Close
var ErrServerClosed = errors.New("privileged: server closed")

// Server accepts helper connections on a Unix socket and dispatches each
// request on its own goroutine
type Server struct {
	socketPath  string
	service     *Service
	allowedUIDs map[int]bool
	allowAll    bool
	socketMode  os.FileMode
	logger      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithAllowedUIDs lists the user IDs allowed to make requests. A server with
// no allowed IDs rejects every caller unless WithAllowAllUIDs is set.
func WithAllowedUIDs(uids ...int) ServerOption {
	return func(s *Server) {
		for _, uid := range uids {
			s.allowedUIDs[uid] = true
		}
	}
}

// WithAllowAllUIDs accepts requests from any local user
func WithAllowAllUIDs() ServerOption {
	return func(s *Server) { s.allowAll = true }
}

// WithSocketMode sets the permissions applied to the socket file
func WithSocketMode(mode os.FileMode) ServerOption {
	return func(s *Server) { s.socketMode = mode }
}

// WithServerLogger sets the server logger
func WithServerLogger(l *logging.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server for svc listening on socketPath
func NewServer(socketPath string, svc *Service, opts ...ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		socketPath:  socketPath,
		service:     svc,
		allowedUIDs: make(map[int]bool),
		socketMode:  0o666,
		logger:      logging.Nop(),
		ctx:         ctx,
		cancel:      cancel,
		conns:       make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe creates the socket, replacing a stale one, and serves until Close
func (s *Server) ListenAndServe() error {
	if info, err := os.Lstat(s.socketPath); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("%s exists and is not a socket", s.socketPath)
		}
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, s.socketMode); err != nil {
		l.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return s.Serve(l)
}

// Serve accepts connections on l until Close is called
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	s.logger.Info("helper listening on %s", l.Addr())

	for {
		nc, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.track(nc) {
			nc.Close()
			return ErrServerClosed
		}

		go func() {
			defer s.wg.Done()
			defer s.untrack(nc)
			s.handleConn(nc)
		}()
	}
}

// Close stops the listener, closes open connections, waits for in-flight
// requests and removes the socket file
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	l := s.listener
	for nc := range s.conns {
		nc.Close()
	}
	s.mu.Unlock()

	s.cancel()

	var err error
	if l != nil {
		err = l.Close()
	}
	s.wg.Wait()

	if s.socketPath != "" {
		os.Remove(s.socketPath)
	}
	return err
}

func (s *Server) handleConn(nc net.Conn) {
	peer := Peer{UID: -1}
	uid, err := peerUID(nc)
	if err != nil {
		s.logger.Warn("failed to read peer credentials: %v", err)
	} else {
		peer.UID = uid
	}
	allowed := s.allowed(peer)
	if !allowed {
		s.logger.Warn("rejecting requests from uid %d", peer.UID)
	}

	var writeMu sync.Mutex
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		var req Request
		if err := ReadFrame(nc, &req); err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				s.logger.Debug("connection from uid %d ended: %v", peer.UID, err)
			}
			return
		}

		inflight.Add(1)
		go func(req Request) {
			defer inflight.Done()

			var resp Response
			if allowed {
				resp = s.service.Handle(s.ctx, peer, req)
			} else {
				resp = Response{
					ID:      req.ID,
					Kind:    KindPermissionDenied,
					Message: fmt.Sprintf("uid %d is not allowed to use the helper", peer.UID),
				}
			}

			writeMu.Lock()
			defer writeMu.Unlock()
			if err := WriteFrame(nc, resp); err != nil {
				s.logger.Debug("failed to write %s response: %v", req.Op, err)
			}
		}(req)
	}
}

func (s *Server) allowed(p Peer) bool {
	if s.allowAll {
		return true
	}
	return p.UID >= 0 && s.allowedUIDs[p.UID]
}

// track registers nc and adds it to the wait group under the same lock
// Close takes, so Close never waits on a connection it did not close
func (s *Server) track(nc net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[nc] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(nc net.Conn) {
	s.mu.Lock()
	delete(s.conns, nc)
	s.mu.Unlock()
	nc.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
