package privileged

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/logging"
	"github.com/fenilsonani/macsweep/internal/security"
)

// Default external commands run by the helper
var (
	DefaultRepairCommand      = []string{"/usr/sbin/diskutil", "resetUserPermissions", "/"}
	DefaultMaintenanceCommand = "/usr/sbin/periodic"
	DefaultMaintenanceScripts = []string{"daily", "weekly", "monthly"}
)

// Peer identifies the process on the other end of a connection
type Peer struct {
	// UID is -1 when the platform cannot report it
	UID int
}

// CommandRunner runs an external program and returns its combined output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Service executes helper requests
type Service struct {
	version            string
	validator          *security.PathValidator
	shredder           *erase.Shredder
	run                CommandRunner
	repairCommand      []string
	maintenanceCommand string
	logger             *logging.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithValidator replaces the path validator
func WithValidator(v *security.PathValidator) ServiceOption {
	return func(s *Service) { s.validator = v }
}

// WithShredder replaces the secure-erase implementation
func WithShredder(sh *erase.Shredder) ServiceOption {
	return func(s *Service) { s.shredder = sh }
}

// WithCommandRunner replaces how external commands are executed
func WithCommandRunner(run CommandRunner) ServiceOption {
	return func(s *Service) { s.run = run }
}

// WithRepairCommand sets the permission repair command; the caller's uid is appended
func WithRepairCommand(argv []string) ServiceOption {
	return func(s *Service) {
		if len(argv) > 0 {
			s.repairCommand = argv
		}
	}
}

// WithMaintenanceCommand sets the program run once per maintenance script
func WithMaintenanceCommand(path string) ServiceOption {
	return func(s *Service) {
		if path != "" {
			s.maintenanceCommand = path
		}
	}
}

// WithServiceLogger sets the service logger
func WithServiceLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service reporting version
func NewService(version string, opts ...ServiceOption) *Service {
	s := &Service{
		version:            version,
		validator:          security.NewPathValidator(),
		shredder:           erase.New(),
		run:                execCommand,
		repairCommand:      DefaultRepairCommand,
		maintenanceCommand: DefaultMaintenanceCommand,
		logger:             logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle executes one request on behalf of peer
func (s *Service) Handle(ctx context.Context, peer Peer, req Request) Response {
	var (
		result string
		err    error
	)

	switch req.Op {
	case OpDeleteFile:
		err = s.deleteFile(req.Path)
	case OpSecureDelete:
		err = s.secureDelete(ctx, req.Path, req.Passes)
	case OpRepairPermissions:
		err = s.repairPermissions(ctx, peer)
	case OpGetVersion:
		result = s.version
	case OpRunMaintenance:
		err = s.runMaintenance(ctx, req.Scripts)
	default:
		err = &Error{Kind: KindInvalidArgument, Op: req.Op, Message: fmt.Sprintf("unknown operation %q", req.Op)}
	}

	if err != nil {
		s.logger.Warn("%s %s (uid %d) failed: %v", req.Op, req.Path, peer.UID, err)
		return errorResponse(req.ID, err)
	}
	if req.Op != OpGetVersion {
		s.logger.Info("%s %s (uid %d) done", req.Op, req.Path, peer.UID)
	}
	return Response{ID: req.ID, OK: true, Result: result}
}

func (s *Service) deleteFile(path string) error {
	if err := s.validator.ValidatePathForDeletion(path); err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

func (s *Service) secureDelete(ctx context.Context, path string, passes int) error {
	if err := s.validator.ValidatePathForDeletion(path); err != nil {
		return err
	}
	return s.shredder.SecureDelete(ctx, path, passes)
}

func (s *Service) repairPermissions(ctx context.Context, peer Peer) error {
	if peer.UID < 0 {
		return &Error{Kind: KindInvalidArgument, Op: OpRepairPermissions, Message: "caller uid unknown"}
	}

	argv := append(slices.Clone(s.repairCommand), strconv.Itoa(peer.UID))
	if out, err := s.run(ctx, argv[0], argv[1:]...); err != nil {
		return commandError(OpRepairPermissions, err, out)
	}
	return nil
}

func (s *Service) runMaintenance(ctx context.Context, scripts []string) error {
	if len(scripts) == 0 {
		scripts = DefaultMaintenanceScripts
	}
	for _, script := range scripts {
		if !slices.Contains(DefaultMaintenanceScripts, script) {
			return &Error{Kind: KindInvalidArgument, Op: OpRunMaintenance, Message: fmt.Sprintf("unknown maintenance script %q", script)}
		}
	}

	for _, script := range scripts {
		if out, err := s.run(ctx, s.maintenanceCommand, script); err != nil {
			return commandError(OpRunMaintenance, fmt.Errorf("%s: %w", script, err), out)
		}
	}
	return nil
}

func commandError(op Op, err error, output []byte) error {
	msg := err.Error()
	if trimmed := strings.TrimSpace(string(output)); trimmed != "" {
		msg += ": " + trimmed
	}
	kind := KindOperationFailed
	if errors.Is(err, os.ErrPermission) {
		kind = KindPermissionDenied
	}
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}
