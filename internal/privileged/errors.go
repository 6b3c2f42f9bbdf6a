package privileged

import (
	"errors"
	"fmt"
	"os"

	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/security"
)

// Kind classifies a failed helper call
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidArgument    Kind = "invalid_argument"
	KindPathUnavailable    Kind = "path_unavailable"
	KindPermissionDenied   Kind = "permission_denied"
	KindWorkerNotInstalled Kind = "worker_not_installed"
	KindTransportLost      Kind = "transport_lost"
	KindOverwriteFailed    Kind = "overwrite_failed"
	KindOperationFailed    Kind = "operation_failed"
)

// Error is a typed failure from the helper or the channel to it.
// errors.Is matches any *Error of the same Kind, so the sentinels below can
// be used as targets.
type Error struct {
	Kind    Kind
	Op      Op
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}

	switch {
	case e.Op != "" && e.Path != "":
		return fmt.Sprintf("helper %s %s: %s", e.Op, e.Path, msg)
	case e.Op != "":
		return fmt.Sprintf("helper %s: %s", e.Op, msg)
	default:
		return "helper: " + msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrPathUnavailable    = &Error{Kind: KindPathUnavailable}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrWorkerNotInstalled = &Error{Kind: KindWorkerNotInstalled}
	ErrTransportLost      = &Error{Kind: KindTransportLost}
	ErrOverwriteFailed    = &Error{Kind: KindOverwriteFailed}
	ErrOperationFailed    = &Error{Kind: KindOperationFailed}
)

// KindOf returns the Kind of err, or "" if it is not a helper error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// kindFor maps a local failure inside the helper to the kind sent on the wire
func kindFor(err error) Kind {
	var owErr *erase.OverwriteError
	switch {
	case errors.Is(err, erase.ErrInvalidPasses),
		errors.Is(err, security.ErrInvalidPath),
		errors.Is(err, security.ErrProtectedPath):
		return KindInvalidArgument
	case errors.Is(err, erase.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return KindNotFound
	case errors.Is(err, erase.ErrSizeUnavailable):
		return KindPathUnavailable
	case errors.As(err, &owErr):
		return KindOverwriteFailed
	case errors.Is(err, os.ErrPermission):
		return KindPermissionDenied
	default:
		return KindOperationFailed
	}
}

// errorResponse builds the wire response for a failed request
func errorResponse(id uint64, err error) Response {
	kind := KindOf(err)
	if kind == "" {
		kind = kindFor(err)
	}
	return Response{ID: id, Kind: kind, Message: err.Error()}
}

// responseError turns a failed response back into an *Error on the client side
func responseError(req Request, resp Response) error {
	kind := resp.Kind
	if kind == "" {
		kind = KindOperationFailed
	}
	return &Error{Kind: kind, Op: req.Op, Path: req.Path, Message: resp.Message}
}
