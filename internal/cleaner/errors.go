package cleaner

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/privileged"
	"github.com/fenilsonani/macsweep/internal/security"
)

// ErrorKind categorizes why a deletion failed
type ErrorKind int

const (
	ErrorOperationFailed ErrorKind = iota
	ErrorPathUnavailable
	ErrorNotFound
	ErrorPermissionDenied
	ErrorFileInUse
	ErrorInvalidPath
	ErrorWorkerNotInstalled
	ErrorTransportLost
	ErrorOverwriteFailed
)

// String returns a human-readable error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrorPathUnavailable:
		return "Path unavailable"
	case ErrorNotFound:
		return "File not found"
	case ErrorPermissionDenied:
		return "Permission denied"
	case ErrorFileInUse:
		return "File is in use"
	case ErrorInvalidPath:
		return "Invalid path"
	case ErrorWorkerNotInstalled:
		return "Helper not installed"
	case ErrorTransportLost:
		return "Helper connection lost"
	case ErrorOverwriteFailed:
		return "Overwrite failed"
	default:
		return "Operation failed"
	}
}

// CleanError is the typed failure that stops a clean run
type CleanError struct {
	Path      string
	Kind      ErrorKind
	Err       error
	Retryable bool
}

// Error implements the error interface
func (e *CleanError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Kind, e.Err)
}

func (e *CleanError) Unwrap() error {
	return e.Err
}

// UserMessage returns a user-friendly error message
func (e *CleanError) UserMessage() string {
	switch e.Kind {
	case ErrorPermissionDenied:
		return fmt.Sprintf("⚠️  Permission denied: %s (retry with --method privileged)", e.Path)
	case ErrorFileInUse:
		return fmt.Sprintf("⚠️  File is being used: %s (close the application and try again)", e.Path)
	case ErrorNotFound:
		return fmt.Sprintf("ℹ️  Already deleted: %s", e.Path)
	case ErrorPathUnavailable:
		return fmt.Sprintf("⚠️  Cannot read %s: it is not a regular file or its size is unknown", e.Path)
	case ErrorInvalidPath:
		return fmt.Sprintf("❌ Invalid or unsafe path: %s", e.Path)
	case ErrorWorkerNotInstalled:
		return "❌ The macsweep helper is not installed or not running (see 'macsweep helper status')"
	case ErrorTransportLost:
		return fmt.Sprintf("❌ Lost connection to the helper while deleting %s", e.Path)
	case ErrorOverwriteFailed:
		return fmt.Sprintf("❌ Secure overwrite failed, file left in place: %s (%v)", e.Path, e.Err)
	default:
		return fmt.Sprintf("❌ Error deleting %s: %v", e.Path, e.Err)
	}
}

// CategorizeError analyzes an error and returns a categorized CleanError
func CategorizeError(path string, err error) *CleanError {
	if err == nil {
		return nil
	}

	var cleanErr *CleanError
	if errors.As(err, &cleanErr) {
		return cleanErr
	}

	ce := &CleanError{Path: path, Err: err, Kind: ErrorOperationFailed}

	// Helper failures carry their kind over the wire
	switch privileged.KindOf(err) {
	case privileged.KindNotFound:
		ce.Kind = ErrorNotFound
		return ce
	case privileged.KindInvalidArgument:
		ce.Kind = ErrorInvalidPath
		return ce
	case privileged.KindPathUnavailable:
		ce.Kind = ErrorPathUnavailable
		return ce
	case privileged.KindPermissionDenied:
		ce.Kind = ErrorPermissionDenied
		return ce
	case privileged.KindWorkerNotInstalled:
		ce.Kind = ErrorWorkerNotInstalled
		return ce
	case privileged.KindTransportLost:
		ce.Kind = ErrorTransportLost
		return ce
	case privileged.KindOverwriteFailed:
		ce.Kind = ErrorOverwriteFailed
		return ce
	case privileged.KindOperationFailed:
		return ce
	}

	var owErr *erase.OverwriteError
	switch {
	case errors.Is(err, security.ErrInvalidPath), errors.Is(err, security.ErrProtectedPath):
		ce.Kind = ErrorInvalidPath
		return ce
	case errors.As(err, &owErr):
		ce.Kind = ErrorOverwriteFailed
		return ce
	case errors.Is(err, erase.ErrSizeUnavailable):
		ce.Kind = ErrorPathUnavailable
		return ce
	case errors.Is(err, erase.ErrNotFound):
		ce.Kind = ErrorNotFound
		return ce
	}

	// Check syscall errors
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM, syscall.EROFS:
			ce.Kind = ErrorPermissionDenied
		case syscall.EBUSY, syscall.ETXTBSY:
			ce.Kind = ErrorFileInUse
			ce.Retryable = true
		case syscall.ENOENT:
			ce.Kind = ErrorNotFound
		case syscall.ENOTDIR, syscall.ELOOP, syscall.ENAMETOOLONG:
			ce.Kind = ErrorPathUnavailable
		}
		return ce
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		ce.Kind = ErrorNotFound
	case errors.Is(err, os.ErrPermission):
		ce.Kind = ErrorPermissionDenied
	}
	return ce
}

// GroupErrors groups clean errors by kind
func GroupErrors(errs []*CleanError) map[ErrorKind][]*CleanError {
	grouped := make(map[ErrorKind][]*CleanError)
	for _, err := range errs {
		grouped[err.Kind] = append(grouped[err.Kind], err)
	}
	return grouped
}

// FormatErrorSummary creates a user-friendly summary of errors
func FormatErrorSummary(errs []*CleanError) string {
	if len(errs) == 0 {
		return ""
	}

	grouped := GroupErrors(errs)
	var b strings.Builder
	b.WriteString("\n⚠️  Issues encountered:\n")

	if perms, ok := grouped[ErrorPermissionDenied]; ok {
		fmt.Fprintf(&b, "   ├─ Permission denied: %d files\n", len(perms))
		b.WriteString("   │  └─ Tip: Install the helper and use --method privileged\n")
	}

	if busy, ok := grouped[ErrorFileInUse]; ok {
		fmt.Fprintf(&b, "   ├─ File in use: %d files\n", len(busy))
		b.WriteString("   │  └─ Tip: Close applications and retry\n")
	}

	if notFound, ok := grouped[ErrorNotFound]; ok {
		fmt.Fprintf(&b, "   ├─ Already deleted: %d files\n", len(notFound))
	}

	helper := len(grouped[ErrorWorkerNotInstalled]) + len(grouped[ErrorTransportLost])
	if helper > 0 {
		fmt.Fprintf(&b, "   ├─ Helper unavailable: %d files\n", helper)
		b.WriteString("   │  └─ Tip: Run 'macsweep helper status'\n")
	}

	if ow, ok := grouped[ErrorOverwriteFailed]; ok {
		fmt.Fprintf(&b, "   ├─ Overwrite failed: %d files (left in place)\n", len(ow))
	}

	other := len(grouped[ErrorOperationFailed]) + len(grouped[ErrorInvalidPath]) + len(grouped[ErrorPathUnavailable])
	if other > 0 {
		fmt.Fprintf(&b, "   └─ Other errors: %d files\n", other)
	}

	return b.String()
}
