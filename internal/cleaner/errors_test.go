package cleaner

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/fenilsonani/macsweep/internal/erase"
	"github.com/fenilsonani/macsweep/internal/privileged"
	"github.com/fenilsonani/macsweep/internal/security"
)

// =============================================================================
// Error Categorization Tests
// =============================================================================

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      ErrorKind
		wantRetryable bool
	}{
		// Standard errors
		{"os.ErrNotExist", os.ErrNotExist, ErrorNotFound, false},
		{"os.ErrPermission", os.ErrPermission, ErrorPermissionDenied, false},
		{"path error", &os.PathError{Op: "rename", Path: "/x", Err: syscall.EACCES}, ErrorPermissionDenied, false},

		// Syscall errors
		{"EPERM", syscall.EPERM, ErrorPermissionDenied, false},
		{"EROFS", syscall.EROFS, ErrorPermissionDenied, false},
		{"EBUSY", syscall.EBUSY, ErrorFileInUse, true},
		{"ETXTBSY", syscall.ETXTBSY, ErrorFileInUse, true},
		{"ENOENT", syscall.ENOENT, ErrorNotFound, false},
		{"ENOTDIR", syscall.ENOTDIR, ErrorPathUnavailable, false},

		// Helper errors
		{"helper not installed", &privileged.Error{Kind: privileged.KindWorkerNotInstalled}, ErrorWorkerNotInstalled, false},
		{"helper transport", &privileged.Error{Kind: privileged.KindTransportLost}, ErrorTransportLost, false},
		{"helper overwrite", &privileged.Error{Kind: privileged.KindOverwriteFailed}, ErrorOverwriteFailed, false},
		{"helper not found", &privileged.Error{Kind: privileged.KindNotFound}, ErrorNotFound, false},
		{"helper invalid", &privileged.Error{Kind: privileged.KindInvalidArgument}, ErrorInvalidPath, false},
		{"helper denied", &privileged.Error{Kind: privileged.KindPermissionDenied}, ErrorPermissionDenied, false},
		{"helper generic", &privileged.Error{Kind: privileged.KindOperationFailed, Err: syscall.EBUSY}, ErrorOperationFailed, false},

		// Local validation and erase errors
		{"protected path", &security.ValidationError{Path: "/etc", Err: security.ErrProtectedPath}, ErrorInvalidPath, false},
		{"overwrite", &erase.OverwriteError{Path: "/x", Pass: 1, Step: erase.StepSync, Err: syscall.EIO}, ErrorOverwriteFailed, false},
		{"size unavailable", erase.ErrSizeUnavailable, ErrorPathUnavailable, false},

		// Unknown errors
		{"generic error", errors.New("something went wrong"), ErrorOperationFailed, false},
		{"wrapped error", fmt.Errorf("wrapped: %w", errors.New("inner")), ErrorOperationFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError("/test/path", tt.err)
			if result == nil {
				t.Fatal("unexpected nil result")
			}
			if result.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", result.Kind, tt.wantKind)
			}
			if result.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", result.Retryable, tt.wantRetryable)
			}
			if result.Path != "/test/path" {
				t.Errorf("Path = %q, want /test/path", result.Path)
			}
			if !errors.Is(result, tt.err) {
				t.Error("CleanError does not unwrap to the original error")
			}
		})
	}

	if CategorizeError("/x", nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestCategorizeErrorKeepsCleanError(t *testing.T) {
	orig := &CleanError{Path: "/a", Kind: ErrorFileInUse, Retryable: true}
	if got := CategorizeError("/b", fmt.Errorf("ctx: %w", orig)); got != orig {
		t.Errorf("CategorizeError rewrapped an existing CleanError: %+v", got)
	}
}

func TestErrorKindString(t *testing.T) {
	kinds := []ErrorKind{
		ErrorOperationFailed, ErrorPathUnavailable, ErrorNotFound, ErrorPermissionDenied,
		ErrorFileInUse, ErrorInvalidPath, ErrorWorkerNotInstalled, ErrorTransportLost, ErrorOverwriteFailed,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "" || seen[s] {
			t.Errorf("ErrorKind(%d).String() = %q is empty or duplicated", k, s)
		}
		seen[s] = true
	}
}

func TestCleanErrorUserMessage(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{ErrorPermissionDenied, "--method privileged"},
		{ErrorFileInUse, "close the application"},
		{ErrorNotFound, "Already deleted"},
		{ErrorWorkerNotInstalled, "helper status"},
		{ErrorOverwriteFailed, "left in place"},
		{ErrorOperationFailed, "Error deleting"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			e := &CleanError{Path: "/p", Kind: tt.kind, Err: errors.New("cause")}
			if msg := e.UserMessage(); !strings.Contains(msg, tt.want) {
				t.Errorf("UserMessage() = %q, want it to contain %q", msg, tt.want)
			}
		})
	}
}

func TestGroupErrors(t *testing.T) {
	errs := []*CleanError{
		{Path: "/a", Kind: ErrorPermissionDenied},
		{Path: "/b", Kind: ErrorPermissionDenied},
		{Path: "/c", Kind: ErrorFileInUse},
	}

	grouped := GroupErrors(errs)
	if len(grouped[ErrorPermissionDenied]) != 2 {
		t.Errorf("permission group = %d, want 2", len(grouped[ErrorPermissionDenied]))
	}
	if len(grouped[ErrorFileInUse]) != 1 {
		t.Errorf("in-use group = %d, want 1", len(grouped[ErrorFileInUse]))
	}
	if len(GroupErrors(nil)) != 0 {
		t.Error("GroupErrors(nil) should be empty")
	}
}

func TestFormatErrorSummary(t *testing.T) {
	if FormatErrorSummary(nil) != "" {
		t.Error("empty input should give empty summary")
	}

	summary := FormatErrorSummary([]*CleanError{
		{Path: "/a", Kind: ErrorPermissionDenied},
		{Path: "/b", Kind: ErrorWorkerNotInstalled},
		{Path: "/c", Kind: ErrorTransportLost},
		{Path: "/d", Kind: ErrorOperationFailed},
	})

	for _, want := range []string{
		"Permission denied: 1 files",
		"Helper unavailable: 2 files",
		"Other errors: 1 files",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
