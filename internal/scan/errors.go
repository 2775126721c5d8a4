package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

var (
	// ErrScanUnavailable means the utility is missing or not permitted.
	ErrScanUnavailable = errors.New("scanner unavailable")
	// ErrScanTimeout means the call exceeded its time budget.
	ErrScanTimeout = errors.New("scanner timed out")
)

// Status labels reported per call.
const (
	StatusOK          = "ok"
	StatusTimeout     = "timeout"
	StatusUnavailable = "unavailable"
	StatusFailed      = "failed"
)

// Classify maps a scanner error onto a status label.
func Classify(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrScanTimeout), errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.Is(err, ErrScanUnavailable):
		return StatusUnavailable
	default:
		return StatusFailed
	}
}

func wrapExecError(ctx context.Context, command string, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", command, ErrScanTimeout)
	}
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %v", command, ErrScanUnavailable, err)
	}
	return fmt.Errorf("%s: %w", command, err)
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return true
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "operation not permitted") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "executable file not found")
}
