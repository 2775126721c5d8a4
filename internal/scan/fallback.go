package scan

import (
	"context"
	"errors"
	"strings"
)

// FallbackScanner tries each scanner in order until one returns non-blank
// output. It stops early once the context is done.
type FallbackScanner struct {
	scanners []Scanner
}

// NewFallbackScanner chains scanners; the first one is the primary.
func NewFallbackScanner(scanners ...Scanner) *FallbackScanner {
	return &FallbackScanner{scanners: scanners}
}

// ListNetworks returns the first non-blank network list.
func (f *FallbackScanner) ListNetworks(ctx context.Context) (string, error) {
	return f.first(ctx, Scanner.ListNetworks)
}

// InterfaceStatus only falls back when the previous scanner is unavailable,
// since every chained scanner usually shares the same status command.
func (f *FallbackScanner) InterfaceStatus(ctx context.Context) (string, error) {
	var lastErr error
	for _, s := range f.scanners {
		out, err := s.InterfaceStatus(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, ErrScanUnavailable) || ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = ErrScanUnavailable
	}
	return "", lastErr
}

func (f *FallbackScanner) first(ctx context.Context, call func(Scanner, context.Context) (string, error)) (string, error) {
	var lastErr error
	for _, s := range f.scanners {
		out, err := call(s, ctx)
		if err == nil && strings.TrimSpace(out) != "" {
			return out, nil
		}
		if err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil && len(f.scanners) == 0 {
		lastErr = ErrScanUnavailable
	}
	return "", lastErr
}
