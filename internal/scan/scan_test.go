package scan

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, StatusOK},
		{fmt.Errorf("netsh: %w", ErrScanTimeout), StatusTimeout},
		{context.DeadlineExceeded, StatusTimeout},
		{fmt.Errorf("netsh: %w", ErrScanUnavailable), StatusUnavailable},
		{errors.New("exit status 1"), StatusFailed},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDecoderAutoKeepsUTF8(t *testing.T) {
	d, err := NewDecoder("")
	if err != nil {
		t.Fatalf("NewDecoder error: %v", err)
	}
	out, err := d.Decode([]byte("Nom du réseau : Café\r\nSignal : 72%\r\n"))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if out != "Nom du réseau : Café\nSignal : 72%\n" {
		t.Fatalf("unexpected decoded text: %q", out)
	}
}

func TestDecoderAutoFallsBackToWindows1252(t *testing.T) {
	d, _ := NewDecoder("auto")
	// "réseau" with é encoded as the single byte 0xE9
	out, err := d.Decode([]byte{'r', 0xE9, 's', 'e', 'a', 'u'})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if out != "réseau" {
		t.Fatalf("expected réseau, got %q", out)
	}
}

func TestDecoderExplicitLabels(t *testing.T) {
	d, err := NewDecoder("cp1252")
	if err != nil {
		t.Fatalf("NewDecoder(cp1252) error: %v", err)
	}
	if d.Name() != "windows-1252" {
		t.Fatalf("expected canonical windows-1252, got %q", d.Name())
	}

	d, err = NewDecoder("ibm850")
	if err != nil {
		t.Fatalf("NewDecoder(ibm850) error: %v", err)
	}
	// 0x82 is é in code page 850
	out, _ := d.Decode([]byte{'r', 0x82, 's', 'e', 'a', 'u'})
	if out != "réseau" {
		t.Fatalf("expected réseau, got %q", out)
	}

	if _, err := NewDecoder("klingon-8"); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

type fakeScanner struct {
	list      string
	listErr   error
	status    string
	statusErr error
	calls     int
}

func (f *fakeScanner) ListNetworks(ctx context.Context) (string, error) {
	f.calls++
	return f.list, f.listErr
}

func (f *fakeScanner) InterfaceStatus(ctx context.Context) (string, error) {
	f.calls++
	return f.status, f.statusErr
}

func TestFallbackScannerSkipsBlankAndFailures(t *testing.T) {
	first := &fakeScanner{listErr: errors.New("exit status 1")}
	second := &fakeScanner{list: "   \n"}
	third := &fakeScanner{list: "SSID 1 : Home"}
	unused := &fakeScanner{list: "SSID 1 : Other"}

	out, err := NewFallbackScanner(first, second, third, unused).ListNetworks(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "SSID 1 : Home" {
		t.Fatalf("unexpected output %q", out)
	}
	if unused.calls != 0 {
		t.Fatalf("expected chain to stop at first usable output")
	}
}

func TestFallbackScannerReturnsLastError(t *testing.T) {
	first := &fakeScanner{listErr: fmt.Errorf("a: %w", ErrScanUnavailable)}
	second := &fakeScanner{listErr: fmt.Errorf("b: %w", ErrScanTimeout)}

	_, err := NewFallbackScanner(first, second).ListNetworks(context.Background())
	if !errors.Is(err, ErrScanTimeout) {
		t.Fatalf("expected last error, got %v", err)
	}

	if _, err := NewFallbackScanner().ListNetworks(context.Background()); !errors.Is(err, ErrScanUnavailable) {
		t.Fatalf("expected unavailable for empty chain, got %v", err)
	}
}

func TestFallbackScannerStatusOnlyFallsBackWhenUnavailable(t *testing.T) {
	failing := &fakeScanner{statusErr: errors.New("exit status 1")}
	next := &fakeScanner{status: "SSID : Office"}
	if _, err := NewFallbackScanner(failing, next).InterfaceStatus(context.Background()); err == nil {
		t.Fatalf("expected plain failure to be returned")
	}
	if next.calls != 0 {
		t.Fatalf("expected no fallback for plain failure")
	}

	missing := &fakeScanner{statusErr: fmt.Errorf("netsh: %w", ErrScanUnavailable)}
	out, err := NewFallbackScanner(missing, next).InterfaceStatus(context.Background())
	if err != nil || out != "SSID : Office" {
		t.Fatalf("expected fallback output, got %q (%v)", out, err)
	}
}

func TestNewExternalScannerRejectsEmptyCommands(t *testing.T) {
	if _, err := NewExternalScanner("", "netsh wlan show interfaces", nil); err == nil {
		t.Fatalf("expected error for empty list command")
	}
}

func TestExternalScannerRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses unix echo")
	}
	s, err := NewExternalScanner("echo SSID 1 : Home", "echo SSID : Home", nil)
	if err != nil {
		t.Fatalf("NewExternalScanner error: %v", err)
	}
	out, err := s.ListNetworks(context.Background())
	if err != nil {
		t.Fatalf("ListNetworks error: %v", err)
	}
	if strings.TrimSpace(out) != "SSID 1 : Home" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestExternalScannerMissingBinary(t *testing.T) {
	s, _ := NewExternalScanner("wifiwatch-no-such-binary list", "wifiwatch-no-such-binary status", nil)
	_, err := s.InterfaceStatus(context.Background())
	if !errors.Is(err, ErrScanUnavailable) {
		t.Fatalf("expected ErrScanUnavailable, got %v", err)
	}
}

func TestExternalScannerTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses unix sleep")
	}
	s, _ := NewExternalScanner("sleep 5", "sleep 5", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.ListNetworks(ctx)
	if !errors.Is(err, ErrScanTimeout) {
		t.Fatalf("expected ErrScanTimeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout was not enforced")
	}
}
