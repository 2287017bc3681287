package printer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "valid pdf header", data: []byte("%PDF-1.4\n..."), want: true},
		{name: "exactly the signature", data: []byte("%PDF"), want: true},
		{name: "empty", data: nil, want: false},
		{name: "single byte", data: []byte("x"), want: false},
		{name: "three bytes of signature", data: []byte("%PD"), want: false},
		{name: "postscript", data: []byte("%!PS-Adobe"), want: false},
		{name: "signature not at start", data: []byte(" %PDF-1.4"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := IsPDF(tc.data)
			if got != tc.want {
				t.Fatalf("IsPDF(%q) = %v, want %v", tc.data, got, tc.want)
			}
		})
	}
}

func TestBuildPrintSettings(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "all defaults", opts: Options{Scaling: "fit", Color: "color", Duplex: "simplex"}, want: ""},
		{name: "empty options", opts: Options{}, want: ""},
		{name: "everything non-default", opts: Options{Scaling: "noscale", Color: "monochrome", Duplex: "duplexlong"}, want: "noscale,monochrome,duplex"},
		{name: "shrink only", opts: Options{Scaling: "shrink", Color: "color", Duplex: "simplex"}, want: "shrink"},
		{name: "monochrome only", opts: Options{Scaling: "fit", Color: "monochrome", Duplex: "simplex"}, want: "monochrome"},
		{name: "short edge duplex", opts: Options{Scaling: "fit", Color: "color", Duplex: "duplexshort"}, want: "duplexshort"},
		{name: "shrink with long edge duplex", opts: Options{Scaling: "shrink", Color: "color", Duplex: "duplexlong"}, want: "shrink,duplex"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildPrintSettings(tc.opts)
			if got != tc.want {
				t.Fatalf("BuildPrintSettings(%+v) = %q, want %q", tc.opts, got, tc.want)
			}
		})
	}
}

type stubLocator struct {
	path string
	err  error
}

func (l *stubLocator) ResolvePath() (string, error) {
	return l.path, l.err
}

// fakeRenderer writes a shell script standing in for the renderer binary.
func fakeRenderer(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake renderer scripts require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "renderer.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newTestDispatcher(locator Locator) *Dispatcher {
	d := NewDispatcher(locator)
	d.CleanupDelay = 10 * time.Millisecond
	return d
}

func TestDispatchSuccess(t *testing.T) {
	d := newTestDispatcher(&stubLocator{path: fakeRenderer(t, "exit 0")})

	outcome, err := d.Dispatch(context.Background(), []byte("%PDF-1.4"), "Office Laser", Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomePrinted, outcome)
}

func TestDispatchRendererFailure(t *testing.T) {
	d := newTestDispatcher(&stubLocator{path: fakeRenderer(t, `echo "printer not found" >&2; exit 1`)})

	_, err := d.Dispatch(context.Background(), []byte("%PDF-1.4"), "Nonexistent Printer", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "printer not found")
}

func TestDispatchTimeoutRecovered(t *testing.T) {
	d := newTestDispatcher(&stubLocator{path: fakeRenderer(t, "sleep 5")})
	d.Timeout = 100 * time.Millisecond

	outcome, err := d.Dispatch(context.Background(), []byte("%PDF-1.4"), "Office Laser", Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeoutRecovered, outcome)
}

func TestDispatchLocatorFailure(t *testing.T) {
	d := newTestDispatcher(&stubLocator{err: errors.New("download failed")})

	_, err := d.Dispatch(context.Background(), []byte("%PDF-1.4"), "Office Laser", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer not available")
}

func TestDispatchLaunchFailure(t *testing.T) {
	d := newTestDispatcher(&stubLocator{path: filepath.Join(t.TempDir(), "missing-renderer")})

	_, err := d.Dispatch(context.Background(), []byte("%PDF-1.4"), "Office Laser", Options{})
	require.Error(t, err)
}

func TestDispatchPassesArguments(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	d := newTestDispatcher(&stubLocator{path: fakeRenderer(t, `echo "$@" > `+argsFile)})

	opts := Options{Scaling: "noscale", Color: "monochrome", Duplex: "duplexlong"}
	_, err := d.Dispatch(context.Background(), []byte("%PDF-1.4"), "Office Laser", opts)
	require.NoError(t, err)

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), "-print-to Office Laser")
	assert.Contains(t, string(recorded), "-print-settings noscale,monochrome,duplex")
	assert.Contains(t, string(recorded), "-silent")
}
