package printer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds a single renderer invocation. The renderer is
	// known to sometimes outlive the spool handoff, so hitting the bound is
	// not treated as a failure (see Dispatch).
	DefaultTimeout = 60 * time.Second

	// DefaultCleanupDelay is how long a scratch file survives after
	// dispatch before the detached cleanup removes it.
	DefaultCleanupDelay = 10 * time.Second
)

// Outcome distinguishes a clean renderer exit from a timeout that was
// recovered as success. Callers report both as a sent job.
type Outcome int

const (
	OutcomePrinted Outcome = iota
	OutcomeTimeoutRecovered
)

// Options are the per-job print settings taken from the configuration.
type Options struct {
	Scaling string // fit, shrink, noscale
	Color   string // color, monochrome
	Duplex  string // simplex, duplexlong, duplexshort
}

// Locator resolves the path of the external renderer executable. It may
// download the executable on first use.
type Locator interface {
	ResolvePath() (string, error)
}

// IsPDF reports whether data carries the PDF signature.
func IsPDF(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("%PDF"))
}

// BuildPrintSettings builds the renderer's -print-settings token from the
// given options. Defaults are omitted; an empty string means the flag
// should not be passed at all.
func BuildPrintSettings(opts Options) string {
	var settings []string

	switch opts.Scaling {
	case "noscale":
		settings = append(settings, "noscale")
	case "shrink":
		settings = append(settings, "shrink")
	}

	if opts.Color == "monochrome" {
		settings = append(settings, "monochrome")
	}

	switch opts.Duplex {
	case "duplexlong":
		settings = append(settings, "duplex")
	case "duplexshort":
		settings = append(settings, "duplexshort")
	}

	return strings.Join(settings, ",")
}

// Dispatcher hands print payloads to the external renderer.
type Dispatcher struct {
	Locator      Locator
	Timeout      time.Duration
	CleanupDelay time.Duration
}

func NewDispatcher(locator Locator) *Dispatcher {
	return &Dispatcher{
		Locator:      locator,
		Timeout:      DefaultTimeout,
		CleanupDelay: DefaultCleanupDelay,
	}
}

// Dispatch writes the payload to a scratch file and invokes the renderer
// against the given device. The scratch file is removed after
// CleanupDelay regardless of the outcome; removal failures are ignored
// since the file lives in the OS temp area.
func (d *Dispatcher) Dispatch(ctx context.Context, payload []byte, device string, opts Options) (Outcome, error) {
	exePath, err := d.Locator.ResolvePath()
	if err != nil {
		return 0, fmt.Errorf("renderer not available: %w", err)
	}

	scratchPath := filepath.Join(os.TempDir(), fmt.Sprintf("automaprint-%s.pdf", uuid.New().String()))
	if err := os.WriteFile(scratchPath, payload, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write scratch file: %w", err)
	}
	defer d.scheduleCleanup(scratchPath)

	args := []string{"-print-to", device}
	if settings := BuildPrintSettings(opts); settings != "" {
		args = append(args, "-print-settings", settings)
		log.Debug().Msgf("Print settings: %s", settings)
	}
	args = append(args, "-silent", scratchPath)

	runCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, exePath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		// The job has usually reached the spooler by the time the bound
		// fires; the renderer just never exited.
		log.Warn().Msgf("Renderer timed out after %s, treating job for %s as sent.", d.Timeout, device)
		return OutcomeTimeoutRecovered, nil
	}
	if err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag != "" {
			return 0, fmt.Errorf("renderer failed: %s", diag)
		}
		return 0, fmt.Errorf("renderer failed: %w", err)
	}

	return OutcomePrinted, nil
}

func (d *Dispatcher) scheduleCleanup(path string) {
	time.AfterFunc(d.CleanupDelay, func() {
		_ = os.Remove(path)
	})
}
