package tunnel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// State tracks the tunnel subprocess lifecycle. Transitions happen on the
// control path (Start/Stop) and on the output reader goroutine only.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const stopTimeout = 5 * time.Second

// ErrAlreadyRunning is returned by Start when a tunnel session is active.
var ErrAlreadyRunning = errors.New("tunnel already running")

var urlPattern = regexp.MustCompile(`https://[a-z0-9-]+\.trycloudflare\.com`)

// Locator resolves the tunnel executable, downloading it on first use.
type Locator interface {
	ResolvePath() (string, error)
}

// Supervisor manages one cloudflared quick-tunnel subprocess per server
// lifetime. The public URL is written only by the output reader and read
// by arbitrarily many request handlers, so every access goes through the
// mutex.
type Supervisor struct {
	locator Locator

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	publicURL string
	done      chan struct{}
}

func NewSupervisor(locator Locator) *Supervisor {
	return &Supervisor{locator: locator, state: Idle}
}

// Start launches the tunnel subprocess exposing the local port and begins
// watching its output for the assigned public URL. The server stays fully
// functional locally if this fails.
func (s *Supervisor) Start(localPort int) error {
	s.mu.Lock()
	if s.state == Starting || s.state == Running {
		s.mu.Unlock()
		log.Warn().Msg("Tunnel already running.")
		return ErrAlreadyRunning
	}
	s.mu.Unlock()

	exePath, err := s.locator.ResolvePath()
	if err != nil {
		s.setState(Failed)
		return fmt.Errorf("tunnel executable not available: %w", err)
	}

	log.Info().Msgf("Starting tunnel to localhost:%d...", localPort)

	cmd := exec.Command(exePath, "tunnel", "--url", fmt.Sprintf("http://localhost:%d", localPort))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setState(Failed)
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		s.setState(Failed)
		return fmt.Errorf("failed to start tunnel: %w", err)
	}

	done := make(chan struct{})

	s.mu.Lock()
	s.cmd = cmd
	s.state = Starting
	s.publicURL = ""
	s.done = done
	s.mu.Unlock()

	go func() {
		s.watchOutput(stdout)
		_ = cmd.Wait()
		close(done)
	}()

	return nil
}

// watchOutput scans the combined output stream for the provider-issued
// hostname. Only the first match is kept. When the stream closes the
// session is over: Stopped if it ever ran, Failed if it died first.
func (s *Supervisor) watchOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if match := urlPattern.FindString(line); match != "" {
			s.mu.Lock()
			if s.publicURL == "" {
				s.publicURL = match
				if s.state == Starting {
					s.state = Running
				}
				log.Info().Msgf("Tunnel URL: %s", match)
			}
			s.mu.Unlock()
			continue
		}

		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			log.Warn().Msgf("Tunnel: %s", line)
		}
	}

	s.mu.Lock()
	switch s.state {
	case Starting:
		s.state = Failed
		log.Error().Msg("Tunnel exited before becoming reachable.")
	case Running:
		s.state = Stopped
		log.Info().Msg("Tunnel exited.")
	}
	s.publicURL = ""
	s.mu.Unlock()
}

// Stop terminates the tunnel subprocess, escalating to a kill after the
// grace period. Calling it on a stopped session is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.cmd == nil || (s.state != Starting && s.state != Running) {
		s.mu.Unlock()
		return
	}
	cmd := s.cmd
	done := s.done
	s.state = Stopping
	s.mu.Unlock()

	log.Info().Msg("Stopping tunnel...")
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Warn().Msg("Tunnel did not exit in time, killing it.")
		_ = cmd.Process.Kill()
		<-done
	}

	s.mu.Lock()
	s.cmd = nil
	s.publicURL = ""
	s.state = Stopped
	s.mu.Unlock()

	log.Info().Msg("Tunnel stopped.")
}

// URL returns the discovered public URL, or an empty string until the
// tunnel is reachable.
func (s *Supervisor) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicURL
}

func (s *Supervisor) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
