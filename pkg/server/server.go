package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/automaprint/automaprint/pkg/config"
	"github.com/automaprint/automaprint/pkg/printer"
	"github.com/rs/zerolog/log"
	gnet "github.com/shirou/gopsutil/v4/net"
)

const shutdownTimeout = 5 * time.Second

// Printer dispatches a validated payload to the rendering executable.
type Printer interface {
	Dispatch(ctx context.Context, payload []byte, device string, opts printer.Options) (printer.Outcome, error)
}

// Tunnel exposes the local port publicly. Start failures are never fatal
// to the print service.
type Tunnel interface {
	Start(localPort int) error
	Stop()
	URL() string
}

// Server composes the port guard, the HTTP front door, the print
// dispatcher, and the tunnel supervisor. Construct one per process run;
// tests build independent instances.
type Server struct {
	settings   *config.Settings
	configPath string
	printer    Printer
	tunnel     Tunnel

	httpSrv  *http.Server
	listener net.Listener
}

func New(settings *config.Settings, configPath string, p Printer, t Tunnel) *Server {
	return &Server{
		settings:   settings,
		configPath: configPath,
		printer:    p,
		tunnel:     t,
	}
}

// Start frees the configured port, binds the listener, optionally starts
// the tunnel, and serves until Stop is called. Only a bind failure aborts
// startup; everything before it is best-effort.
func (s *Server) Start() error {
	if s.settings.PrinterName == "" {
		return errors.New("no printer configured")
	}

	log.Debug().Msgf("Checking for processes using port %d...", s.settings.Port)
	FreePort(s.settings.Port)

	listener, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", s.settings.Port))
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", s.settings.Port, err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: s.buildRouter()}

	localIP := LocalIP()
	log.Info().Msgf("REST API server started on port %d.", s.settings.Port)
	log.Info().Msgf("Using printer: %s", s.settings.PrinterName)
	log.Info().Msgf("Endpoints: GET http://%s:%d/health | POST http://%s:%d/print",
		localIP, s.settings.Port, localIP, s.settings.Port)

	if s.settings.UseTunnel && s.tunnel != nil {
		s.ensureAPIKey()
		go func() {
			if err := s.tunnel.Start(s.settings.Port); err != nil {
				log.Error().Err(err).Msg("Failed to start tunnel, continuing without remote access.")
			}
		}()
	}

	err = s.httpSrv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ensureAPIKey generates and persists a key when remote access is enabled
// without one, so the tunnel never goes up unauthenticated.
func (s *Server) ensureAPIKey() {
	if s.settings.APIKey != "" {
		return
	}

	s.settings.APIKey = config.GenerateAPIKey()
	log.Info().Msg("Generated API key for remote access.")

	if err := config.Save(*s.settings, s.configPath); err != nil {
		log.Warn().Err(err).Msg("Failed to persist generated API key.")
	}
}

// Stop tears down the tunnel and shuts the HTTP server down gracefully.
func (s *Server) Stop() {
	if s.tunnel != nil {
		s.tunnel.Stop()
	}

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly.")
		}
		s.httpSrv = nil
	}

	log.Info().Msg("Server stopped.")
}

// TunnelURL returns the current public URL, empty until the tunnel is up.
func (s *Server) TunnelURL() string {
	if s.tunnel == nil {
		return ""
	}
	return s.tunnel.URL()
}

// LocalIP finds the machine's LAN address for startup logging. Falls back
// to loopback when nothing routable exists.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err == nil {
		addr, ok := conn.LocalAddr().(*net.UDPAddr)
		_ = conn.Close()
		if ok && usableIP(addr.IP.String()) {
			return addr.IP.String()
		}
	}

	ifaces, err := gnet.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}

	for _, iface := range ifaces {
		name := strings.ToLower(iface.Name)
		if strings.Contains(name, "virtualbox") || strings.Contains(name, "vmware") || strings.Contains(name, "loopback") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil || ip.To4() == nil {
				continue
			}
			if usableIP(ip.String()) {
				return ip.String()
			}
		}
	}

	return "127.0.0.1"
}

func usableIP(ip string) bool {
	return !strings.HasPrefix(ip, "127.") && !strings.HasPrefix(ip, "169.254.")
}
