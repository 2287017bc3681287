package server

import (
	"time"

	"github.com/rs/zerolog/log"
	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

const killGrace = 1 * time.Second

// FreePort terminates any process listening on the given port so the
// server can bind it. The guard is best-effort: a process that cannot be
// resolved or killed (already exited, access denied) is skipped, and
// startup proceeds either way. Runs once, before the listener binds.
func FreePort(port int) {
	conns, err := gnet.Connections("tcp")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to enumerate sockets, skipping port check.")
		return
	}

	for _, conn := range conns {
		if conn.Laddr.Port != uint32(port) || conn.Status != "LISTEN" || conn.Pid == 0 {
			continue
		}

		proc, err := process.NewProcess(conn.Pid)
		if err != nil {
			// already gone
			continue
		}

		if err := proc.Terminate(); err != nil {
			log.Debug().Err(err).Msgf("Could not terminate process %d on port %d.", conn.Pid, port)
			continue
		}
		log.Info().Msgf("Terminated process %d using port %d.", conn.Pid, port)

		time.Sleep(killGrace)
		if running, _ := proc.IsRunning(); running {
			if err := proc.Kill(); err != nil {
				log.Debug().Err(err).Msgf("Could not kill process %d on port %d.", conn.Pid, port)
			}
		}
	}
}
