package command

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/automaprint/automaprint/pkg/config"
	"github.com/automaprint/automaprint/pkg/logger"
	"github.com/automaprint/automaprint/pkg/printer"
	"github.com/automaprint/automaprint/pkg/server"
	"github.com/automaprint/automaprint/pkg/tunnel"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const name = "automaprint"

var RootCmd = &cobra.Command{
	Use:           name,
	Short:         "REST API print server for PDF files",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	logRotate := logger.InitLogger(nil)
	defer func() { _ = logRotate.Close() }()

	log.Info().Msgf("Starting %s...", name)

	settings, configPath := config.LoadConfig(config.Files(name))

	if settings.PrinterName == "" {
		log.Error().Msgf("No printer configured. Set [printer] name in %s.", configPath)
		return errors.New("no printer configured")
	}

	dataDir := config.DataDir()
	dispatcher := printer.NewDispatcher(&printer.SumatraLocator{DataDir: dataDir})
	supervisor := tunnel.NewSupervisor(&tunnel.CloudflaredLocator{DataDir: dataDir})
	srv := server.New(&settings, configPath, dispatcher, supervisor)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received termination signal. Shutting down...")
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Error().Err(err).Msg("Server error.")
		return err
	}

	log.Debug().Msg("Bye.")
	return nil
}
