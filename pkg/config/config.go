package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"
)

const (
	DefaultPort = 8080

	DefaultScaling = "shrink"
	DefaultColor   = "color"
	DefaultDuplex  = "simplex"
)

var (
	scalingValues = map[string]bool{"fit": true, "shrink": true, "noscale": true}
	colorValues   = map[string]bool{"color": true, "monochrome": true}
	duplexValues  = map[string]bool{"simplex": true, "duplexlong": true, "duplexshort": true}
)

// LoadConfig reads the first usable config file from the candidate list and
// returns validated settings together with the path used. When no file
// exists, defaults are returned with the preferred save path so that a
// later Save creates it.
func LoadConfig(configFiles []string) (Settings, string) {
	var validConfigFile string

	for _, configFile := range configFiles {
		fileInfo, statErr := os.Stat(configFile)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				continue
			}
			log.Error().Err(statErr).Msgf("Error accessing config file %s.", configFile)
			continue
		}

		if fileInfo.Size() == 0 {
			log.Debug().Msgf("Config file %s is empty, skipping...", configFile)
			continue
		}

		log.Debug().Msgf("Using config file %s.", configFile)
		validConfigFile = configFile
		break
	}

	if validConfigFile == "" {
		log.Info().Msg("No config file found, using defaults.")
		return validateConfig(Config{}), preferredPath(configFiles)
	}

	iniData, err := ini.Load(validConfigFile)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to load config file %s, using defaults.", validConfigFile)
		return validateConfig(Config{}), validConfigFile
	}

	var config Config
	err = iniData.MapTo(&config)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to parse config file %s, using defaults.", validConfigFile)
		return validateConfig(Config{}), validConfigFile
	}

	if config.Logging.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return validateConfig(config), validConfigFile
}

func validateConfig(config Config) Settings {
	settings := Settings{
		PrinterName:  config.Printer.Name,
		Port:         config.Server.Port,
		UseTunnel:    config.Server.UseTunnel,
		APIKey:       config.Server.APIKey,
		PrintScaling: config.Print.Scaling,
		PrintColor:   config.Print.Color,
		PrintDuplex:  config.Print.Duplex,
		Debug:        config.Logging.Debug,
	}

	if settings.Port <= 0 || settings.Port > 65535 {
		settings.Port = DefaultPort
	}

	if !scalingValues[settings.PrintScaling] {
		if settings.PrintScaling != "" {
			log.Warn().Msgf("Invalid print scaling %q, falling back to %q.", settings.PrintScaling, DefaultScaling)
		}
		settings.PrintScaling = DefaultScaling
	}
	if !colorValues[settings.PrintColor] {
		if settings.PrintColor != "" {
			log.Warn().Msgf("Invalid print color %q, falling back to %q.", settings.PrintColor, DefaultColor)
		}
		settings.PrintColor = DefaultColor
	}
	if !duplexValues[settings.PrintDuplex] {
		if settings.PrintDuplex != "" {
			log.Warn().Msgf("Invalid print duplex %q, falling back to %q.", settings.PrintDuplex, DefaultDuplex)
		}
		settings.PrintDuplex = DefaultDuplex
	}

	return settings
}

// Save writes settings back to the given config file, creating parent
// directories as needed.
func Save(settings Settings, path string) error {
	if path == "" {
		return fmt.Errorf("no config path to save to")
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var config Config
	config.Printer.Name = settings.PrinterName
	config.Server.Port = settings.Port
	config.Server.UseTunnel = settings.UseTunnel
	config.Server.APIKey = settings.APIKey
	config.Print.Scaling = settings.PrintScaling
	config.Print.Color = settings.PrintColor
	config.Print.Duplex = settings.PrintDuplex
	config.Logging.Debug = settings.Debug

	iniData := ini.Empty()
	if err := iniData.ReflectFrom(&config); err != nil {
		return err
	}

	if err := iniData.SaveTo(path); err != nil {
		return err
	}

	log.Debug().Msgf("Configuration saved to %s.", path)
	return nil
}

// GenerateAPIKey returns a fresh key for remote access.
func GenerateAPIKey() string {
	return uuid.New().String()
}

// DataDir returns the directory holding downloaded executables, creating
// it on first use.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".automaprint")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error().Err(err).Msgf("Failed to create data directory %s.", dir)
	}
	return dir
}

// Files returns the candidate config file locations in lookup order.
func Files(name string) []string {
	return []string{
		fmt.Sprintf("/etc/%s/%s.conf", name, name),
		filepath.Join(DataDir(), fmt.Sprintf("%s.conf", name)),
		fmt.Sprintf("%s.conf", name),
	}
}

func preferredPath(configFiles []string) string {
	if len(configFiles) > 1 {
		return configFiles[1]
	}
	if len(configFiles) == 1 {
		return configFiles[0]
	}
	return ""
}
