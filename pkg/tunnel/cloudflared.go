package tunnel

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/automaprint/automaprint/pkg/utils"
	"github.com/rs/zerolog/log"
)

const cloudflaredReleaseURL = "https://github.com/cloudflare/cloudflared/releases/latest/download"

// CloudflaredLocator resolves the cloudflared executable, downloading the
// matching release build into the data directory on first use.
type CloudflaredLocator struct {
	DataDir string
}

func (l *CloudflaredLocator) ResolvePath() (string, error) {
	exePath := filepath.Join(l.DataDir, cloudflaredFilename())
	if _, err := os.Stat(exePath); err == nil {
		return exePath, nil
	}

	log.Info().Msgf("cloudflared not found, downloading for %s/%s...", runtime.GOOS, runtime.GOARCH)
	if err := utils.DownloadFile(cloudflaredURL(), exePath); err != nil {
		return "", err
	}

	if err := os.Chmod(exePath, 0o755); err != nil {
		return "", err
	}

	log.Info().Msg("cloudflared downloaded and ready.")
	return exePath, nil
}

func cloudflaredFilename() string {
	if runtime.GOOS == "windows" {
		return "cloudflared.exe"
	}
	return "cloudflared"
}

func cloudflaredURL() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64", "arm64", "386":
	default:
		arch = "amd64"
	}

	if runtime.GOOS == "windows" {
		return fmt.Sprintf("%s/cloudflared-windows-%s.exe", cloudflaredReleaseURL, arch)
	}
	return fmt.Sprintf("%s/cloudflared-linux-%s", cloudflaredReleaseURL, arch)
}
