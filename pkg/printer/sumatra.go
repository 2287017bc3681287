package printer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/automaprint/automaprint/pkg/utils"
	"github.com/rs/zerolog/log"
)

const (
	sumatraFilename = "SumatraPDF.exe"
	sumatraVersion  = "3.5.2"
)

// SumatraLocator resolves the SumatraPDF executable, downloading the
// release archive into the data directory on first use.
type SumatraLocator struct {
	DataDir string
}

func (l *SumatraLocator) ResolvePath() (string, error) {
	exePath := filepath.Join(l.DataDir, sumatraFilename)
	if _, err := os.Stat(exePath); err == nil {
		return exePath, nil
	}

	log.Info().Msgf("SumatraPDF not found, downloading %s...", sumatraVersion)
	if err := l.download(exePath); err != nil {
		return "", err
	}

	log.Info().Msg("SumatraPDF downloaded and ready.")
	return exePath, nil
}

func (l *SumatraLocator) download(exePath string) error {
	zipPath := filepath.Join(l.DataDir, "sumatra_temp.zip")
	defer func() { _ = os.Remove(zipPath) }()

	if err := utils.DownloadFile(sumatraURL(), zipPath); err != nil {
		return err
	}

	return extractExecutable(zipPath, exePath)
}

func sumatraURL() string {
	// 64-bit builds carry a -64 suffix; the 32-bit build works everywhere
	// else.
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		return fmt.Sprintf("https://www.sumatrapdfreader.org/dl/rel/%s/SumatraPDF-%s-64.zip", sumatraVersion, sumatraVersion)
	}
	return fmt.Sprintf("https://www.sumatrapdfreader.org/dl/rel/%s/SumatraPDF-%s.zip", sumatraVersion, sumatraVersion)
}

// extractExecutable pulls the first .exe entry out of the archive and
// writes it to exePath.
func extractExecutable(zipPath, exePath string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open renderer archive: %w", err)
	}
	defer func() { _ = reader.Close() }()

	for _, entry := range reader.File {
		if !strings.HasSuffix(entry.Name, ".exe") {
			continue
		}

		src, err := entry.Open()
		if err != nil {
			return err
		}

		dst, err := os.OpenFile(exePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
		if err != nil {
			_ = src.Close()
			return err
		}

		_, err = io.Copy(dst, src)
		_ = src.Close()
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
		return err
	}

	return fmt.Errorf("no executable found in renderer archive")
}
