package utils

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog/log"
)

const downloadTimeout = 5 * time.Minute

// DownloadFile fetches url into dest with retries, writing through a
// temporary file so that dest never holds a partial download.
func DownloadFile(url, dest string) error {
	dlBackoff := backoff.NewExponentialBackOff()
	dlBackoff.InitialInterval = 2 * time.Second
	dlBackoff.MaxInterval = 30 * time.Second
	dlBackoff.MaxElapsedTime = 2 * time.Minute

	operation := func() error {
		return fetch(url, dest)
	}

	err := backoff.Retry(operation, dlBackoff)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	return nil
}

func fetch(url, dest string) error {
	client := &http.Client{Timeout: downloadTimeout}

	resp, err := client.Get(url)
	if err != nil {
		log.Debug().Err(err).Msgf("Download attempt for %s failed, retrying...", url)
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status %s", resp.Status)
		log.Debug().Err(err).Msgf("Download attempt for %s failed, retrying...", url)
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return backoff.Permanent(err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dest)
}
