package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	settings := validateConfig(Config{})

	if settings.Port != DefaultPort {
		t.Errorf("Expected default port %d, got %d", DefaultPort, settings.Port)
	}
	if settings.PrintScaling != DefaultScaling {
		t.Errorf("Expected default scaling %q, got %q", DefaultScaling, settings.PrintScaling)
	}
	if settings.PrintColor != DefaultColor {
		t.Errorf("Expected default color %q, got %q", DefaultColor, settings.PrintColor)
	}
	if settings.PrintDuplex != DefaultDuplex {
		t.Errorf("Expected default duplex %q, got %q", DefaultDuplex, settings.PrintDuplex)
	}
	if settings.UseTunnel {
		t.Error("Expected tunnel to be disabled by default")
	}
}

func TestInvalidEnumsFallBack(t *testing.T) {
	var config Config
	config.Print.Scaling = "stretch"
	config.Print.Color = "sepia"
	config.Print.Duplex = "booklet"
	config.Server.Port = -1

	settings := validateConfig(config)

	if settings.PrintScaling != DefaultScaling {
		t.Errorf("Expected scaling fallback to %q, got %q", DefaultScaling, settings.PrintScaling)
	}
	if settings.PrintColor != DefaultColor {
		t.Errorf("Expected color fallback to %q, got %q", DefaultColor, settings.PrintColor)
	}
	if settings.PrintDuplex != DefaultDuplex {
		t.Errorf("Expected duplex fallback to %q, got %q", DefaultDuplex, settings.PrintDuplex)
	}
	if settings.Port != DefaultPort {
		t.Errorf("Expected port fallback to %d, got %d", DefaultPort, settings.Port)
	}
}

func TestLoadConfigFromINI(t *testing.T) {
	content := `[printer]
name = Office Laser

[server]
port = 9090
use_tunnel = true
api_key = secret

[print]
scaling = noscale
color = monochrome
duplex = duplexlong
`

	tmpfile, err := os.CreateTemp("", "automaprint-test-*.conf")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	settings, path := LoadConfig([]string{tmpfile.Name()})

	if path != tmpfile.Name() {
		t.Errorf("Expected config path %s, got %s", tmpfile.Name(), path)
	}
	if settings.PrinterName != "Office Laser" {
		t.Errorf("Expected printer name 'Office Laser', got %q", settings.PrinterName)
	}
	if settings.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", settings.Port)
	}
	if !settings.UseTunnel {
		t.Error("Expected tunnel to be enabled")
	}
	if settings.APIKey != "secret" {
		t.Errorf("Expected API key 'secret', got %q", settings.APIKey)
	}
	if settings.PrintScaling != "noscale" || settings.PrintColor != "monochrome" || settings.PrintDuplex != "duplexlong" {
		t.Errorf("Print settings not applied: %+v", settings)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	settings, path := LoadConfig([]string{
		filepath.Join(t.TempDir(), "does-not-exist.conf"),
		filepath.Join(t.TempDir(), "preferred.conf"),
	})

	if settings.Port != DefaultPort {
		t.Errorf("Expected default port %d, got %d", DefaultPort, settings.Port)
	}
	if filepath.Base(path) != "preferred.conf" {
		t.Errorf("Expected preferred save path, got %s", path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "automaprint.conf")

	original := Settings{
		PrinterName:  "HP LaserJet",
		Port:         8081,
		UseTunnel:    true,
		APIKey:       "abc-123",
		PrintScaling: "fit",
		PrintColor:   "monochrome",
		PrintDuplex:  "duplexshort",
	}

	if err := Save(original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, _ := LoadConfig([]string{path})

	if loaded != original {
		t.Errorf("Round trip mismatch:\n saved:  %+v\n loaded: %+v", original, loaded)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := Save(Settings{}, ""); err == nil {
		t.Error("Expected error when saving without a path")
	}
}

func TestGenerateAPIKey(t *testing.T) {
	first := GenerateAPIKey()
	second := GenerateAPIKey()

	if len(first) != 36 {
		t.Errorf("Expected UUID-length key, got %q", first)
	}
	if first == second {
		t.Error("Expected generated keys to differ")
	}
}
