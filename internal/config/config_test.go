package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONConfigSuccess(t *testing.T) {
	path := writeTempConfig(t, `{"port":"/dev/ttyUSB1","baud":57600,"timeout_seconds":3,"tcp_port":11411,"udp_port":11412,"fork_server":true,"quiet":true}`)

	var cfg Config
	if err := ParseJSONConfig(&cfg, path); err != nil {
		t.Fatalf("ParseJSONConfig returned error: %v", err)
	}

	if cfg.Port != "/dev/ttyUSB1" || cfg.Baud != 57600 || cfg.TimeoutSeconds != 3 {
		t.Fatalf("unexpected serial fields: %+v", cfg)
	}
	if cfg.TCPPort != 11411 || cfg.UDPPort != 11412 {
		t.Fatalf("unexpected port fields: %+v", cfg)
	}
	if !cfg.ForkServer || !cfg.Quiet {
		t.Fatalf("unexpected bool fields: %+v", cfg)
	}
}

func TestParseJSONConfigMissingFile(t *testing.T) {
	var cfg Config
	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := ParseJSONConfig(&cfg, missing); err == nil {
		t.Fatalf("ParseJSONConfig expected error for missing file")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
