package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestParseJSONConfigOverridesFlags(t *testing.T) {
	config := &Config{
		Listen: ":29900",
		Target: "127.0.0.1:12948",
		Crypt:  "aes-128",
		Mode:   "fast",
	}

	path := writeTempConfig(t, `{
		"listen": "0.0.0.0:30000-30010",
		"target": "/tmp/upstream.sock",
		"crypt": "none",
		"tcpraw": true
	}`)

	if err := parseJSONConfig(config, path); err != nil {
		t.Fatalf("parseJSONConfig: %v", err)
	}

	if config.Listen != "0.0.0.0:30000-30010" {
		t.Fatalf("Listen = %q", config.Listen)
	}
	if config.Target != "/tmp/upstream.sock" {
		t.Fatalf("Target = %q", config.Target)
	}
	if config.Crypt != "none" {
		t.Fatalf("Crypt = %q", config.Crypt)
	}
	if !config.TCPRaw {
		t.Fatalf("TCPRaw was not set from JSON")
	}
	if config.Mode != "fast" {
		t.Fatalf("Mode was clobbered: %q", config.Mode)
	}
}

func TestParseJSONConfigMissingFile(t *testing.T) {
	config := &Config{}
	if err := parseJSONConfig(config, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestApplyModeProfiles(t *testing.T) {
	cases := []struct {
		mode                                     string
		noDelay, interval, resend, noCongestion int
	}{
		{"normal", 0, 40, 2, 1},
		{"fast", 0, 30, 2, 1},
		{"fast2", 1, 20, 2, 1},
		{"fast3", 1, 10, 2, 1},
	}
	for _, c := range cases {
		cfg := &Config{Mode: c.mode}
		cfg.applyMode()
		if cfg.NoDelay != c.noDelay || cfg.Interval != c.interval || cfg.Resend != c.resend || cfg.NoCongestion != c.noCongestion {
			t.Fatalf("mode %s: got {%d %d %d %d}, want {%d %d %d %d}",
				c.mode, cfg.NoDelay, cfg.Interval, cfg.Resend, cfg.NoCongestion,
				c.noDelay, c.interval, c.resend, c.noCongestion)
		}
	}
}

func TestCloseWaitDuration(t *testing.T) {
	cfg := &Config{CloseWait: 30}
	if got := cfg.closeWait(); got != 30*time.Second {
		t.Fatalf("closeWait() = %v, want 30s", got)
	}
}
