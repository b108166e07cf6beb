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
		LocalAddr:  ":12948",
		RemoteAddr: "127.0.0.1:29900",
		Crypt:      "aes-128",
		Mode:       "fast",
	}

	path := writeTempConfig(t, `{
		"localaddr": ":9000",
		"remoteaddr": "203.0.113.1:29900",
		"crypt": "none",
		"closewait": 5
	}`)

	if err := parseJSONConfig(config, path); err != nil {
		t.Fatalf("parseJSONConfig: %v", err)
	}

	if config.LocalAddr != ":9000" {
		t.Fatalf("LocalAddr = %q", config.LocalAddr)
	}
	if config.RemoteAddr != "203.0.113.1:29900" {
		t.Fatalf("RemoteAddr = %q", config.RemoteAddr)
	}
	if config.Crypt != "none" {
		t.Fatalf("Crypt = %q", config.Crypt)
	}
	if config.CloseWait != 5 {
		t.Fatalf("CloseWait = %d", config.CloseWait)
	}
	// Fields absent from the JSON file must survive untouched.
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
		mode                                          string
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

func TestApplyModeUnknownLeavesDefaults(t *testing.T) {
	cfg := &Config{Mode: "not-a-real-mode"}
	cfg.applyMode()
	if cfg.NoDelay != 0 || cfg.Interval != 0 || cfg.Resend != 0 || cfg.NoCongestion != 0 {
		t.Fatalf("unknown mode changed fields: %+v", cfg)
	}
}

func TestCloseWaitDuration(t *testing.T) {
	cfg := &Config{CloseWait: 3}
	if got := cfg.closeWait(); got != 3*time.Second {
		t.Fatalf("closeWait() = %v, want 3s", got)
	}
}
