package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config         string `toml:"-" env:"CONFIG"`
	Host           string `toml:"server.host" env:"HOST"`
	Port           int    `toml:"server.port" env:"PORT"`
	Platform       string `toml:"dpst.platform" env:"PLATFORM"`
	GuardBandDelay uint32 `toml:"dpst.guard-band-delay" env:"GUARD_BAND_DELAY"`
	Simulate       bool   `toml:"dpst.simulate" env:"SIMULATE"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dpstd.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 9000

[dpst]
platform = "valleyview"
guard-band-delay = 4
simulate = true
`)

	opts := testOptions{Config: path, Host: "127.0.0.1", Port: 8080}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Host != "0.0.0.0" || opts.Port != 9000 {
		t.Errorf("server = %s:%d, want 0.0.0.0:9000", opts.Host, opts.Port)
	}
	if opts.Platform != "valleyview" {
		t.Errorf("Platform = %q", opts.Platform)
	}
	if opts.GuardBandDelay != 4 {
		t.Errorf("GuardBandDelay = %d, want 4", opts.GuardBandDelay)
	}
	if !opts.Simulate {
		t.Error("Simulate not set from TOML")
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, `
[dpst]
platform = "haswell"
`)
	t.Setenv(EnvPrefix+"PLATFORM", "valleyview")
	t.Setenv(EnvPrefix+"GUARD_BAND_DELAY", "7")

	opts := testOptions{Config: path}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Platform != "valleyview" {
		t.Errorf("Platform = %q, env should override TOML", opts.Platform)
	}
	if opts.GuardBandDelay != 7 {
		t.Errorf("GuardBandDelay = %d, want 7 from env", opts.GuardBandDelay)
	}
}

func TestLoadConfigCLIWins(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000
`)
	t.Setenv(EnvPrefix+"PORT", "9100")

	cmd := &cobra.Command{}
	opts := testOptions{Config: path}
	cmd.Flags().IntVar(&opts.Port, "port", 8080, "")
	if err := cmd.Flags().Set("port", "8123"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(&opts, cmd); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if opts.Port != 8123 {
		t.Errorf("Port = %d, explicitly set flag must win over env and TOML", opts.Port)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := testOptions{Config: "/nonexistent/dpstd.toml", Host: "127.0.0.1"}
	if err := LoadConfig(&opts, nil); err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if opts.Host != "127.0.0.1" {
		t.Error("defaults should survive a missing file")
	}
}

func TestLoadConfigBadTOML(t *testing.T) {
	path := writeConfig(t, "not [valid toml")
	opts := testOptions{Config: path}
	if err := LoadConfig(&opts, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":           "port",
		"GuardBandDelay": "guard-band-delay",
		"Host":           "host",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"
format = "json"
dpst = "warn"
panel = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Modules["dpst"] != "warn" || cfg.Modules["panel"] != "error" {
		t.Errorf("modules = %v", cfg.Modules)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %+v", cfg)
	}

	cfg = LoadLoggingConfig("/nonexistent/dpstd.toml")
	if cfg.Level != "info" {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}
