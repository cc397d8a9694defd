package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sudare/internal/buffer"
	"sudare/internal/runner"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BufferCapacity != buffer.DefaultCapacity {
		t.Fatalf("buffer capacity = %d", cfg.BufferCapacity)
	}
	if cfg.GracePeriod != runner.DefaultGrace {
		t.Fatalf("grace period = %v", cfg.GracePeriod)
	}
	if cfg.Shell != runner.DefaultShell || cfg.Log.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.StateDir, "sudare") {
		t.Fatalf("state dir = %q", cfg.StateDir)
	}
	if cfg != Default() {
		t.Fatalf("Load(\"\") and Default() disagree")
	}
}

func TestLoadTOMLFile(t *testing.T) {
	path := writeFile(t, "sudare.toml", `
buffer_capacity = 100
grace_period = "2s"
metrics_file = "/tmp/sudare.prom"

[log]
level = "debug"

[output_log]
dir = "/tmp/out"
compress = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BufferCapacity != 100 || cfg.GracePeriod != 2*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.MetricsFile != "/tmp/sudare.prom" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	out := cfg.OutputLog.Logger()
	if !out.Enabled() || !out.Compress || out.MaxBackups != 3 {
		t.Fatalf("output log config: %+v", out)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeFile(t, "sudare.yaml", "shell: /bin/bash\nqueue_size: 64\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Shell != "/bin/bash" || cfg.QueueSize != 64 {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "sudare.json", `{"grace_period": "3s", "log": {"level": "warn"}}`)
	t.Setenv("SUDARE_GRACE_PERIOD", "750ms")
	t.Setenv("SUDARE_LOG_LEVEL", "error")
	t.Setenv("SUDARE_BUFFER_CAPACITY", "42")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GracePeriod != 750*time.Millisecond || cfg.Log.Level != "error" || cfg.BufferCapacity != 42 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"capacity": "buffer_capacity = 0\n",
		"grace":    "grace_period = \"-1s\"\n",
		"level":    "[log]\nlevel = \"loud\"\n",
		"shell":    "shell = \" \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "c.toml", body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
