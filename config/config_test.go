package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Link.Name != "default" || cfg.Link.PollInterval != 5*time.Millisecond || cfg.Link.MaxMessageSize != 255 {
		t.Fatalf("unexpected defaults: %+v", cfg.Link)
	}
	if cfg.Etcd.Enabled() {
		t.Fatal("etcd must be disabled by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p2plink.yaml")
	data := []byte(`
link:
  name: bench
  poll_interval: 2ms
  max_message_size: 128
etcd:
  endpoints: ["10.0.0.1:2379"]
limits:
  rate_limit: 100
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("P2PLINK_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Link.Name != "bench" || cfg.Link.PollInterval != 2*time.Millisecond || cfg.Link.MaxMessageSize != 128 {
		t.Fatalf("file values not applied: %+v", cfg.Link)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("env override not applied: %q", cfg.Log.Level)
	}
	if !cfg.Etcd.Enabled() || cfg.Etcd.Endpoints[0] != "10.0.0.1:2379" {
		t.Fatalf("etcd = %+v", cfg.Etcd)
	}
	if cfg.Limits.Burst != 1 {
		t.Fatalf("burst = %d, want 1 when only a rate is set", cfg.Limits.Burst)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"empty link name", func(c *Config) { c.Link.Name = " " }},
		{"oversize", func(c *Config) { c.Link.MaxMessageSize = 300 }},
		{"zero poll", func(c *Config) { c.Link.PollInterval = 0 }},
		{"negative rate", func(c *Config) { c.Limits.RateLimit = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
