package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hexcolony/internal/domain/terrain"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{EnvDSN: "postgres://x"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.WSAddr != ":8081" {
		t.Fatalf("unexpected addrs: %s %s", cfg.HTTPAddr, cfg.WSAddr)
	}
	if !cfg.Capture.EnforceAdjacency || cfg.Capture.MaxAttempts != 3 {
		t.Fatalf("adjacency must default to enforced with 3 attempts: %+v", cfg.Capture)
	}
	if cfg.World.Terrain != terrain.DefaultConfig() {
		t.Fatalf("unexpected terrain config: %+v", cfg.World.Terrain)
	}
}

func TestLoad_FileThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hexcolony.yaml")
	yaml := `
http_addr: ":9000"
store:
  driver: memory
  namespace: v2
world:
  seed_phrase: andromeda
capture:
  enforce_adjacency: false
channel:
  ping_interval: 10s
log:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := FromEnv(envMap(map[string]string{
		EnvConfigPath:       path,
		EnvWSAddr:           ":9001",
		EnvEnforceAdjacency: "true",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.WSAddr != ":9001" {
		t.Fatalf("unexpected addrs: %s %s", cfg.HTTPAddr, cfg.WSAddr)
	}
	if cfg.Store.Driver != DriverMemory || cfg.Store.Namespace != "v2" {
		t.Fatalf("unexpected store: %+v", cfg.Store)
	}
	if cfg.World.Seed != terrain.SeedFromPhrase("andromeda") {
		t.Fatalf("seed phrase should derive the seed")
	}
	if !cfg.Capture.EnforceAdjacency {
		t.Fatalf("env should override the file")
	}
	if cfg.Channel.PingInterval != 10*time.Second || cfg.Channel.WriteTimeout != 5*time.Second {
		t.Fatalf("unexpected channel config: %+v", cfg.Channel)
	}

	var buf bytes.Buffer
	cfg.Log.NewLogger(&buf).Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("expected text debug output, got %q", buf.String())
	}
}

func TestFromEnv_ExplicitSeedBeatsPhrase(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		EnvDSN:        "postgres://x",
		EnvSeedPhrase: "andromeda",
		EnvSeed:       "99",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.World.Seed != 99 {
		t.Fatalf("expected seed 99, got %d", cfg.World.Seed)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := map[string]map[string]string{
		"missing dsn":   {},
		"bad seed":      {EnvDSN: "x", EnvSeed: "abc"},
		"bad adjacency": {EnvDSN: "x", EnvEnforceAdjacency: "sometimes"},
		"bad log level": {EnvDSN: "x", EnvLogLevel: "loud"},
	}
	for name, env := range cases {
		if _, err := FromEnv(envMap(env)); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}

	cfg := Defaults()
	cfg.Store.Driver = DriverMemory
	cfg.World.Terrain.StarRichThreshold = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) || !errors.Is(err, terrain.ErrInvalidConfig) {
		t.Fatalf("expected terrain validation error, got %v", err)
	}
}
