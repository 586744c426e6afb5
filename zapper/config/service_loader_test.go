package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeebo/assert"

	. "github.com/Cogwheel-Validator/spectra-zap/zapper/config"
)

// unsetZapperEnv clears ZAPPER_ variables between tests
func unsetZapperEnv() {
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "ZAPPER_") {
			if name, _, ok := strings.Cut(e, "="); ok {
				_ = os.Unsetenv(name)
			}
		}
	}
}

// inEmptyDir keeps godotenv from picking up a stray .env file
func inEmptyDir(t *testing.T) {
	t.Helper()
	origWd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	_ = os.Chdir(t.TempDir())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing temp config: %v", err)
	}
	return path
}

func TestLoadServiceConfig_FromEnv(t *testing.T) {
	unsetZapperEnv()
	inEmptyDir(t)
	t.Setenv("ZAPPER_PORT", "9000")
	t.Setenv("ZAPPER_HOST", "0.0.0.0")
	t.Setenv("ZAPPER_SINK", "http")
	t.Setenv("ZAPPER_RELAYER_URLS", "https://relay-a.example.com,https://relay-b.example.com")

	cfg, err := LoadServiceConfig(nil)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Port, 9000)
	assert.Equal(t, cfg.Host, "0.0.0.0")
	assert.Equal(t, cfg.Sink, SinkHTTP)
	assert.Equal(t, len(cfg.RelayerURLs), 2)

	// untouched keys fall back to defaults
	assert.Equal(t, cfg.ContractAccount, "zap.testnet")
	assert.Equal(t, cfg.QueueCapacity, 1024)
	assert.Equal(t, cfg.LogLevel, "info")
}

func TestLoadServiceConfig_FromEnv_FailVerification(t *testing.T) {
	cases := map[string]map[string]string{
		"bad port":        {"ZAPPER_PORT": "70000"},
		"bad account":     {"ZAPPER_CONTRACT_ACCOUNT": "Zap Contract"},
		"http no relayer": {"ZAPPER_SINK": "http"},
		"unknown sink":    {"ZAPPER_SINK": "carrier-pigeon"},
		"bad log level":   {"ZAPPER_LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			unsetZapperEnv()
			inEmptyDir(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadServiceConfig(nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadServiceConfig_FromFile(t *testing.T) {
	unsetZapperEnv()
	path := writeFile(t, "zapper.toml", `
port = 7000
host = "127.0.0.1"
allowed_origins = ["https://example.com"]
contract_account = "zap.near"
storage_path = "/var/lib/zapper"
sink = "local"
queue_capacity = 16
`)

	cfg, err := LoadServiceConfig(&path)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Port, 7000)
	assert.Equal(t, cfg.Host, "127.0.0.1")
	assert.Equal(t, len(cfg.AllowedOrigins), 1)
	assert.Equal(t, cfg.AllowedOrigins[0], "https://example.com")
	assert.Equal(t, cfg.ContractAccount, "zap.near")
	assert.Equal(t, cfg.StoragePath, "/var/lib/zapper")
	assert.Equal(t, cfg.QueueCapacity, 16)
}

func TestLoadServiceConfig_WrongExtension(t *testing.T) {
	p := "config.yaml"
	_, err := LoadServiceConfig(&p)
	assert.Error(t, err)
}

func TestLoadServiceConfig_FileOverridesEnv(t *testing.T) {
	unsetZapperEnv()
	t.Setenv("ZAPPER_PORT", "8000")
	path := writeFile(t, "zapper.toml", "port = 7001\n")

	cfg, err := LoadServiceConfig(&path)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Port, 7001)
}
