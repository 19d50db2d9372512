package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rme-go/canary-core/internal/mapcodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHCL(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadLoaderConfig_Defaults(t *testing.T) {
	path := writeHCL(t, "loader.hcl", "")
	cfg, err := LoadLoaderConfig(path)
	require.NoError(t, err)
	assert.Equal(t, mapcodec.UnknownItemPlaceholder, cfg.UnknownItem)
	assert.False(t, cfg.AllowUnsupportedVersion)
}

func TestLoadLoaderConfig_Policies(t *testing.T) {
	for policy, want := range map[string]mapcodec.UnknownItemPolicy{
		"placeholder": mapcodec.UnknownItemPlaceholder,
		"skip":        mapcodec.UnknownItemSkip,
		"error":       mapcodec.UnknownItemError,
	} {
		path := writeHCL(t, "loader.hcl", `unknown_item_policy = "`+policy+`"`)
		cfg, err := LoadLoaderConfig(path)
		require.NoError(t, err)
		assert.Equal(t, want, cfg.UnknownItem)
	}
}

func TestLoadLoaderConfig_UnknownPolicyRejected(t *testing.T) {
	path := writeHCL(t, "loader.hcl", `unknown_item_policy = "explode"`)
	_, err := LoadLoaderConfig(path)
	assert.Error(t, err)
}

func TestLoadServerConfig(t *testing.T) {
	body := `
listen_addr = "0.0.0.0:9000"
password = "hunter2"
banned_hosts = ["1.2.3.4", "5.6.7.8"]
rate_limit = 50
chunk_tile_budget = 256
write_timeout_seconds = 3
`
	path := writeHCL(t, "server.hcl", body)
	addr, cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", addr)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.True(t, cfg.BannedHosts["1.2.3.4"])
	assert.True(t, cfg.BannedHosts["5.6.7.8"])
	assert.Equal(t, 50, cfg.RateLimit)
	assert.Equal(t, 256, cfg.ChunkTileBudget)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
}

func TestDefaultLoaderConfig(t *testing.T) {
	cfg := DefaultLoaderConfig()
	assert.Equal(t, mapcodec.LoaderConfig{}, cfg)
}
