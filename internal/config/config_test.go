package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUT_CFG_01_DefaultConfigPath_ContainsModuleName(t *testing.T) {
	path := DefaultConfigPath()
	assert.True(t, strings.Contains(path, "vfsoverlay"))
	assert.True(t, strings.HasSuffix(path, "config.yml"))
}

func TestUT_CFG_02_LoadConfig_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	require.NotNil(t, cfg)
	assert.Equal(t, CatalogShardedFile, cfg.Catalog)
	assert.Equal(t, ContentStoreShardedFile, cfg.ContentStore)
	assert.True(t, cfg.CaseSensitive)
	assert.Greater(t, cfg.BlobCacheBytes, int64(0))
}

func TestUT_CFG_03_LoadConfig_PartialFile_MergesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("catalog: memory\ncaseSensitive: false\n"), 0600))

	cfg := LoadConfig(path)
	assert.Equal(t, CatalogMemory, cfg.Catalog)
	assert.False(t, cfg.CaseSensitive)
	// Unset fields still get default values via mergo.
	assert.Equal(t, ContentStoreShardedFile, cfg.ContentStore)
	assert.Greater(t, cfg.CheckoutWorkers, 0)
}

func TestUT_CFG_04_LoadConfig_InvalidCatalogKind_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("catalog: not-a-real-kind\n"), 0600))

	cfg := LoadConfig(path)
	assert.Equal(t, CatalogShardedFile, cfg.Catalog)
}

func TestUT_CFG_05_WriteConfig_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yml")

	cfg := createDefaultConfig()
	cfg.Catalog = CatalogBuffered
	require.NoError(t, cfg.WriteConfig(path))

	loaded := LoadConfig(path)
	assert.Equal(t, CatalogBuffered, loaded.Catalog)
}
