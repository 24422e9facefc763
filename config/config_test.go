package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdex/matcher/types"
)

func TestLoadFallsBackToDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "matcher", cfg.Account)
	assert.Equal(t, uint64(1000), cfg.SnapshotsInterval)
}

func TestLoadReadsYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	content := []byte("account: custom-account\nsnapshotsInterval: 50\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "custom-account", cfg.Account)
	assert.Equal(t, uint64(50), cfg.SnapshotsInterval)
}

func TestBindFlagsOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Set("account", "flag-account"))

	cfg, err := Load(dir, fs)
	require.NoError(t, err)
	assert.Equal(t, "flag-account", cfg.Account)
}

func TestWatcherAppliesBlacklists(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.BlacklistedAssets = []string{"BTC"}
	cfg.BlacklistedAddresses = []string{"owner-one"}

	w := NewWatcher(cfg)
	_, blacklisted := w.BlacklistedAssets()[types.AssetID("BTC")]
	assert.True(t, blacklisted)
	assert.Len(t, w.BlacklistedAddresses(), 1)
}

func TestWatcherOnChangeFiresOnReload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("account: a\n"), 0o644))

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	w := NewWatcher(cfg)

	fired := make(chan struct{}, 1)
	w.OnChange(func() { fired <- struct{}{} })
	stop, err := w.Watch(dir, nil)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("account: b\nblacklistedAssets: [\"ETH\"]\n"), 0o644))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("OnChange listener did not fire after config file write")
	}
}
