package stm

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.Validate())
		require.Equal(t, defaultSetCapacity, cfg.SetCapacity)
		require.Equal(t, uint(defaultLockArrayBits), cfg.LockArrayBits)
	})

	t.Run("FromFile", func(t *testing.T) {
		dir, err := ioutil.TempDir("", "gostm")
		require.NoError(t, err)
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "stm.toml")
		require.NoError(t, ioutil.WriteFile(path, []byte(`
set-capacity = 64
lock-array-bits = 10
shift-extra = 0
hash-index = true
spin-limit = 100
version-max = 1024
`), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.FromFile(path))
		require.NoError(t, cfg.Validate())
		require.Equal(t, 64, cfg.SetCapacity)
		require.Equal(t, uint(10), cfg.LockArrayBits)
		require.Equal(t, uint(0), cfg.ShiftExtra)
		require.True(t, cfg.HashIndex)
		require.Equal(t, 100, cfg.SpinLimit)
		require.Equal(t, uint64(1024), cfg.VersionMax)
	})

	t.Run("FromFileMissing", func(t *testing.T) {
		cfg := DefaultConfig()
		require.Error(t, cfg.FromFile("does-not-exist.toml"))
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, mod := range []func(*Config){
			func(c *Config) { c.SetCapacity = 0 },
			func(c *Config) { c.LockArrayBits = 1 },
			func(c *Config) { c.LockArrayBits = 48 },
			func(c *Config) { c.SpinLimit = -1 },
			func(c *Config) { c.MaxThreads = 0 },
			func(c *Config) { c.VersionMax = ^uint64(0) },
		} {
			cfg := DefaultConfig()
			mod(cfg)
			require.Error(t, cfg.Validate())
		}
	})
}
