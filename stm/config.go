package stm

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zeebo/gostm/machine"
)

const (
	defaultSetCapacity   = 4096
	defaultLockArrayBits = 20
	defaultShiftExtra    = 2
	defaultSpinLimit     = 1 << 14

	maxCallbacks = 16
	maxSpecific  = 16
)

// Config carries the tunables for a TM. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// SetCapacity is the initial number of entries in the per descriptor
	// read and write sets. Sets grow by doubling.
	SetCapacity int `toml:"set-capacity"`

	// LockArrayBits sizes the lock table at 2^bits lock words.
	LockArrayBits uint `toml:"lock-array-bits"`

	// ShiftExtra widens a stripe: 2^extra adjacent words share one lock.
	ShiftExtra uint `toml:"shift-extra"`

	// HashIndex scatters the stripe to lock mapping with a hash instead of
	// the plain shift and mask, so adjacent stripes do not map to
	// neighboring table slots.
	HashIndex bool `toml:"hash-index"`

	// NoFilter disables the write set bloom filter.
	NoFilter bool `toml:"no-filter"`

	// SpinLimit bounds how long a load or store waits on an owned stripe
	// before the default contention policy gives up. Zero waits forever.
	SpinLimit int `toml:"spin-limit"`

	// MaxThreads bounds the number of live descriptors.
	MaxThreads int `toml:"max-threads"`

	// VersionMax overrides the clock value that forces a rollover. Zero
	// picks the largest value the lock word encoding allows.
	VersionMax uint64 `toml:"version-max"`

	// CM overrides the contention policy. Defaults to Suicide bounded by
	// SpinLimit.
	CM ContentionManager `toml:"-"`

	// Logger receives lifecycle and slowdown events. Defaults to a nop.
	Logger *zap.Logger `toml:"-"`
}

// DefaultConfig returns the configuration every real deployment starts
// from.
func DefaultConfig() *Config {
	return &Config{
		SetCapacity:   defaultSetCapacity,
		LockArrayBits: defaultLockArrayBits,
		ShiftExtra:    defaultShiftExtra,
		SpinLimit:     defaultSpinLimit,
		MaxThreads:    machine.MaxThreads,
	}
}

// FromFile overlays the receiver with values from a TOML file.
func (c *Config) FromFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return errors.Wrapf(err, "load config %q", path)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.SetCapacity <= 0 {
		return errors.Errorf("set capacity must be positive: %d", c.SetCapacity)
	}
	if c.LockArrayBits < 2 || c.LockArrayBits > 30 {
		return errors.Errorf("lock array bits out of range: %d", c.LockArrayBits)
	}
	if c.SpinLimit < 0 {
		return errors.Errorf("spin limit must not be negative: %d", c.SpinLimit)
	}
	if c.MaxThreads <= 0 || c.MaxThreads > machine.MaxThreads {
		return errors.Errorf("max threads out of range: %d", c.MaxThreads)
	}
	if c.VersionMax > versionLimit(c.MaxThreads) {
		return errors.Errorf("version max too large for the lock encoding: %d", c.VersionMax)
	}
	return nil
}

// versionLimit is the largest version the lock encoding can carry, less
// slack for committers that overshoot the rollover threshold.
func versionLimit(maxThreads int) uint64 {
	return (^uint64(0) >> lockBits) - uint64(maxThreads)
}
