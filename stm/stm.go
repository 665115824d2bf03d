package stm

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	atomics "go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/zeebo/gostm/epoch"
	"github.com/zeebo/gostm/internal/assert"
)

// TM is the shared transactional memory context: the lock table, the global
// version clock, the descriptor registry with its quiescence barrier, the
// reclaimer, and the module callbacks. Descriptors created from the same TM
// observe the same memory.
type TM struct {
	cfg        Config
	log        *zap.Logger
	locks      *lockTable
	clock      gclock
	rec        *epoch.Reclaimer
	cm         ContentionManager
	versionMax uint64
	useFilter  bool

	// registry and rollover barrier. held only outside transactions.
	qmu       sync.Mutex
	qcond     *sync.Cond
	quiescing bool
	threadsNb int
	threads   *Tx

	initCB      cbList
	exitCB      cbList
	startCB     cbList
	precommitCB cbList
	commitCB    cbList
	abortCB     cbList
	conflictCB  func(tx, enemy *Tx)

	nbSpecific atomics.Int32
	stats      tmStats
}

// New builds a context from the configuration. A nil cfg means defaults.
func New(cfg *Config) (*TM, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tm := &TM{
		cfg:       *cfg,
		log:       log,
		locks:     newLockTable(cfg.LockArrayBits, cfg.ShiftExtra, cfg.HashIndex),
		cm:        cfg.CM,
		useFilter: !cfg.NoFilter,
	}
	if tm.cm == nil {
		tm.cm = Suicide{SpinLimit: cfg.SpinLimit}
	}
	tm.versionMax = versionLimit(cfg.MaxThreads)
	if cfg.VersionMax != 0 {
		tm.versionMax = cfg.VersionMax
	}
	tm.qcond = sync.NewCond(&tm.qmu)
	tm.rec = epoch.New(tm.clock.get, cfg.MaxThreads)

	tm.log.Info("stm initialized",
		zap.String("design", "write-back (ctl)"),
		zap.String("cm", cmName(tm.cm)),
		zap.Int("lock_array_size", 1<<cfg.LockArrayBits),
		zap.Uint64("version_max", tm.versionMax),
	)
	return tm, nil
}

// Close tears the context down. Every descriptor must have exited.
func (tm *TM) Close() error {
	tm.qmu.Lock()
	n := tm.threadsNb
	tm.qmu.Unlock()
	if n != 0 {
		return errors.Errorf("stm: close with %d live descriptors", n)
	}
	tm.rec.Reset()
	tm.log.Info("stm closed",
		zap.Uint64("commits", tm.stats.commits.Load()),
		zap.Uint64("aborts", tm.stats.aborts.Load()),
		zap.Uint64("rollovers", tm.stats.rollovers.Load()),
	)
	return nil
}

// InitThread allocates and registers a descriptor. Every goroutine taking
// part in transactions needs its own; the descriptor is reused across all
// of that goroutine's transactions.
func (tm *TM) InitThread() *Tx {
	tx := &Tx{tm: tm, status: txIdle}
	tx.rs.entries = make([]rEntry, 0, tm.cfg.SetCapacity)
	tx.ws.entries = make([]wEntry, 0, tm.cfg.SetCapacity)
	tx.handle = tm.rec.AcquireHandle()

	tm.qmu.Lock()
	assert.That("descriptor count below the configured maximum", func() bool {
		return tm.threadsNb < tm.cfg.MaxThreads
	})
	tx.next = tm.threads
	tm.threads = tx
	tm.threadsNb++
	tm.qmu.Unlock()

	tm.initCB.run(tx)
	return tx
}

// Exit deregisters the descriptor. It must not be inside a transaction.
func (tx *Tx) Exit() {
	assert.That("exit outside of a transaction", func() bool {
		return tx.status != txActive
	})
	tm := tx.tm

	tm.exitCB.run(tx)

	tm.qmu.Lock()
	var prev *Tx
	t := tm.threads
	for t != tx {
		assert.That("descriptor is registered", func() bool { return t != nil })
		prev, t = t, t.next
	}
	if prev == nil {
		tm.threads = t.next
	} else {
		prev.next = t.next
	}
	tm.threadsNb--
	if tm.quiescing {
		// wake the barrier in case it is waiting on us
		tm.qcond.Signal()
	}
	tm.qmu.Unlock()

	// stale lock words may still point into the sets; keep them alive
	// until every snapshot has moved on
	rs, ws := tx.rs.entries, tx.ws.entries
	tm.rec.Retire(func() { _, _ = rs, ws })
	tm.rec.Leave(tx.handle)
	tm.rec.ReleaseHandle(tx.handle)
}

// quiesceBarrier blocks until every registered descriptor is blocked here,
// runs f exactly once, and releases everyone. Only used for clock rollover.
func (tm *TM) quiesceBarrier(tx *Tx, f func()) {
	assert.That("barrier entered outside of a transaction", func() bool {
		return tx == nil || tx.status != txActive
	})

	tm.qmu.Lock()
	tm.threadsNb--
	if !tm.quiescing {
		// first on the barrier
		tm.quiescing = true
	}
	for tm.quiescing {
		if tm.threadsNb == 0 {
			// everybody is blocked
			if f != nil {
				f()
			}
			tm.quiescing = false
			tm.qcond.Broadcast()
		} else {
			tm.qcond.Wait()
		}
	}
	tm.threadsNb++
	tm.qmu.Unlock()
}

// rollover resets the clock and zero fills the lock table. It runs with all
// descriptors blocked on the barrier, and must be extremely rare.
func (tm *TM) rollover() {
	tm.stats.rollovers.Inc()
	tm.log.Warn("version clock rollover",
		zap.Uint64("version_max", tm.versionMax),
	)
	tm.clock.reset()
	tm.locks.reset()
	tm.rec.Reset()
}

// conflict reports a conflict with an identifiable owner to the registered
// callback. Unit store races are deliberately not tracked.
func (tm *TM) conflict(tx *Tx, l uint64) {
	cb := tm.conflictCB
	if cb == nil || l == lockUnit || !lockOwned(l) {
		return
	}
	w := (*wEntry)(unsafe.Pointer(lockAddr(l)))
	cb(tx, w.owner)
}

// slowdown records that the contention policy gave up on an owned stripe.
func (tm *TM) slowdown(tx *Tx, l uint64) {
	tm.log.Warn("slowdown: giving up on owned stripe",
		zap.Uint64("lock", l),
		zap.Uint64("retries", tx.retries),
	)
}

// Clock returns the current value of the global version clock.
func (tm *TM) Clock() uint64 { return tm.clock.get() }

// CreateSpecific reserves a per descriptor data slot.
func (tm *TM) CreateSpecific() (int, error) {
	n := tm.nbSpecific.Inc()
	if n > maxSpecific {
		tm.nbSpecific.Dec()
		return 0, errors.New("stm: maximum number of specific slots reached")
	}
	return int(n - 1), nil
}

// Parameter returns build parameters by name, mirroring the stats
// interface. It returns false for unknown names.
func (tm *TM) Parameter(name string) (interface{}, bool) {
	switch name {
	case "design":
		return "write-back (ctl)", true
	case "contention_manager":
		return cmName(tm.cm), true
	case "initial_rw_set_size":
		return tm.cfg.SetCapacity, true
	case "lock_array_size":
		return 1 << tm.cfg.LockArrayBits, true
	case "version_max":
		return tm.versionMax, true
	}
	return nil, false
}

func cmName(cm ContentionManager) string {
	if s, ok := cm.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", cm)
}
