// Package stm is a word granularity software transactional memory runtime.
//
// Shared memory is striped over a table of versioned lock words, and
// transactions run speculatively against a snapshot of a global version
// clock. Writes are buffered and the locks for written stripes are only
// acquired at commit time; readers validate against the moving snapshot and
// losers roll back and silently retry (the observing transaction always
// gives way).
//
// A TM value holds all shared state. Every goroutine that takes part in
// transactions registers a descriptor and runs bodies through Atomic:
//
//	tm, _ := stm.New(nil)
//	tx := tm.InitThread()
//	defer tx.Exit()
//
//	err := tx.Atomic(stm.Attr{}, func() {
//		v := tx.Load(&account[0])
//		tx.Store(&account[0], v-1)
//		v = tx.Load(&account[1])
//		tx.Store(&account[1], v+1)
//	})
//
// The body may run many times, so it must be idempotent up to its
// transactional loads and stores. Load and Store never return stale or torn
// values: every value observed inside a body belongs to one consistent
// snapshot of memory, even in bodies that later roll back.
//
// Descriptors are not safe for concurrent use. All memory accessed through
// Load and Store must be word sized and accessed only transactionally while
// transactions are running.
package stm
