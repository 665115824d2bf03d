package stm

// Callback is a module hook. Callbacks run on the descriptor's goroutine.
type Callback func(tx *Tx, arg interface{})

// Callbacks bundles the module hooks for Register. Nil hooks are skipped.
type Callbacks struct {
	OnInitThread Callback
	OnExitThread Callback
	OnStart      Callback
	OnPrecommit  Callback
	OnCommit     Callback
	OnAbort      Callback
	Arg          interface{}
}

type callback struct {
	fn  Callback
	arg interface{}
}

// cbList is a fixed size hook list. Arrays rather than slices for cache
// locality on the commit path.
type cbList struct {
	cbs [maxCallbacks]callback
	n   int
}

func (l *cbList) full(fn Callback) bool {
	return fn != nil && l.n >= maxCallbacks
}

func (l *cbList) add(fn Callback, arg interface{}) {
	if fn == nil {
		return
	}
	l.cbs[l.n] = callback{fn: fn, arg: arg}
	l.n++
}

func (l *cbList) run(tx *Tx) {
	for i := 0; i < l.n; i++ {
		l.cbs[i].fn(tx, l.cbs[i].arg)
	}
}

// Register installs module callbacks. It must be called before any
// descriptor runs transactions. It returns false, installing nothing, when
// any requested hook is full.
func (tm *TM) Register(cbs Callbacks) bool {
	if tm.initCB.full(cbs.OnInitThread) ||
		tm.exitCB.full(cbs.OnExitThread) ||
		tm.startCB.full(cbs.OnStart) ||
		tm.precommitCB.full(cbs.OnPrecommit) ||
		tm.commitCB.full(cbs.OnCommit) ||
		tm.abortCB.full(cbs.OnAbort) {
		return false
	}

	tm.initCB.add(cbs.OnInitThread, cbs.Arg)
	tm.exitCB.add(cbs.OnExitThread, cbs.Arg)
	tm.startCB.add(cbs.OnStart, cbs.Arg)
	tm.precommitCB.add(cbs.OnPrecommit, cbs.Arg)
	tm.commitCB.add(cbs.OnCommit, cbs.Arg)
	tm.abortCB.add(cbs.OnAbort, cbs.Arg)
	return true
}

// SetConflictCB installs a callback invoked when a transaction aborts on a
// conflict with an identifiable owner. It must be set before transactions
// run. Races with unit stores are not reported.
func (tm *TM) SetConflictCB(fn func(tx, enemy *Tx)) {
	tm.conflictCB = fn
}
