package stm

// Reason describes why a transaction rolled back.
type Reason uint32

const (
	// ValRead means a load observed a version newer than the snapshot and
	// the snapshot could not be extended over it.
	ValRead Reason = 1 << iota
	// ValWrite means a store hit a stripe newer than the snapshot after
	// the transaction had already read an older version of it.
	ValWrite
	// WWConflict means commit time lock acquisition found another owner.
	WWConflict
	// Validate means the revalidation between lock acquisition and
	// publication failed.
	Validate
	// ROWrite means a read only transaction attempted a store.
	ROWrite
	// Explicit means the caller aborted.
	Explicit
	// Killed means the contention policy gave up waiting on an owned
	// stripe.
	Killed
)

func (r Reason) String() string {
	switch r {
	case ValRead:
		return "validate-read"
	case ValWrite:
		return "validate-write"
	case WWConflict:
		return "write-write-conflict"
	case Validate:
		return "validate-commit"
	case ROWrite:
		return "read-only-write"
	case Explicit:
		return "explicit"
	case Killed:
		return "killed"
	}
	return "unknown"
}

// AbortError is returned from Atomic when a rolled back transaction does
// not retry: after an explicit Abort, or any rollback under Attr.NoRetry.
type AbortError struct {
	Reason Reason
}

func (e *AbortError) Error() string {
	return "stm: transaction aborted: " + e.Reason.String()
}

// txJump is the panic payload that unwinds a transaction body back to its
// Atomic retry loop after a rollback.
type txJump struct {
	tx     *Tx
	reason Reason
	retry  bool
}
