package stm

import (
	atomics "go.uber.org/atomic"
)

// txStats are per descriptor counters. The descriptor is single threaded,
// so plain fields suffice; the TM wide aggregates are atomic.
type txStats struct {
	commits        uint64
	aborts         uint64
	aborts1        uint64
	aborts2        uint64
	abortsRO       uint64
	abortsValRead  uint64
	abortsValWrite uint64
	abortsLocked   uint64
	abortsValidate uint64
	abortsKilled   uint64
	maxRetries     uint64
}

func (tx *Tx) countAbort(reason Reason) {
	s := &tx.stats
	s.aborts++
	if tx.retries == 1 {
		s.aborts1++
	} else if tx.retries == 2 {
		s.aborts2++
	}
	if tx.retries > s.maxRetries {
		s.maxRetries = tx.retries
	}
	switch {
	case reason&ROWrite != 0:
		s.abortsRO++
	case reason&ValRead != 0:
		s.abortsValRead++
	case reason&ValWrite != 0:
		s.abortsValWrite++
	case reason&WWConflict != 0:
		s.abortsLocked++
	case reason&Validate != 0:
		s.abortsValidate++
	case reason&Killed != 0:
		s.abortsKilled++
	}
}

// Stat reads one named descriptor counter. It returns false for unknown
// names. The names follow the historical stats interface.
func (tx *Tx) Stat(name string) (uint64, bool) {
	switch name {
	case "read_set_size":
		return uint64(cap(tx.rs.entries)), true
	case "write_set_size":
		return uint64(cap(tx.ws.entries)), true
	case "read_set_nb_entries":
		return uint64(len(tx.rs.entries)), true
	case "write_set_nb_entries":
		return uint64(len(tx.ws.entries)), true
	case "read_only":
		if tx.ro {
			return 1, true
		}
		return 0, true
	case "nb_commits":
		return tx.stats.commits, true
	case "nb_aborts":
		return tx.stats.aborts, true
	case "nb_aborts_1":
		return tx.stats.aborts1, true
	case "nb_aborts_2":
		return tx.stats.aborts2, true
	case "nb_aborts_ro":
		return tx.stats.abortsRO, true
	case "nb_aborts_validate_read":
		return tx.stats.abortsValRead, true
	case "nb_aborts_validate_write":
		return tx.stats.abortsValWrite, true
	case "nb_aborts_locked_write":
		return tx.stats.abortsLocked, true
	case "nb_aborts_validate_commit":
		return tx.stats.abortsValidate, true
	case "nb_aborts_killed":
		return tx.stats.abortsKilled, true
	case "max_retries":
		return tx.stats.maxRetries, true
	}
	return 0, false
}

// tmStats aggregate across descriptors.
type tmStats struct {
	commits   atomics.Uint64
	aborts    atomics.Uint64
	rollovers atomics.Uint64
}

// Stat reads one named process wide counter.
func (tm *TM) Stat(name string) (uint64, bool) {
	switch name {
	case "nb_commits":
		return tm.stats.commits.Load(), true
	case "nb_aborts":
		return tm.stats.aborts.Load(), true
	case "nb_rollovers":
		return tm.stats.rollovers.Load(), true
	}
	return 0, false
}
