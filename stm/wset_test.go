package stm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeebo/gostm/internal/pcg"
)

func TestFilterNoFalseNegatives(t *testing.T) {
	tm, err := New(nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, tm.Close()) }()
	tx := tm.InitThread()
	defer tx.Exit()

	words := make([]uint64, 1<<12)
	p := pcg.New(42, 7)

	var f filter
	picked := map[int]bool{}
	for i := 0; i < 256; i++ {
		n := p.Intn(len(words))
		picked[n] = true
		f.add(filterBits(&words[n]))
	}

	// a filter hit may be a false positive, but a miss must be exact
	for n := range picked {
		require.True(t, f.may(filterBits(&words[n])))
	}
}

func TestWriteSetFind(t *testing.T) {
	tm, err := New(nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, tm.Close()) }()
	tx := tm.InitThread()
	defer tx.Exit()

	words := make([]uint64, 1<<12)
	p := pcg.New(1, 2)

	seen := map[*uint64]bool{}
	for i := 0; i < 512; i++ {
		addr := &words[p.Intn(len(words))]
		if seen[addr] {
			continue
		}
		seen[addr] = true
		lock := tm.locks.get(addr)
		w := tx.appendWrite(addr, uint64(i), ^uint64(0), lock, 0)
		tx.ws.filter.add(filterBits(addr))
		require.True(t, w == &tx.ws.entries[len(tx.ws.entries)-1])
	}

	// the filter accelerated lookup agrees with the plain scan
	for i := range words {
		withFilter := tx.ws.find(&words[i], true)
		plain := tx.ws.find(&words[i], false)
		require.True(t, withFilter == plain)
		require.Equal(t, seen[&words[i]], plain != nil)
	}

	tx.ws.reset()
}

func TestWriteSetOwns(t *testing.T) {
	tm, err := New(nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, tm.Close()) }()
	tx := tm.InitThread()
	defer tx.Exit()

	words := make([]uint64, 8)
	for i := range words {
		addr := &words[i]
		tx.appendWrite(addr, 0, ^uint64(0), tm.locks.get(addr), 0)
	}

	for i := range tx.ws.entries {
		require.True(t, tx.ws.owns(lockAddr(ownedWord(&tx.ws.entries[i]))))
	}

	var outside wEntry
	require.False(t, tx.ws.owns(lockAddr(ownedWord(&outside))))

	tx.ws.reset()
	require.False(t, tx.ws.owns(lockAddr(ownedWord(&outside))))
}
