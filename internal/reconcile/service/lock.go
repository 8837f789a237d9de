package service

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// keyedMutex serializes reconciliation passes per campaign within this
// process. Entries are reference-counted so the map does not grow with
// campaign count.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[snowflake.ID]*lockEntry{}}
}

// Lock blocks until the campaign lock is held and returns the unlock
// function.
func (k *keyedMutex) Lock(id snowflake.ID) func() {
	k.mu.Lock()
	entry, ok := k.locks[id]
	if !ok {
		entry = &lockEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
