// Package statebus shares the live fix state between the single ingest writer
// and any number of readers (HTTP handlers, stream subscribers).
//
// The whole fix.State, including the satellite set, is guarded by one lock.
// Readers always receive deep copies.
package statebus

import (
	"sync"

	"satscope/internal/fix"
)

type Bus struct {
	mu      sync.RWMutex
	state   *fix.State
	version uint64

	subMu  sync.Mutex
	subs   map[int]chan uint64
	nextID int
}

func New(initial *fix.State) *Bus {
	if initial == nil {
		initial = fix.New()
	}
	return &Bus{
		state: initial,
		subs:  make(map[int]chan uint64),
	}
}

// Update runs fn with exclusive access to the state. When fn reports a change
// the version is bumped and subscribers are notified.
func (b *Bus) Update(fn func(st *fix.State) bool) bool {
	if b == nil || fn == nil {
		return false
	}
	b.mu.Lock()
	changed := fn(b.state)
	if changed {
		b.version++
	}
	v := b.version
	b.mu.Unlock()

	if changed {
		b.notify(v)
	}
	return changed
}

// Snapshot returns a copy of the current state and its version.
func (b *Bus) Snapshot() (fix.State, uint64) {
	if b == nil {
		return *fix.New(), 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Clone(), b.version
}

// Version returns the number of changes published so far.
func (b *Bus) Version() uint64 {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Subscribe returns a channel that receives the new version after each change.
// Slow subscribers miss intermediate versions rather than block the writer.
func (b *Bus) Subscribe(buffer int) (int, <-chan uint64) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan uint64, buffer)
	b.subMu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.subMu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.subMu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.subMu.Unlock()
}

func (b *Bus) notify(v uint64) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}
