// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync implements synchronization primitives not in the standard library.
package xsync

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ErrBarrierBroken is returned by Barrier.Await after Barrier.Break is called.
var ErrBarrierBroken = errors.New("barrier broken")

// Barrier is a cyclic barrier: a fixed number of parties block in Await until all of them arrived,
// and then the barrier resets for the next round.
//
// It uses sync.Cond to coordinate changes.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	arrived    int
	generation uint64
	broken     bool
}

// NewBarrier creates a barrier for the given number of parties. It panics if parties < 1.
func NewBarrier(parties int) *Barrier {
	if parties < 1 {
		exceptions.Panicf("Barrier: invalid number of parties %d", parties)
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of parties the barrier waits for.
func (b *Barrier) Parties() int { return b.parties }

// Await blocks until all parties called Await in the current round.
//
// Each party's arrive is called while holding the barrier lock, so arrive functions never run concurrently.
// The last party to arrive also calls release, still holding the lock, before waking the others.
// Either function may be nil.
func (b *Barrier) Await(arrive, release func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken {
		return ErrBarrierBroken
	}
	if arrive != nil {
		arrive()
	}
	generation := b.generation
	b.arrived++
	if b.arrived == b.parties {
		if release != nil {
			release()
		}
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}
	// Loop is necessary because sync.Cond.Wait() can have spurious wakeups.
	for generation == b.generation && !b.broken {
		b.cond.Wait()
	}
	if generation == b.generation {
		return ErrBarrierBroken
	}
	return nil
}

// Break wakes every waiting party with ErrBarrierBroken, and makes all future Await calls fail.
func (b *Barrier) Break() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = true
	b.cond.Broadcast()
}
