// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package local implements an in-process backend, where each rank of a distributed computation is a goroutine
// and collective operations synchronize through a shared barrier.
//
// Import it for its side effect of registering the "local" backend:
//
//	import _ "github.com/gp1322719830/ngraph/backends/local"
package local

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gp1322719830/ngraph/backends"
	"github.com/gp1322719830/ngraph/pkg/support/xsync"
	"github.com/pkg/errors"
)

// BackendName to be used in NGRAPH_BACKEND to specify this backend.
const BackendName = "local"

// Registers New() as the default constructor for "local" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new local Backend.
//
// The config is a comma-separated list of options. The only option is "world=<n>", the number of ranks,
// which defaults to 1. It panics on invalid options.
func New(config string) backends.Backend {
	world := 1
	for _, option := range strings.Split(config, ",") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		key, value, _ := strings.Cut(option, "=")
		switch key {
		case "world":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				exceptions.Panicf("invalid option %q for backend %q: world must be a positive integer", option, BackendName)
			}
			world = n
		default:
			exceptions.Panicf("unknown option %q for backend %q", option, BackendName)
		}
	}
	return NewBackend(world)
}

// NewBackend creates a local backend with world ranks.
func NewBackend(world int) *Backend {
	return &Backend{world: world, barrier: xsync.NewBarrier(world)}
}

// Backend implements the backends.Backend interface.
type Backend struct {
	world     int
	barrier   *xsync.Barrier
	finalized atomic.Bool

	// current is the collective operation being assembled, guarded by the barrier lock.
	current *reduction
}

// Compile-time check that local.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// Name implements backends.Backend.
func (b *Backend) Name() string { return BackendName }

// Description implements backends.Backend.
func (b *Backend) Description() string {
	return fmt.Sprintf("In-process backend with %d rank(s)", b.world)
}

// NumRanks implements backends.Backend.
func (b *Backend) NumRanks() int { return b.world }

// Distributed implements backends.Backend.
func (b *Backend) Distributed(rank int) (backends.Distributed, error) {
	if b.finalized.Load() {
		return nil, errors.Errorf("backend %q has already been finalized", BackendName)
	}
	if rank < 0 || rank >= b.world {
		return nil, errors.Errorf("rank %d out of range for backend %q with %d rank(s)", rank, BackendName, b.world)
	}
	return &rankView{backend: b, rank: rank}, nil
}

// Finalize implements backends.Backend.
func (b *Backend) Finalize() {
	if b.finalized.Swap(true) {
		return
	}
	b.barrier.Break()
}

// Run calls fn concurrently once per rank, each in its own goroutine, and waits for all of them.
// It returns the error of the lowest rank that failed.
func (b *Backend) Run(fn func(distributed backends.Distributed) error) error {
	errs := make([]error, b.world)
	var wg sync.WaitGroup
	for rank := range b.world {
		distributed, err := b.Distributed(rank)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[rank] = fn(distributed)
		}()
	}
	wg.Wait()
	for rank, err := range errs {
		if err != nil {
			return errors.WithMessagef(err, "rank %d", rank)
		}
	}
	return nil
}

// rankView implements backends.Distributed for one rank.
type rankView struct {
	backend *Backend
	rank    int
}

func (r *rankView) Rank() int { return r.rank }
func (r *rankView) WorldSize() int { return r.backend.world }

// AllReduce implements backends.Distributed.
func (r *rankView) AllReduce(in, out *backends.Buffer, op backends.ReduceOp) error {
	if op < backends.ReduceOpSum || op > backends.ReduceOpMax {
		return errors.Errorf("invalid AllReduce reduction %d", op)
	}
	if !in.SameType(out) {
		return errors.Errorf("AllReduce input %s and output %s must have the same type", in, out)
	}
	values, err := decode(in)
	if err != nil {
		return err
	}
	b := r.backend
	var red *reduction
	err = b.barrier.Await(
		func() {
			if b.current == nil {
				b.current = &reduction{op: op, template: in}
			}
			red = b.current
			red.add(in, values, op)
		},
		func() {
			b.current = nil
			red.finish()
		})
	if err != nil {
		return errors.Wrapf(err, "AllReduce on rank %d", r.rank)
	}
	if red.err != nil {
		return red.err
	}
	copy(out.Data, red.result)
	return nil
}
