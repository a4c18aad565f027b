// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package emulator

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ffutop/modbus-emulator/internal/emulator/model"
)

// MutationSpec describes a periodic random write. Registers receive values
// uniformly drawn from [Min, Max]; bits receive random booleans.
type MutationSpec struct {
	Interval time.Duration
	Min      int
	Max      int
}

func (s MutationSpec) validate(kind model.RegisterKind) error {
	if s.Interval <= 0 {
		return fmt.Errorf("emulator: mutation interval must be positive, got %v", s.Interval)
	}
	if kind.IsBit() {
		return nil
	}
	if s.Min < 0 || s.Max > model.MaxValue || s.Min > s.Max {
		return fmt.Errorf("emulator: mutation range [%d, %d] invalid", s.Min, s.Max)
	}
	return nil
}

type mutationKey struct {
	kind    model.RegisterKind
	address uint16
}

type mutation struct {
	cancelled atomic.Bool
	done      chan struct{}
}

func (m *mutation) cancel() {
	if m.cancelled.CompareAndSwap(false, true) {
		close(m.done)
	}
}

// scheduler runs one goroutine per mutation. Writes happen under lock and
// re-check cancellation after acquiring it, so no write lands after stop
// returns.
type scheduler struct {
	mu    sync.Mutex
	tasks map[mutationKey]*mutation

	lock  sync.Locker
	rand  *rand.Rand
	write func(kind model.RegisterKind, address uint16, value int)
}

func newScheduler(lock sync.Locker, r *rand.Rand, write func(model.RegisterKind, uint16, int)) *scheduler {
	return &scheduler{
		tasks: make(map[mutationKey]*mutation),
		lock:  lock,
		rand:  r,
		write: write,
	}
}

func (s *scheduler) start(kind model.RegisterKind, address uint16, spec MutationSpec) {
	key := mutationKey{kind: kind, address: address}
	m := &mutation{done: make(chan struct{})}

	s.mu.Lock()
	if prev, ok := s.tasks[key]; ok {
		prev.cancel()
	}
	s.tasks[key] = m
	s.mu.Unlock()

	go s.run(key, m, spec)
}

func (s *scheduler) run(key mutationKey, m *mutation, spec MutationSpec) {
	ticker := time.NewTicker(spec.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			s.lock.Lock()
			if !m.cancelled.Load() {
				s.write(key.kind, key.address, s.next(key.kind, spec))
			}
			s.lock.Unlock()
		}
	}
}

// next draws a value. Caller must hold lock.
func (s *scheduler) next(kind model.RegisterKind, spec MutationSpec) int {
	if kind.IsBit() {
		return s.rand.Intn(2)
	}
	return spec.Min + s.rand.Intn(spec.Max-spec.Min+1)
}

func (s *scheduler) stop(kind model.RegisterKind, address uint16) bool {
	key := mutationKey{kind: kind, address: address}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tasks[key]
	if !ok {
		return false
	}
	m.cancel()
	delete(s.tasks, key)
	return true
}

func (s *scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.tasks {
		m.cancel()
		delete(s.tasks, key)
	}
}

func (s *scheduler) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
