// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package bus puts several emulators behind one set of upstream servers.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ffutop/modbus-emulator/internal/emulator"
	"github.com/ffutop/modbus-emulator/modbus"
	"github.com/ffutop/modbus-emulator/transport"
)

// Bus routes RTU frames to the emulator owning the frame's unit address.
// It holds one mutex around every request; emulators sharing the bus must
// be created with Locker() as their Options.Lock.
type Bus struct {
	Name      string
	Upstreams []transport.Upstream

	mu    sync.Mutex
	units map[byte]*emulator.Emulator
}

// New creates an empty bus.
func New(name string, upstreams []transport.Upstream) *Bus {
	return &Bus{
		Name:      name,
		Upstreams: upstreams,
		units:     make(map[byte]*emulator.Emulator),
	}
}

// Locker returns the lock serializing requests and mutations on the bus.
func (b *Bus) Locker() sync.Locker {
	return &b.mu
}

// Add attaches e under its unit address.
func (b *Bus) Add(e *emulator.Emulator) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := e.UnitAddress()
	if id == modbus.BroadcastAddress {
		return fmt.Errorf("bus %s: unit address 0 is reserved for broadcast", b.Name)
	}
	if _, ok := b.units[id]; ok {
		return fmt.Errorf("bus %s: unit %d already attached", b.Name, id)
	}
	b.units[id] = e
	return nil
}

// Units returns the attached unit addresses in ascending order.
func (b *Bus) Units() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]byte, 0, len(b.units))
	for id := range b.units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Do runs fn with the emulator of unit id while holding the bus lock.
func (b *Bus) Do(id byte, fn func(e *emulator.Emulator)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.units[id]
	if !ok {
		return fmt.Errorf("bus %s: no unit %d", b.Name, id)
	}
	fn(e)
	return nil
}

// HandleRequest implements transport.FrameHandler. Broadcast frames reach
// every emulator and are never answered.
func (b *Bus) HandleRequest(frame []byte) []byte {
	if len(frame) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := frame[0]
	if id == modbus.BroadcastAddress {
		for _, e := range b.units {
			e.HandleRequest(frame)
		}
		return nil
	}
	e, ok := b.units[id]
	if !ok {
		slog.Debug("No emulator for unit", "bus", b.Name, "unit", id)
		return nil
	}
	return e.HandleRequest(frame)
}

// ParseSlaveIDs parses a string of slave IDs (e.g. "1,2,5-10") into a slice of bytes.
func ParseSlaveIDs(input string) ([]byte, error) {
	var ids []byte
	parts := strings.Split(input, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			// Range
			ranges := strings.Split(part, "-")
			if len(ranges) != 2 {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(ranges[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start of range: %w", err)
			}
			end, err := strconv.Atoi(strings.TrimSpace(ranges[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end of range: %w", err)
			}
			if start > end {
				return nil, fmt.Errorf("start of range %d is greater than end %d", start, end)
			}
			for i := start; i <= end; i++ {
				if i < 1 || i > modbus.MaxUnitAddress {
					return nil, fmt.Errorf("id out of range: %d", i)
				}
				ids = append(ids, byte(i))
			}
		} else {
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid id: %w", err)
			}
			if id < 1 || id > modbus.MaxUnitAddress {
				return nil, fmt.Errorf("id out of range: %d", id)
			}
			ids = append(ids, byte(id))
		}
	}
	return ids, nil
}

// Start serves every upstream until ctx is cancelled, then closes the
// upstreams and destroys the emulators.
func (b *Bus) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for i, us := range b.Upstreams {
		wg.Add(1)
		go func(ups transport.Upstream, idx int) {
			defer wg.Done()
			slog.Info("Starting upstream", "bus", b.Name, "index", idx)
			if err := ups.Start(ctx, b); err != nil {
				slog.Error("Upstream stopped with error", "bus", b.Name, "index", idx, "err", err)
			}
		}(us, i)
	}

	<-ctx.Done()

	// Graceful shutdown
	for _, us := range b.Upstreams {
		us.Close()
	}
	wg.Wait()
	b.Close()
	return nil
}

// Close destroys every attached emulator.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, e := range b.units {
		e.Destroy()
		delete(b.units, id)
	}
}
