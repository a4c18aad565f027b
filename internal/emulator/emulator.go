// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package emulator implements a Modbus RTU slave that answers complete
// frames from an in-memory register model.
//
// An Emulator performs no locking of its own. Callers that use it from
// several goroutines, including the mutation scheduler, serialize access
// with the sync.Locker passed in Options.
package emulator

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/ffutop/modbus-emulator/internal/emulator/model"
	"github.com/ffutop/modbus-emulator/modbus"
)

var (
	// ErrDestroyed is returned by operations on a destroyed emulator.
	ErrDestroyed = errors.New("emulator: destroyed")
	// ErrUnitAddress reports a unit address outside 0..247.
	ErrUnitAddress = errors.New("emulator: unit address out of range")
)

// Options configures a new Emulator.
type Options struct {
	// UnitAddress is the slave address, 0..247.
	UnitAddress int
	// Lock is held while a mutation writes to the model. It must be the
	// same lock the caller holds around HandleRequest.
	Lock sync.Locker
	// Now reports the host time the controller clock is derived from.
	Now func() time.Time
	// Seed seeds the mutation value generator. Zero picks a time based seed.
	Seed int64
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// RegisterDefinition loads consecutive values starting at Address.
// Bit spaces store value != 0.
type RegisterDefinition struct {
	Kind    model.RegisterKind
	Address int
	Values  []int
}

// Emulator is a simulated Modbus slave.
type Emulator struct {
	unitAddress byte
	connected   bool
	destroyed   bool

	model      *model.DataModel
	exceptions *model.ExceptionTable
	profile    *profile
	scheduler  *scheduler

	now func() time.Time
	log *slog.Logger
}

// New creates a disconnected emulator.
func New(opts Options) (*Emulator, error) {
	if opts.UnitAddress < 0 || opts.UnitAddress > modbus.MaxUnitAddress {
		return nil, fmt.Errorf("%w: %d", ErrUnitAddress, opts.UnitAddress)
	}
	if opts.Lock == nil {
		opts.Lock = &sync.Mutex{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Emulator{
		unitAddress: byte(opts.UnitAddress),
		model:       model.NewDataModel(),
		exceptions:  model.NewExceptionTable(),
		profile:     newProfile(),
		now:         opts.Now,
		log:         opts.Logger.With("unit", opts.UnitAddress),
	}
	e.scheduler = newScheduler(opts.Lock, rand.New(rand.NewSource(opts.Seed)), e.mutate)
	return e, nil
}

// UnitAddress returns the slave address.
func (e *Emulator) UnitAddress() byte {
	return e.unitAddress
}

// Connect makes the emulator answer frames. It has no effect once the
// emulator is destroyed.
func (e *Emulator) Connect() {
	if e.destroyed {
		return
	}
	e.connected = true
}

// Disconnect makes HandleRequest drop every frame.
func (e *Emulator) Disconnect() {
	e.connected = false
}

func (e *Emulator) Connected() bool {
	return e.connected
}

func (e *Emulator) Set(kind model.RegisterKind, address, value int) error {
	if e.destroyed {
		return ErrDestroyed
	}
	return e.model.Set(kind, address, value)
}

func (e *Emulator) Get(kind model.RegisterKind, address int) (int, error) {
	return e.model.Get(kind, address)
}

// Typed setters are no-ops once the emulator is destroyed.
func (e *Emulator) SetCoil(address uint16, value bool) {
	if !e.destroyed {
		e.model.SetCoil(address, value)
	}
}

func (e *Emulator) SetDiscreteInput(address uint16, value bool) {
	if !e.destroyed {
		e.model.SetDiscreteInput(address, value)
	}
}

func (e *Emulator) SetHoldingRegister(address, value uint16) {
	if !e.destroyed {
		e.model.SetHoldingRegister(address, value)
	}
}

func (e *Emulator) SetInputRegister(address, value uint16) {
	if !e.destroyed {
		e.model.SetInputRegister(address, value)
	}
}

func (e *Emulator) GetCoil(address uint16) bool              { return e.model.GetCoil(address) }
func (e *Emulator) GetDiscreteInput(address uint16) bool     { return e.model.GetDiscreteInput(address) }
func (e *Emulator) GetHoldingRegister(address uint16) uint16 { return e.model.GetHoldingRegister(address) }
func (e *Emulator) GetInputRegister(address uint16) uint16   { return e.model.GetInputRegister(address) }

// AddRegisters loads every definition. Definitions are validated first so
// that a bad entry leaves the model untouched.
func (e *Emulator) AddRegisters(defs []RegisterDefinition) error {
	if e.destroyed {
		return ErrDestroyed
	}
	scratch := model.NewDataModel()
	for i, def := range defs {
		for j, v := range def.Values {
			if err := scratch.Set(def.Kind, def.Address+j, v); err != nil {
				return fmt.Errorf("register definition %d: %w", i, err)
			}
		}
	}
	for _, def := range defs {
		for j, v := range def.Values {
			_ = e.model.Set(def.Kind, def.Address+j, v)
		}
	}
	return nil
}

// SetException makes requests of function touching address fail with code.
func (e *Emulator) SetException(function byte, address uint16, code modbus.ExceptionCode) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if !code.Valid() {
		return fmt.Errorf("emulator: %v", code)
	}
	e.exceptions.Set(function, address, code)
	return nil
}

// RemoveException deletes a single rule.
func (e *Emulator) RemoveException(function byte, address uint16) {
	e.exceptions.Remove(function, address)
}

func (e *Emulator) ClearExceptions() {
	e.exceptions.Clear()
}

// Exceptions returns the injected faults in a stable order.
func (e *Emulator) Exceptions() []model.ExceptionRule {
	return e.exceptions.Rules()
}

// ClearAllRegisters resets all four spaces to their defaults.
func (e *Emulator) ClearAllRegisters() {
	e.model.Clear()
}

func (e *Emulator) GetRegisterDump() model.Dump {
	return e.model.Dump()
}

func (e *Emulator) GetRegisterStats() model.Stats {
	return e.model.Stats()
}

// StartMutation periodically overwrites (kind, address) with random values.
// It replaces any mutation already running for the same register.
func (e *Emulator) StartMutation(kind model.RegisterKind, address uint16, spec MutationSpec) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if err := spec.validate(kind); err != nil {
		return err
	}
	e.scheduler.start(kind, address, spec)
	return nil
}

// StopMutation cancels the mutation of (kind, address). It reports whether
// one was running.
func (e *Emulator) StopMutation(kind model.RegisterKind, address uint16) bool {
	return e.scheduler.stop(kind, address)
}

// Mutations returns the number of running mutations.
func (e *Emulator) Mutations() int {
	return e.scheduler.len()
}

func (e *Emulator) mutate(kind model.RegisterKind, address uint16, value int) {
	if err := e.model.Set(kind, int(address), value); err != nil {
		e.log.Warn("mutation failed", "kind", kind, "address", address, "err", err)
	}
}

// Destroy cancels every mutation, disconnects and clears all state. It is
// terminal and safe to call more than once.
func (e *Emulator) Destroy() {
	if e.destroyed {
		return
	}
	e.scheduler.stopAll()
	e.Disconnect()
	e.model.Clear()
	e.exceptions.Clear()
	e.profile = newProfile()
	e.destroyed = true
}
