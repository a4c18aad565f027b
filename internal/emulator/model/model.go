// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	MaxAddress = 65535
	MaxValue   = 65535
)

var (
	// ErrAddress reports an address, or the end of a range, outside 0..65535.
	ErrAddress = errors.New("address out of range")
	// ErrValue reports a register value outside 0..65535.
	ErrValue = errors.New("value out of range")
)

// RegisterKind selects one of the four address spaces.
type RegisterKind int

const (
	KindCoil RegisterKind = iota
	KindDiscreteInput
	KindHoldingRegister
	KindInputRegister
)

var kindNames = map[RegisterKind]string{
	KindCoil:            "coil",
	KindDiscreteInput:   "discrete",
	KindHoldingRegister: "holding",
	KindInputRegister:   "input",
}

func (k RegisterKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsBit reports whether the kind stores booleans.
func (k RegisterKind) IsBit() bool {
	return k == KindCoil || k == KindDiscreteInput
}

// ParseRegisterKind accepts the names printed by String plus a few common
// aliases.
func ParseRegisterKind(s string) (RegisterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coil", "coils":
		return KindCoil, nil
	case "discrete", "discrete_input", "discrete_inputs", "di":
		return KindDiscreteInput, nil
	case "holding", "holding_register", "holding_registers", "hr":
		return KindHoldingRegister, nil
	case "input", "input_register", "input_registers", "ir":
		return KindInputRegister, nil
	}
	return 0, fmt.Errorf("unknown register kind %q", s)
}

// DataModel holds the four sparse address spaces. Unset addresses read as
// false or 0. It performs no locking.
type DataModel struct {
	coils            map[uint16]bool
	discreteInputs   map[uint16]bool
	holdingRegisters map[uint16]uint16
	inputRegisters   map[uint16]uint16
}

// NewDataModel creates an empty model.
func NewDataModel() *DataModel {
	m := &DataModel{}
	m.Clear()
	return m
}

// Clear drops every stored value.
func (m *DataModel) Clear() {
	m.coils = make(map[uint16]bool)
	m.discreteInputs = make(map[uint16]bool)
	m.holdingRegisters = make(map[uint16]uint16)
	m.inputRegisters = make(map[uint16]uint16)
}

func (m *DataModel) bits(kind RegisterKind) (map[uint16]bool, error) {
	switch kind {
	case KindCoil:
		return m.coils, nil
	case KindDiscreteInput:
		return m.discreteInputs, nil
	}
	return nil, fmt.Errorf("%v is not a bit space", kind)
}

func (m *DataModel) words(kind RegisterKind) (map[uint16]uint16, error) {
	switch kind {
	case KindHoldingRegister:
		return m.holdingRegisters, nil
	case KindInputRegister:
		return m.inputRegisters, nil
	}
	return nil, fmt.Errorf("%v is not a register space", kind)
}

// Set stores value at address. Bit spaces take 0 or 1; register spaces
// require 0 <= value <= 65535.
func (m *DataModel) Set(kind RegisterKind, address, value int) error {
	if address < 0 || address > MaxAddress {
		return fmt.Errorf("%w: %v address %d", ErrAddress, kind, address)
	}
	if kind.IsBit() {
		bits, err := m.bits(kind)
		if err != nil {
			return err
		}
		if value != 0 && value != 1 {
			return fmt.Errorf("%w: %v[%d] = %d, want 0 or 1", ErrValue, kind, address, value)
		}
		bits[uint16(address)] = value == 1
		return nil
	}
	words, err := m.words(kind)
	if err != nil {
		return err
	}
	if value < 0 || value > MaxValue {
		return fmt.Errorf("%w: %v[%d] = %d", ErrValue, kind, address, value)
	}
	words[uint16(address)] = uint16(value & 0xFFFF)
	return nil
}

// Get returns the value at address, 0 or 1 for bit spaces.
func (m *DataModel) Get(kind RegisterKind, address int) (int, error) {
	if address < 0 || address > MaxAddress {
		return 0, fmt.Errorf("%w: %v address %d", ErrAddress, kind, address)
	}
	if kind.IsBit() {
		bits, err := m.bits(kind)
		if err != nil {
			return 0, err
		}
		if bits[uint16(address)] {
			return 1, nil
		}
		return 0, nil
	}
	words, err := m.words(kind)
	if err != nil {
		return 0, err
	}
	return int(words[uint16(address)]), nil
}

func (m *DataModel) SetCoil(address uint16, value bool)          { m.coils[address] = value }
func (m *DataModel) GetCoil(address uint16) bool                 { return m.coils[address] }
func (m *DataModel) SetDiscreteInput(address uint16, value bool) { m.discreteInputs[address] = value }
func (m *DataModel) GetDiscreteInput(address uint16) bool        { return m.discreteInputs[address] }
func (m *DataModel) SetHoldingRegister(address, value uint16)    { m.holdingRegisters[address] = value }
func (m *DataModel) GetHoldingRegister(address uint16) uint16    { return m.holdingRegisters[address] }
func (m *DataModel) SetInputRegister(address, value uint16)      { m.inputRegisters[address] = value }
func (m *DataModel) GetInputRegister(address uint16) uint16      { return m.inputRegisters[address] }

// ReadBits reads quantity bits of a bit space starting at address.
func (m *DataModel) ReadBits(kind RegisterKind, address, quantity uint16) ([]bool, error) {
	bits, err := m.bits(kind)
	if err != nil {
		return nil, err
	}
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	values := make([]bool, quantity)
	for i := range values {
		values[i] = bits[address+uint16(i)]
	}
	return values, nil
}

// ReadRegisters reads quantity words of a register space starting at address.
func (m *DataModel) ReadRegisters(kind RegisterKind, address, quantity uint16) ([]uint16, error) {
	words, err := m.words(kind)
	if err != nil {
		return nil, err
	}
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = words[address+uint16(i)]
	}
	return values, nil
}

// WriteBits writes values to consecutive addresses of a bit space. Nothing
// is written when the range does not fit.
func (m *DataModel) WriteBits(kind RegisterKind, address uint16, values []bool) error {
	bits, err := m.bits(kind)
	if err != nil {
		return err
	}
	if len(values) == 0 || int(address)+len(values) > MaxAddress+1 {
		return fmt.Errorf("%w: %d bits at %d", ErrAddress, len(values), address)
	}
	for i, v := range values {
		bits[address+uint16(i)] = v
	}
	return nil
}

// WriteRegisters writes values to consecutive addresses of a register space.
// Nothing is written when the range does not fit.
func (m *DataModel) WriteRegisters(kind RegisterKind, address uint16, values []uint16) error {
	words, err := m.words(kind)
	if err != nil {
		return err
	}
	if len(values) == 0 || int(address)+len(values) > MaxAddress+1 {
		return fmt.Errorf("%w: %d registers at %d", ErrAddress, len(values), address)
	}
	for i, v := range values {
		words[address+uint16(i)] = v
	}
	return nil
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("%w: %d+%d", ErrAddress, address, quantity)
	}
	return nil
}

// Entry is one stored value in a Dump. Bits are reported as 0 or 1.
type Entry struct {
	Address uint16 `json:"address"`
	Value   uint16 `json:"value"`
}

// Dump is a snapshot of every stored value, sorted by address.
type Dump struct {
	Coils            []Entry `json:"coils"`
	DiscreteInputs   []Entry `json:"discreteInputs"`
	HoldingRegisters []Entry `json:"holdingRegisters"`
	InputRegisters   []Entry `json:"inputRegisters"`
}

// Stats counts the stored values per space.
type Stats struct {
	Coils            int `json:"coils"`
	DiscreteInputs   int `json:"discreteInputs"`
	HoldingRegisters int `json:"holdingRegisters"`
	InputRegisters   int `json:"inputRegisters"`
}

// Total returns the number of stored values across all spaces.
func (s Stats) Total() int {
	return s.Coils + s.DiscreteInputs + s.HoldingRegisters + s.InputRegisters
}

// Dump returns a sorted snapshot of the model.
func (m *DataModel) Dump() Dump {
	return Dump{
		Coils:            dumpBits(m.coils),
		DiscreteInputs:   dumpBits(m.discreteInputs),
		HoldingRegisters: dumpWords(m.holdingRegisters),
		InputRegisters:   dumpWords(m.inputRegisters),
	}
}

// Stats returns the number of stored values per space.
func (m *DataModel) Stats() Stats {
	return Stats{
		Coils:            len(m.coils),
		DiscreteInputs:   len(m.discreteInputs),
		HoldingRegisters: len(m.holdingRegisters),
		InputRegisters:   len(m.inputRegisters),
	}
}

func dumpBits(bits map[uint16]bool) []Entry {
	entries := make([]Entry, 0, len(bits))
	for addr, v := range bits {
		e := Entry{Address: addr}
		if v {
			e.Value = 1
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries
}

func dumpWords(words map[uint16]uint16) []Entry {
	entries := make([]Entry, 0, len(words))
	for addr, v := range words {
		entries = append(entries, Entry{Address: addr, Value: v})
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
}
