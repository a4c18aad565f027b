// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"sort"

	"github.com/ffutop/modbus-emulator/modbus"
)

// ExceptionKey identifies an injected fault.
type ExceptionKey struct {
	Function byte
	Address  uint16
}

// ExceptionRule is an entry of ExceptionTable.Rules.
type ExceptionRule struct {
	ExceptionKey
	Code modbus.ExceptionCode
}

// ExceptionTable maps (function, address) to the exception code the
// emulator answers with.
type ExceptionTable struct {
	rules map[ExceptionKey]modbus.ExceptionCode
}

func NewExceptionTable() *ExceptionTable {
	return &ExceptionTable{rules: make(map[ExceptionKey]modbus.ExceptionCode)}
}

// Set adds or replaces the rule for (function, address).
func (t *ExceptionTable) Set(function byte, address uint16, code modbus.ExceptionCode) {
	t.rules[ExceptionKey{Function: function &^ modbus.ExceptionFlag, Address: address}] = code
}

// Remove deletes the rule for (function, address), if any.
func (t *ExceptionTable) Remove(function byte, address uint16) {
	delete(t.rules, ExceptionKey{Function: function &^ modbus.ExceptionFlag, Address: address})
}

// Check returns the exception of the lowest address in
// [address, address+quantity) that has a rule for function, or nil.
func (t *ExceptionTable) Check(function byte, address, quantity uint16) *modbus.Exception {
	if len(t.rules) == 0 {
		return nil
	}
	end := int(address) + int(quantity)
	if end > MaxAddress+1 {
		end = MaxAddress + 1
	}
	for a := int(address); a < end; a++ {
		if code, ok := t.rules[ExceptionKey{Function: function, Address: uint16(a)}]; ok {
			return modbus.NewException(function, code)
		}
	}
	return nil
}

// Clear removes every rule.
func (t *ExceptionTable) Clear() {
	t.rules = make(map[ExceptionKey]modbus.ExceptionCode)
}

// Len returns the number of rules.
func (t *ExceptionTable) Len() int {
	return len(t.rules)
}

// Rules returns the rules ordered by function, then address.
func (t *ExceptionTable) Rules() []ExceptionRule {
	rules := make([]ExceptionRule, 0, len(t.rules))
	for k, code := range t.rules {
		rules = append(rules, ExceptionRule{ExceptionKey: k, Code: code})
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Function != rules[j].Function {
			return rules[i].Function < rules[j].Function
		}
		return rules[i].Address < rules[j].Address
	})
	return rules
}
