// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package emulator

import (
	"fmt"
	"sort"
	"time"

	"github.com/ffutop/modbus-emulator/modbus/codec"
)

// profile holds the state behind the vendor function codes and device
// identification.
type profile struct {
	comment     string
	clockOffset time.Duration
	files       map[string]int64
	openFile    string
	objects     map[byte]string
	restarts    int
}

func newProfile() *profile {
	return &profile{
		files:   make(map[string]int64),
		objects: make(map[byte]string),
	}
}

// SetComment sets the device comment returned by Read Device Comment.
func (e *Emulator) SetComment(comment string) error {
	if e.destroyed {
		return ErrDestroyed
	}
	codes, err := codec.EncodeComment(comment)
	if err != nil {
		return err
	}
	// Store the normalized form a master would read back.
	normalized, err := codec.DecodeComment(codes)
	if err != nil {
		return err
	}
	e.profile.comment = normalized
	return nil
}

func (e *Emulator) Comment() string {
	return e.profile.comment
}

// AddFile registers a virtual file reported by Open File and Read File Length.
func (e *Emulator) AddFile(name string, size int64) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if name == "" {
		return fmt.Errorf("emulator: empty file name")
	}
	if size < 0 || size >= 0xFFFFFFFF {
		return fmt.Errorf("emulator: file %q size %d out of range", name, size)
	}
	e.profile.files[name] = size
	return nil
}

// RemoveFile forgets a virtual file.
func (e *Emulator) RemoveFile(name string) {
	delete(e.profile.files, name)
	if e.profile.openFile == name {
		e.profile.openFile = ""
	}
}

// OpenFile returns the name of the file opened by the last Open File
// request, or "" when none is open.
func (e *Emulator) OpenFile() string {
	return e.profile.openFile
}

// SetDeviceObject sets a device identification object. An empty value
// removes the object.
func (e *Emulator) SetDeviceObject(id byte, value string) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if value == "" {
		delete(e.profile.objects, id)
		return nil
	}
	candidate := &codec.DeviceIdentification{Objects: []codec.DeviceObject{{ID: id, Value: value}}}
	if _, err := candidate.Encode(); err != nil {
		return fmt.Errorf("emulator: object 0x%02X: %w", id, err)
	}
	e.profile.objects[id] = value
	return nil
}

// SetControllerTime moves the controller clock to t.
func (e *Emulator) SetControllerTime(t time.Time) {
	e.profile.clockOffset = t.Sub(e.now())
}

// ControllerTime returns the current controller clock.
func (e *Emulator) ControllerTime() time.Time {
	return e.now().Add(e.profile.clockOffset)
}

// Restarts returns how many Restart Controller requests were served.
func (e *Emulator) Restarts() int {
	return e.profile.restarts
}

// objectIDs returns the ids of the category selected by readCode, sorted.
func (p *profile) objectIDs(readCode byte) []byte {
	var limit int
	switch readCode {
	case codec.ReadDeviceIDBasic:
		limit = codec.ObjectMajorMinorRevision
	case codec.ReadDeviceIDRegular:
		limit = 0x7F
	default:
		limit = 0xFF
	}
	ids := make([]byte, 0, len(p.objects))
	for id := range p.objects {
		if int(id) <= limit {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// conformityLevel reports stream and individual access up to the highest
// category that holds an object.
func (p *profile) conformityLevel() byte {
	level := byte(0x81)
	for id := range p.objects {
		switch {
		case id >= 0x80:
			return 0x83
		case id > codec.ObjectMajorMinorRevision:
			level = 0x82
		}
	}
	return level
}
