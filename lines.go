package main

import (
	"strings"
	"sync"
)

// Slot is a fixed row of the display.
type Slot int

const (
	SlotIP Slot = iota
	SlotClock
	SlotShotClock
	SlotHome
	SlotGuest
	numSlots
)

var slotNames = [numSlots]string{"ip", "clock", "shotclock", "home", "guest"}

func (s Slot) String() string {
	if s < 0 || s >= numSlots {
		return "unknown"
	}
	return slotNames[s]
}

// placeholder labels shown until a producer has written its slot
var initialLines = [numSlots]string{"IP:", "TIJD:", "SCHOTKLOK:", "THUIS:", "UIT:"}

// DisplayLines is the five-row text buffer shared by the poller and the
// renderer. Each slot has exactly one writer.
type DisplayLines struct {
	mu      sync.RWMutex
	lines   [numSlots]string
	version uint64
}

func NewDisplayLines() *DisplayLines {
	return &DisplayLines{lines: initialLines}
}

func (d *DisplayLines) Set(slot Slot, text string) {
	if slot < 0 || slot >= numSlots {
		return
	}
	d.mu.Lock()
	d.lines[slot] = text
	d.version++
	d.mu.Unlock()
}

// SetPair writes two slots under one lock so readers never see half an update.
func (d *DisplayLines) SetPair(a Slot, textA string, b Slot, textB string) {
	if a < 0 || a >= numSlots || b < 0 || b >= numSlots {
		return
	}
	d.mu.Lock()
	d.lines[a] = textA
	d.lines[b] = textB
	d.version++
	d.mu.Unlock()
}

func (d *DisplayLines) Get(slot Slot) string {
	if slot < 0 || slot >= numSlots {
		return ""
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lines[slot]
}

// Snapshot copies all five lines.
func (d *DisplayLines) Snapshot() [numSlots]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lines
}

// Version increases on every write.
func (d *DisplayLines) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Text joins the lines with newlines, ready for WriteString.
func (d *DisplayLines) Text() string {
	lines := d.Snapshot()
	return strings.Join(lines[:], "\n")
}
