package main

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDisplayLinesPlaceholders(t *testing.T) {
	lines := NewDisplayLines()

	assert.Equal(t, [numSlots]string{"IP:", "TIJD:", "SCHOTKLOK:", "THUIS:", "UIT:"}, lines.Snapshot())
	assert.Equal(t, "IP:\nTIJD:\nSCHOTKLOK:\nTHUIS:\nUIT:", lines.Text())
	assert.Equal(t, uint64(0), lines.Version())
}

func TestDisplayLinesSetOnlyTouchesItsSlot(t *testing.T) {
	lines := NewDisplayLines()
	lines.Set(SlotShotClock, "Schotklok:09")

	got := lines.Snapshot()
	assert.Equal(t, "Schotklok:09", got[SlotShotClock])
	assert.Equal(t, "IP:", got[SlotIP])
	assert.Equal(t, "TIJD:", got[SlotClock])
	assert.Equal(t, "THUIS:", got[SlotHome])
	assert.Equal(t, "UIT:", got[SlotGuest])
	assert.Equal(t, uint64(1), lines.Version())
}

func TestDisplayLinesOutOfRangeSlotIgnored(t *testing.T) {
	lines := NewDisplayLines()
	lines.Set(Slot(-1), "x")
	lines.Set(numSlots, "x")
	lines.SetPair(SlotHome, "x", Slot(9), "y")

	assert.Equal(t, initialLines, lines.Snapshot())
	assert.Equal(t, "", lines.Get(Slot(7)))
	assert.Equal(t, "unknown", Slot(7).String())
	assert.Equal(t, "guest", SlotGuest.String())
}

func TestDisplayLinesPairIsNeverTorn(t *testing.T) {
	lines := NewDisplayLines()
	lines.SetPair(SlotHome, "THUIS:00", SlotGuest, "UIT:00")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			n := fmt.Sprintf("%02d", i%100)
			lines.SetPair(SlotHome, "THUIS:"+n, SlotGuest, "UIT:"+n)
		}
	}()

	for i := 0; i < 500; i++ {
		snap := lines.Snapshot()
		home := strings.TrimPrefix(snap[SlotHome], "THUIS:")
		guest := strings.TrimPrefix(snap[SlotGuest], "UIT:")
		if home != guest {
			t.Fatalf("torn score pair: home=%q guest=%q", home, guest)
		}
	}
	wg.Wait()
}
