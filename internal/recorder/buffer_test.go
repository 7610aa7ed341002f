package recorder

import (
	"testing"

	"github.com/rickgao/pushprobe/internal/race"
)

func TestResultBuffer_FIFO(t *testing.T) {
	b := newResultBuffer(4)

	for _, name := range []string{"fast", "typical", "slow"} {
		if !b.Send(race.TestResult{ProfileName: name}) {
			t.Fatalf("Send(%s) = false, want true", name)
		}
	}

	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}

	for _, want := range []string{"fast", "typical", "slow"} {
		res, ok := b.TryReceive()
		if !ok {
			t.Fatalf("TryReceive() = false, want %s", want)
		}
		if res.ProfileName != want {
			t.Errorf("ProfileName = %s, want %s", res.ProfileName, want)
		}
	}

	if _, ok := b.TryReceive(); ok {
		t.Error("TryReceive() on empty buffer = true, want false")
	}
}

func TestResultBuffer_GrowsUnderLoad(t *testing.T) {
	b := newResultBuffer(2)

	for i := 0; i < 100; i++ {
		if !b.Send(race.TestResult{ProfileName: "stress"}) {
			t.Fatalf("Send #%d = false, want true", i)
		}
	}

	if b.Len() != 100 {
		t.Errorf("Len() = %d, want 100", b.Len())
	}

	received := 0
	for {
		if _, ok := b.TryReceive(); !ok {
			break
		}
		received++
	}
	if received != 100 {
		t.Errorf("received %d items, want 100", received)
	}
}

func TestResultBuffer_CloseDrainsThenSignals(t *testing.T) {
	b := newResultBuffer(4)
	b.Send(race.TestResult{ProfileName: "fast"})
	b.Close()

	if b.Send(race.TestResult{ProfileName: "late"}) {
		t.Error("Send after Close = true, want false")
	}

	res, ok := b.Receive()
	if !ok || res.ProfileName != "fast" {
		t.Errorf("Receive() = (%q, %v), want (fast, true)", res.ProfileName, ok)
	}

	if _, ok := b.Receive(); ok {
		t.Error("Receive() on closed empty buffer = true, want false")
	}
}
