package registry

import (
	"net"
	"testing"
	"time"

	"github.com/pixelforge/tickengine/internal/wire"
)

func addr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port}
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	r := New()
	c0, _ := r.Add(addr(1))
	c1, _ := r.Add(addr(2))
	if c0.ID != 1 || c1.ID != 2 {
		t.Errorf("IDs = %d, %d, want 1, 2", c0.ID, c1.ID)
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}

func TestAddIsIdempotentPerAddress(t *testing.T) {
	r := New()
	a := addr(1)
	c0, _ := r.Add(a)
	c1, _ := r.Add(a)
	if c0 != c1 {
		t.Error("Add() for a duplicate address returned a distinct session")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestGetByAddressAndByID(t *testing.T) {
	r := New()
	a := addr(7)
	want, _ := r.Add(a)

	got, ok := r.GetByAddress(a)
	if !ok || got != want {
		t.Errorf("GetByAddress() = %v, %v, want %v, true", got, ok, want)
	}

	got, ok = r.GetByID(want.ID)
	if !ok || got != want {
		t.Errorf("GetByID() = %v, %v, want %v, true", got, ok, want)
	}

	if _, ok := r.GetByAddress(addr(999)); ok {
		t.Error("GetByAddress() found a session for an unregistered address")
	}
}

func TestRemove(t *testing.T) {
	r := New()
	a := addr(1)
	c, _ := r.Add(a)
	r.Remove(c.ID)

	if r.HasAddress(a) {
		t.Error("HasAddress() true after Remove")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
	r.Remove(99) // removing an absent client must not panic
}

func TestAddRejectsPastMaxClients(t *testing.T) {
	r := New()
	for i := 0; i < MaxClients; i++ {
		if _, err := r.Add(addr(i)); err != nil {
			t.Fatalf("Add() rejected session %d before reaching MaxClients: %v", i, err)
		}
	}

	if _, err := r.Add(addr(MaxClients)); err != ErrCapacityExhausted {
		t.Errorf("Add() past MaxClients error = %v, want ErrCapacityExhausted", err)
	}
	if r.Count() != MaxClients {
		t.Errorf("Count() = %d, want %d", r.Count(), MaxClients)
	}

	// A duplicate address is still idempotent even once at capacity.
	if _, err := r.Add(addr(0)); err != nil {
		t.Errorf("Add() for an already-registered address should still succeed at capacity: %v", err)
	}
}

func TestCheckTimeouts(t *testing.T) {
	r := New()
	fakeNow := time.Unix(0, 0)
	r.now = func() time.Time { return fakeNow }

	stale, _ := r.Add(addr(1))
	stale.now = r.now

	fakeNow = fakeNow.Add(5 * time.Second)
	fresh, _ := r.Add(addr(2))
	fresh.now = r.now

	fakeNow = fakeNow.Add(6 * time.Second) // stale is 11s idle, fresh is 6s idle

	timedOut := r.CheckTimeouts(DefaultTimeout)
	if len(timedOut) != 1 || timedOut[0] != stale.ID {
		t.Errorf("CheckTimeouts() = %v, want [%d]", timedOut, stale.ID)
	}
}

func TestQueueAndDrainInputsPreservesArrivalOrder(t *testing.T) {
	c := &Client{now: time.Now}
	c.QueueInput(wire.InputRecord{Sequence: 3})
	c.QueueInput(wire.InputRecord{Sequence: 1})
	c.QueueInput(wire.InputRecord{Sequence: 2})

	drained := c.DrainInputs()
	if len(drained) != 3 {
		t.Fatalf("len(drained) = %d, want 3", len(drained))
	}
	for i, want := range []uint32{3, 1, 2} {
		if drained[i].Sequence != want {
			t.Errorf("drained[%d].Sequence = %d, want %d (arrival order, not sequence order)", i, drained[i].Sequence, want)
		}
	}
	if got := c.DrainInputs(); len(got) != 0 {
		t.Errorf("second DrainInputs() = %v, want empty", got)
	}
}

func TestQueueInputDropsDuplicatesAndAlreadyProcessed(t *testing.T) {
	c := &Client{now: time.Now}
	c.AdvanceLastProcessedInputSeq(5)

	c.QueueInput(wire.InputRecord{Sequence: 5}) // already processed
	c.QueueInput(wire.InputRecord{Sequence: 6})
	c.QueueInput(wire.InputRecord{Sequence: 6}) // duplicate (redundant burst)

	drained := c.DrainInputs()
	if len(drained) != 1 || drained[0].Sequence != 6 {
		t.Errorf("drained = %v, want [{Sequence:6}]", drained)
	}
}

func TestAdvanceLastProcessedInputSeqNeverRegresses(t *testing.T) {
	c := &Client{now: time.Now}
	c.AdvanceLastProcessedInputSeq(10)
	c.AdvanceLastProcessedInputSeq(3)
	if c.LastProcessedInputSeq() != 10 {
		t.Errorf("LastProcessedInputSeq() = %d, want 10", c.LastProcessedInputSeq())
	}
}

func TestBandwidthKbps(t *testing.T) {
	c := &Client{now: time.Now}
	c.AddBytesSent(1250) // 10000 bits
	c.AddBytesReceived(625)

	sent, recv := c.BandwidthKbps(1 * time.Second)
	if sent != 10 {
		t.Errorf("sentKbps = %v, want 10", sent)
	}
	if recv != 5 {
		t.Errorf("recvKbps = %v, want 5", recv)
	}

	if sent, recv := c.BandwidthKbps(0); sent != 0 || recv != 0 {
		t.Errorf("BandwidthKbps(0) = %v, %v, want 0, 0", sent, recv)
	}
}

func TestBandwidthKbpsSinceConnect(t *testing.T) {
	fakeNow := time.Unix(0, 0)
	c := &Client{now: func() time.Time { return fakeNow }}
	c.connectedAt = fakeNow
	c.AddBytesSent(1250) // 10000 bits

	fakeNow = fakeNow.Add(2 * time.Second)
	sent, _ := c.BandwidthKbpsSinceConnect()
	if sent != 5 {
		t.Errorf("sentKbps = %v, want 5 (10000 bits over 2s)", sent)
	}
}
