package world

import (
	"testing"

	"github.com/pixelforge/tickengine/internal/wire"
)

func TestAddEntitySpawnSlotsAreDeterministic(t *testing.T) {
	w := New()
	e0 := w.AddEntity(0)
	e1 := w.AddEntity(1)
	e2 := w.AddEntity(2)

	if e0.X != 100 {
		t.Errorf("entity 0 X = %v, want 100", e0.X)
	}
	if e1.X != 250 {
		t.Errorf("entity 1 X = %v, want 250", e1.X)
	}
	if e2.X != 400 {
		t.Errorf("entity 2 X = %v, want 400", e2.X)
	}
	if e0.Y != Height/2 || e1.Y != Height/2 {
		t.Errorf("spawn Y = %v/%v, want %v", e0.Y, e1.Y, Height/2)
	}
	if e0.Health != 100 {
		t.Errorf("spawn Health = %v, want 100", e0.Health)
	}
}

func TestAddEntityIsIdempotent(t *testing.T) {
	w := New()
	first := w.AddEntity(5)
	w.ApplyInput(5, 1, 0, 0, 0.05)
	second := w.AddEntity(5)

	if second == first {
		t.Fatalf("second AddEntity returned the pristine spawn, want the mutated live state")
	}
	if second.X == first.X {
		t.Errorf("AddEntity re-spawned an existing entity")
	}
}

func TestRemoveEntity(t *testing.T) {
	w := New()
	w.AddEntity(1)
	w.RemoveEntity(1)
	if w.Has(1) {
		t.Error("Has(1) = true after RemoveEntity")
	}
	// Removing an absent entity must not panic.
	w.RemoveEntity(99)
}

func TestApplyInputPrediction(t *testing.T) {
	w := New()
	w.AddEntity(1, 100, 100)
	w.ApplyInput(1, 1, 0, 0, 0.05)

	got := w.Snapshot().Entities[1]
	if got.X != 110 {
		t.Errorf("X = %v, want 110", got.X)
	}
	if got.Y != 100 {
		t.Errorf("Y = %v, want 100", got.Y)
	}
}

func TestApplyInputClampsToWorldBounds(t *testing.T) {
	w := New()
	w.AddEntity(1, 799, 100)
	w.ApplyInput(1, 1, 0, 0, 1.0)

	got := w.Snapshot().Entities[1]
	if got.X > Width {
		t.Errorf("X = %v, want <= %v", got.X, Width)
	}
	if got.X != Width {
		t.Errorf("X = %v, want clamped to %v", got.X, Width)
	}
}

func TestApplyInputNormalizesDiagonalMovement(t *testing.T) {
	w := New()
	w.AddEntity(1, 100, 100)
	w.ApplyInput(1, 1, 1, 0, 1.0)

	got := w.Snapshot().Entities[1]
	dx := got.X - 100
	dy := got.Y - 100
	mag := dx*dx + dy*dy
	want := float32(PlayerSpeed * PlayerSpeed)
	if diff := mag - want; diff > 1 || diff < -1 {
		t.Errorf("||displacement||^2 = %v, want ~%v (normalized diagonal move)", mag, want)
	}
}

func TestApplyInputOnMissingEntityIsNoop(t *testing.T) {
	w := New()
	w.ApplyInput(42, 1, 0, 0, 0.05) // must not panic
	if w.Has(42) {
		t.Error("ApplyInput must not spawn a missing entity")
	}
}

func TestSnapshotIsIndependentOfFutureMutation(t *testing.T) {
	w := New()
	w.AddEntity(1, 0, 0)
	snap := w.Snapshot()

	w.ApplyInput(1, 1, 0, 0, 1.0)

	if snap.Entities[1].X != 0 {
		t.Errorf("earlier snapshot observed a later mutation: X = %v, want 0", snap.Entities[1].X)
	}
}

func TestSetTickPublishesIntoSnapshot(t *testing.T) {
	w := New()
	w.SetTick(42)
	if w.Tick() != 42 {
		t.Errorf("Tick() = %d, want 42", w.Tick())
	}
	if got := w.Snapshot().Tick; got != 42 {
		t.Errorf("Snapshot().Tick = %d, want 42", got)
	}
}

func TestStepMatchesWireEntityStateShape(t *testing.T) {
	e := wire.EntityState{EntityID: 3, X: 0, Y: 0, Health: 100}
	got := Step(e, 0, 1, 0, 0.5)
	if got.Y != 100 {
		t.Errorf("Y = %v, want 100", got.Y)
	}
	if got.VY != PlayerSpeed {
		t.Errorf("VY = %v, want %v", got.VY, PlayerSpeed)
	}
	if got.EntityID != 3 {
		t.Errorf("EntityID = %d, want 3 (must be preserved across Step)", got.EntityID)
	}
}
