package gameclient

import (
	"testing"

	"github.com/pixelforge/tickengine/internal/wire"
)

func TestPredictMatchesServerPhysics(t *testing.T) {
	e := wire.EntityState{X: 100, Y: 100}
	got := Predict(e, wire.InputRecord{MoveX: 1, MoveY: 0}, 0.05)
	if got.X != 110 {
		t.Errorf("X = %v, want 110", got.X)
	}
	if got.Y != 100 {
		t.Errorf("Y = %v, want 100", got.Y)
	}
}
