package gameclient

import (
	"math"

	"github.com/pixelforge/tickengine/internal/wire"
)

// PendingInput pairs an input sample sent to the server with the local
// entity state the client predicted immediately after applying it —
// needed both to replay unacknowledged inputs on top of a fresh server
// state and to measure how far that prediction diverged once the server
// confirms it (spec §4.7.1, client/reconciliation.py).
type PendingInput struct {
	Record         wire.InputRecord
	PredictedState wire.EntityState
}

// Reconcile rebases local prediction onto the server's authoritative
// state: it prunes every input the server has now processed
// (sequence <= lastAckedInputSeq), replays the remaining unacknowledged
// inputs on top of serverState, and reports the prediction error observed
// for the input the server just confirmed.
//
// dt is the fixed simulation timestep used to replay each remaining input.
func Reconcile(serverState wire.EntityState, lastAckedInputSeq uint32, pending []PendingInput, dt float64) (corrected wire.EntityState, remaining []PendingInput, predictionError float64) {
	for _, p := range pending {
		if p.Record.Sequence == lastAckedInputSeq {
			predictionError = euclidean(p.PredictedState, serverState)
			break
		}
	}

	for _, p := range pending {
		if p.Record.Sequence > lastAckedInputSeq {
			remaining = append(remaining, p)
		}
	}

	corrected = serverState
	for _, p := range remaining {
		corrected = Predict(corrected, p.Record, dt)
	}
	return corrected, remaining, predictionError
}

func euclidean(a, b wire.EntityState) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
