// Package gameclient implements the client side of the engine: local
// input prediction, server-reconciliation on snapshot receipt, and
// interpolated rendering of remote entities. Grounded on the original
// prototype's client/client.py, client/prediction.py,
// client/reconciliation.py, and client/interpolation.py.
package gameclient

import (
	"github.com/pixelforge/tickengine/internal/wire"
	"github.com/pixelforge/tickengine/internal/world"
)

// Predict runs the same physics step the authoritative server applies, so
// that speculative local movement matches what the server will later
// confirm, absent packet loss or diverging input (spec §4.7,
// client/prediction.py's Predictor.predict).
func Predict(e wire.EntityState, in wire.InputRecord, dt float64) wire.EntityState {
	return world.Step(e, in.MoveX, in.MoveY, in.Actions, dt)
}
