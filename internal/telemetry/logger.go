// Package telemetry provides the engine's logging, metrics, and metrics
// persistence. Logging setup follows the R2Northstar Atlas server's
// configureLogging (pkg/atlas/server.go): a zerolog.Logger with a
// configurable level writing to stdout, either through a pretty console
// writer or as plain JSON. Each process run is tagged with a short correlation id from
// rs/xid, following the same library's use in that repo's indirect
// dependency set.
package telemetry

import (
	"io"
	"os"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog.Logger writing to stdout, pretty-printed when
// pretty is true (interactive terminal use) or as compact JSON otherwise
// (production/aggregated log collection), tagged with a per-run id so that
// concurrent server/client runs in the same log stream stay distinguishable.
func NewLogger(level zerolog.Level, pretty bool) (zerolog.Logger, string) {
	runID := xid.New().String()

	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}
	}

	logger := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()

	return logger, runID
}

// ParseLevel resolves a level name to its zerolog.Level, defaulting to
// zerolog.InfoLevel for an unrecognized or empty string.
func ParseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
