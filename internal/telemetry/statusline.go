// Periodic human-readable status line for interactive terminal runs (spec
// §9: "periodic console summary every N seconds"), styled with
// charmbracelet/x/ansi the way tinyrange's terminal package depends on that
// module for terminal-aware rendering.
package telemetry

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"
)

// StatusLine renders a single-line server/client health summary. Styling
// degrades gracefully: callers that want plain output can measure the
// visible width with ansi.StringWidth or strip it with ansi.Strip.
func StatusLine(clients int, tickOrRTT string, lossRate, bandwidthKbps float64) string {
	label := fmt.Sprintf("clients=%d %s loss=%.1f%% bw=%.1fkbps", clients, tickOrRTT, lossRate*100, bandwidthKbps)
	return ansi.BoldStyle + label + ansi.ResetStyle
}

// PlainStatusLine strips ANSI styling from a StatusLine result, for plain
// log output such as the server's periodic stats log line.
func PlainStatusLine(clients int, tickOrRTT string, lossRate, bandwidthKbps float64) string {
	return ansi.Strip(StatusLine(clients, tickOrRTT, lossRate, bandwidthKbps))
}
