// Command client runs the engine's client loop: connect, predict local
// movement, reconcile against authoritative snapshots, and interpolate
// remote entities. Grounded on the original prototype's client/client.py
// run() loop and argparse CLI. The engine itself has no rendering layer
// (SPEC_FULL.md non-goal), so absent a real input device this drives a
// scripted circular movement pattern, same as the prototype's --headless
// test harness; --headless additionally silences the periodic status line.
package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/pixelforge/tickengine/internal/ack"
	"github.com/pixelforge/tickengine/internal/config"
	"github.com/pixelforge/tickengine/internal/gameclient"
	"github.com/pixelforge/tickengine/internal/netsim"
	"github.com/pixelforge/tickengine/internal/telemetry"
	"github.com/pixelforge/tickengine/internal/transport"
	"github.com/pixelforge/tickengine/internal/wire"
)

var opt struct {
	host        string
	port        int
	tickRate    int
	headless    bool
	lossRate    float64
	latencyMs   int
	logLevel    string
	logPretty   bool
	metricsAddr string
}

func init() {
	defaults := config.DefaultClient()
	pflag.StringVar(&opt.host, "host", defaults.Host, "server address")
	pflag.IntVar(&opt.port, "port", defaults.Port, "server port")
	pflag.IntVar(&opt.tickRate, "tick-rate", defaults.TickRate, "local input/render cadence")
	pflag.BoolVar(&opt.headless, "headless", false, "suppress the periodic status line")
	pflag.Float64Var(&opt.lossRate, "loss", 0, "simulated packet loss rate [0,1], applied to outbound packets")
	pflag.IntVar(&opt.latencyMs, "latency", 0, "simulated one-way latency in milliseconds, applied to outbound packets")
	pflag.StringVar(&opt.logLevel, "log-level", defaults.LogLevel, "zerolog level")
	pflag.BoolVar(&opt.logPretty, "log-pretty", defaults.LogPretty, "pretty-print logs to stdout")
	pflag.StringVar(&opt.metricsAddr, "metrics-addr", defaults.MetricsAddr, "address to serve /metrics on, empty disables it")
}

// streamConn adapts a connected *net.UDPConn wrapped in a *netsim.Simulator
// onto gameclient.Conn's Write/Read surface. Loss/latency simulation only
// applies outbound, matching the server side of the same simulator.
type streamConn struct {
	sim  *netsim.Simulator
	conn *net.UDPConn
}

func (s streamConn) Write(b []byte) (int, error) { return s.sim.WriteTo(b, s.conn.RemoteAddr()) }
func (s streamConn) Read(b []byte) (int, error)  { return s.conn.Read(b) }
func (s streamConn) Close() error                { return s.sim.Close() }

func main() {
	pflag.Parse()

	logger, runID := telemetry.NewLogger(telemetry.ParseLevel(opt.logLevel), opt.logPretty)
	logger.Info().Str("run_id", runID).Msg("starting client")

	conn, err := transport.DialClient(opt.host, opt.port)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial failed")
	}
	defer conn.Close()

	var gcConn gameclient.Conn = conn
	var sim *netsim.Simulator
	if opt.lossRate > 0 || opt.latencyMs > 0 {
		latency := time.Duration(opt.latencyMs) * time.Millisecond
		sim = netsim.New(conn, opt.lossRate, latency)
		gcConn = streamConn{sim: sim, conn: conn}
		logger.Warn().Float64("loss", opt.lossRate).Dur("latency", latency).Msg("network simulation enabled")
	}

	c := gameclient.New(gcConn, logger)

	if opt.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(c.Metrics().Registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(opt.metricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", opt.metricsAddr).Msg("serving /metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inbound := make(chan wire.Packet, config.DefaultBufferSize)
	go readLoop(ctx, conn, inbound, logger)

	if !connect(ctx, c, inbound, logger) {
		logger.Warn().Msg("context cancelled before CONNECT_ACK, exiting")
		return
	}
	logger.Info().Uint8("entity_id", c.EntityID()).Msg("connected")

	runLoop(ctx, c, inbound, sim, logger)

	if err := c.Disconnect(); err != nil {
		logger.Warn().Err(err).Msg("disconnect send failed")
	}
	logger.Info().Msg("client stopped")
}

// readLoop deserializes inbound datagrams and forwards them to main,
// mirroring the server's dedicated receive goroutine feeding a bounded
// channel (internal/gameserver.receiveLoop).
func readLoop(ctx context.Context, conn *net.UDPConn, out chan<- wire.Packet, logger zerolog.Logger) {
	buf := make([]byte, config.DefaultBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := conn.Read(buf)
		if err != nil {
			continue
		}
		pkt, err := wire.Deserialize(buf[:n])
		if err != nil {
			logger.Debug().Err(err).Msg("dropping malformed packet")
			continue
		}
		select {
		case out <- pkt:
		case <-ctx.Done():
			return
		}
	}
}

// connect retries CONNECT_REQ at config.ConnectRetryInterval until a
// CONNECT_ACK arrives or ctx is cancelled (spec §4.7 step 1).
func connect(ctx context.Context, c *gameclient.Client, inbound <-chan wire.Packet, logger zerolog.Logger) bool {
	if err := c.Connect(); err != nil {
		logger.Warn().Err(err).Msg("connect send failed")
	}
	retry := time.NewTicker(config.ConnectRetryInterval)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case pkt := <-inbound:
			c.ObserveInbound(pkt)
			if pkt.Type == wire.ConnectAck {
				c.HandleConnectAck(pkt.Payload)
				return true
			}
		case <-retry.C:
			if err := c.Connect(); err != nil {
				logger.Warn().Err(err).Msg("connect retry send failed")
			}
		}
	}
}

// runLoop drives the per-tick input/predict/send cycle, dispatches inbound
// snapshots/pongs, and pings the server at config.PingInterval, mirroring
// client.py's run() select loop.
func runLoop(ctx context.Context, c *gameclient.Client, inbound <-chan wire.Packet, sim *netsim.Simulator, logger zerolog.Logger) {
	dt := time.Second / time.Duration(opt.tickRate)
	tickTicker := time.NewTicker(dt)
	defer tickTicker.Stop()
	pingTicker := time.NewTicker(config.PingInterval)
	defer pingTicker.Stop()
	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()

	var elapsed float64
	var latestTick float64

	for {
		select {
		case <-ctx.Done():
			return

		case pkt := <-inbound:
			c.ObserveInbound(pkt)
			switch pkt.Type {
			case wire.SnapshotType:
				if snap, err := wire.DeserializeSnapshot(pkt.Payload); err == nil {
					latestTick = float64(snap.Tick)
				}
				if _, err := c.HandleSnapshot(pkt.Payload, dt.Seconds()); err != nil {
					logger.Debug().Err(err).Msg("dropping malformed snapshot")
				}
			case wire.Pong:
				if _, ok := c.HandlePong(pkt.Payload, time.Now()); !ok {
					logger.Debug().Msg("dropping malformed pong")
				}
			case wire.ConnectAck:
				c.HandleConnectAck(pkt.Payload)
			case wire.ReliableEvent:
				if ev, ok := c.HandleReliableEvent(pkt.Payload); ok {
					logger.Debug().Uint32("event_id", ev.EventID).Uint8("kind", ev.Kind).Msg("reliable event received")
				} else {
					logger.Debug().Msg("dropping malformed reliable event")
				}
			}

		case <-tickTicker.C:
			elapsed += dt.Seconds()
			moveX, moveY := scriptedMovement(elapsed)
			if err := c.SendInput(moveX, moveY, 0, dt.Seconds(), config.InputRedundancy); err != nil {
				logger.Debug().Err(err).Msg("send input failed")
			}
			_ = c.RemoteEntities(latestTick + 1 - config.InterpolationTicks)
			if sim != nil {
				if err := sim.Flush(); err != nil {
					logger.Debug().Err(err).Msg("netsim flush failed")
				}
			}

		case <-pingTicker.C:
			if err := c.SendPing(time.Now()); err != nil {
				logger.Debug().Err(err).Msg("send ping failed")
			}

		case <-statusTicker.C:
			c.Tracker().DetectLostPackets(ack.MaxAge)
			c.Recorder().LogPacketLoss(c.Tracker().LossRate())
			if opt.headless {
				continue
			}
			summary := c.Recorder().GetSummary()
			render := c.LocalRenderState()
			line := telemetry.StatusLine(1, formatPosition(render), summary.PacketLossMean, summary.BandwidthMean)
			logger.Info().Msg(line)
		}
	}
}

// scriptedMovement drives a deterministic circular path so prediction and
// reconciliation have continuous traffic to exercise without a real input
// device (SPEC_FULL.md carries no rendering/input-capture layer).
func scriptedMovement(elapsed float64) (moveX, moveY float32) {
	return float32(math.Cos(elapsed)), float32(math.Sin(elapsed))
}

func formatPosition(e wire.EntityState) string {
	return fmt.Sprintf("pos=(%.1f,%.1f)", e.X, e.Y)
}
