// Command server runs the authoritative tick-based game server. Flag/
// config layering follows the R2Northstar Atlas command
// (cmd/atlas/main.go): defaults, then an optional YAML file, then an
// optional env file parsed with hashicorp/go-envparse, then pflag CLI
// flags, each overriding the last. The env file layer reads only
// TICKENGINE_HOST; any other key in it is ignored.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/pixelforge/tickengine/internal/config"
	"github.com/pixelforge/tickengine/internal/gamemode"
	"github.com/pixelforge/tickengine/internal/gameserver"
	"github.com/pixelforge/tickengine/internal/netsim"
	"github.com/pixelforge/tickengine/internal/telemetry"
	"github.com/pixelforge/tickengine/internal/transport"
)

var opt struct {
	host        string
	port        int
	tickRate    int
	lossRate    float64
	latencyMs   int
	logLevel    string
	logPretty   bool
	configFile  string
	envFile     string
	metricsAddr string
	metricsDir  string
}

func init() {
	defaults := config.DefaultServer()
	pflag.StringVar(&opt.host, "host", defaults.Host, "address to bind")
	pflag.IntVar(&opt.port, "port", defaults.Port, "port to bind")
	pflag.IntVar(&opt.tickRate, "tick-rate", defaults.TickRate, "simulation ticks per second")
	pflag.Float64Var(&opt.lossRate, "loss", 0, "simulated packet loss rate [0,1]")
	pflag.IntVar(&opt.latencyMs, "latency", 0, "simulated one-way latency in milliseconds")
	pflag.StringVar(&opt.logLevel, "log-level", defaults.LogLevel, "zerolog level (debug, info, warn, error)")
	pflag.BoolVar(&opt.logPretty, "log-pretty", defaults.LogPretty, "pretty-print logs to stdout")
	pflag.StringVar(&opt.configFile, "config", "", "optional YAML config file")
	pflag.StringVar(&opt.envFile, "env-file", "", "optional env file (KEY=VALUE per line)")
	pflag.StringVar(&opt.metricsAddr, "metrics-addr", "", "address to serve /metrics on, empty disables it")
	pflag.StringVar(&opt.metricsDir, "metrics-dir", "", "directory to periodically persist metrics summaries, empty disables it")
}

func main() {
	pflag.Parse()

	cfg := config.DefaultServer()
	if opt.configFile != "" {
		if err := config.LoadYAML(opt.configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
			os.Exit(1)
		}
	}
	if opt.envFile != "" {
		env, err := config.ReadEnvFile(opt.envFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: read env file: %v\n", err)
			os.Exit(1)
		}
		cfg.Host = config.EnvOverrideString(env, "TICKENGINE_HOST", cfg.Host)
	}
	applyServerFlags(&cfg)

	logger, runID := telemetry.NewLogger(telemetry.ParseLevel(cfg.LogLevel), cfg.LogPretty)
	logger.Info().Str("run_id", runID).Msg("starting server")

	conn, err := transport.ListenServer(cfg.Host, cfg.Port)
	if err != nil {
		logger.Fatal().Err(err).Msg("bind failed")
	}

	var gsConn gameserver.Conn = conn
	if cfg.LossRate > 0 || cfg.Latency > 0 {
		gsConn = netsim.New(conn, cfg.LossRate, cfg.Latency)
		logger.Warn().Float64("loss", cfg.LossRate).Dur("latency", cfg.Latency).Msg("network simulation enabled")
	}

	srv := gameserver.New(gsConn, cfg.TickRate, cfg.ClientTimeout, logger)
	gamemode.New(srv.World(), srv.Bus())

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(srv.Metrics().Registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving /metrics")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsDir != "" {
		go persistMetricsPeriodically(ctx, srv, cfg.MetricsDir, logger)
	}

	logger.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)).Int("tick_rate", cfg.TickRate).Msg("listening")

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server run error")
	}
	logger.Info().Msg("server stopped")
}

func persistMetricsPeriodically(ctx context.Context, srv *gameserver.Server, dir string, logger zerolog.Logger) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn().Err(err).Msg("create metrics dir failed")
		return
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			path := filepath.Join(dir, "metrics.json.gz")
			if err := srv.Recorder().Save(path); err != nil {
				logger.Warn().Err(err).Msg("persist metrics failed")
			}
		}
	}
}

func applyServerFlags(cfg *config.Server) {
	if pflag.CommandLine.Changed("host") {
		cfg.Host = opt.host
	}
	if pflag.CommandLine.Changed("port") {
		cfg.Port = opt.port
	}
	if pflag.CommandLine.Changed("tick-rate") {
		cfg.TickRate = opt.tickRate
	}
	if pflag.CommandLine.Changed("loss") {
		cfg.LossRate = opt.lossRate
	}
	if pflag.CommandLine.Changed("latency") {
		cfg.Latency = time.Duration(opt.latencyMs) * time.Millisecond
	}
	if pflag.CommandLine.Changed("log-level") {
		cfg.LogLevel = opt.logLevel
	}
	if pflag.CommandLine.Changed("log-pretty") {
		cfg.LogPretty = opt.logPretty
	}
	if pflag.CommandLine.Changed("metrics-addr") {
		cfg.MetricsAddr = opt.metricsAddr
	}
	if pflag.CommandLine.Changed("metrics-dir") {
		cfg.MetricsDir = opt.metricsDir
	}
}
