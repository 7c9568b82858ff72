// Package config layers engine configuration the way the R2Northstar Atlas
// command does (cmd/atlas/main.go): defaults, then an optional YAML file,
// then an env file parsed with hashicorp/go-envparse, then CLI flags
// defined with spf13/pflag — each layer overriding the previous one.
// Constant defaults are carried over from the original prototype's
// common/config.py.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-envparse"
	"gopkg.in/yaml.v3"
)

// World and physics defaults (common/config.py).
const (
	WorldWidth    = 800
	WorldHeight   = 600
	PlayerSpeed   = 200.0
	PlayerRadius  = 15
)

// Networking and timing defaults (common/config.py).
const (
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 9000
	DefaultTickRate         = 20
	DefaultBufferSize       = 4096
	DefaultClientTimeout    = 10 * time.Second
	ConnectRetryInterval    = 1 * time.Second
	PingInterval            = 1 * time.Second
	InterpolationTicks      = 2
	InputRedundancy         = 3
	ReliableMaxRetries      = 5
	ReliableRetryInterval   = 200 * time.Millisecond
)

// Server holds every tunable for the authoritative server process.
type Server struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	TickRate       int           `yaml:"tick_rate"`
	ClientTimeout  time.Duration `yaml:"client_timeout"`
	LossRate       float64       `yaml:"loss_rate"`
	Latency        time.Duration `yaml:"latency"`
	LogLevel       string        `yaml:"log_level"`
	LogPretty      bool          `yaml:"log_pretty"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	MetricsDir     string        `yaml:"metrics_dir"`
	StatsInterval  time.Duration `yaml:"stats_interval"`
}

// DefaultServer returns the engine's out-of-the-box server configuration.
func DefaultServer() Server {
	return Server{
		Host:          DefaultHost,
		Port:          DefaultPort,
		TickRate:      DefaultTickRate,
		ClientTimeout: DefaultClientTimeout,
		LogLevel:      "info",
		LogPretty:     true,
		StatsInterval: 5 * time.Second,
	}
}

// Client holds every tunable for the client process.
type Client struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	TickRate    int           `yaml:"tick_rate"`
	Headless    bool          `yaml:"headless"`
	LossRate    float64       `yaml:"loss_rate"`
	Latency     time.Duration `yaml:"latency"`
	LogLevel    string        `yaml:"log_level"`
	LogPretty   bool          `yaml:"log_pretty"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// DefaultClient returns the engine's out-of-the-box client configuration.
func DefaultClient() Client {
	return Client{
		Host:      "127.0.0.1",
		Port:      DefaultPort,
		TickRate:  DefaultTickRate,
		LogLevel:  "info",
		LogPretty: true,
	}
}

// LoadYAML overlays file's contents onto cfg, which must be a pointer to a
// Server or Client. A missing file is not an error — it just means "no
// overrides at this layer".
func LoadYAML(path string, cfg interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ReadEnvFile parses an env-file (KEY=VALUE per line) with
// hashicorp/go-envparse, the same parser the Atlas command uses for its
// optional env_file argument.
func ReadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return envparse.Parse(f)
}

// EnvOverrideString returns env[key] if set, else fallback.
func EnvOverrideString(env map[string]string, key, fallback string) string {
	if v, ok := env[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
