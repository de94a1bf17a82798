package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/netpulse/netpulse/internal/gate"
	"gopkg.in/yaml.v3"
)

const (
	KindBandwidth = "bandwidth"
	KindLatency   = "latency"

	defaultLogLevel          = "info"
	defaultBandwidthInterval = 30 * time.Minute
	defaultLatencyInterval   = 1 * time.Second
	defaultBandwidthCommand  = "speedtest"
	defaultPingCommand       = "ping"
	defaultControlAddr       = "127.0.0.1"
	defaultControlPort       = 8090
)

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is built once at startup and immutable afterwards; components
// receive the pieces they need through their constructors.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	InfluxDB    InfluxConfig      `yaml:"influxdb"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Bandwidth   BandwidthConfig   `yaml:"bandwidth"`
	Latency     LatencyConfig     `yaml:"latency"`
	Gate        GateConfig        `yaml:"gate"`
	GeoIP       GeoIPConfig       `yaml:"geoip"`
	Journal     JournalConfig     `yaml:"journal"`
	Control     ControlConfig     `yaml:"control"`
}

type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type MeasurementConfig struct {
	// Kind selects which probe this process runs: bandwidth or latency.
	Kind string `yaml:"kind"`
	// Interval is the time between cycle starts.
	Interval Duration `yaml:"interval"`
	// MaxRuntime bounds the total loop run time; zero means unbounded.
	MaxRuntime Duration `yaml:"max_runtime"`
}

type BandwidthConfig struct {
	Command           string `yaml:"command"`
	PreferredServerID int    `yaml:"preferred_server_id"`
}

type LatencyConfig struct {
	Command string `yaml:"command"`
	Target  string `yaml:"target"`
}

type GateConfig struct {
	APIKey   string `yaml:"api_key"`
	GameName string `yaml:"game_name"`
	TagLine  string `yaml:"tag_line"`
	Region   string `yaml:"region"`
}

// Configured reports whether a player identity is present. Without one
// the gate never suppresses and never issues HTTP calls.
func (g GateConfig) Configured() bool {
	return g.GameName != "" && g.TagLine != ""
}

type GeoIPConfig struct {
	Database string `yaml:"database"`
}

type JournalConfig struct {
	Path string `yaml:"path"`
}

type ControlConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	BindAddr  string `yaml:"bind_addr"`
	BindPort  int    `yaml:"bind_port"`
	AuthToken string `yaml:"auth_token"`
}

func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Measurement.Kind == "" {
		c.Measurement.Kind = KindLatency
	}
	if c.Measurement.Interval == 0 {
		if c.Measurement.Kind == KindBandwidth {
			c.Measurement.Interval = Duration(defaultBandwidthInterval)
		} else {
			c.Measurement.Interval = Duration(defaultLatencyInterval)
		}
	}
	if c.Bandwidth.Command == "" {
		c.Bandwidth.Command = defaultBandwidthCommand
	}
	if c.Latency.Command == "" {
		c.Latency.Command = defaultPingCommand
	}
	if c.Control.Enabled == nil {
		enabled := false
		c.Control.Enabled = &enabled
	}
	if c.Control.BindAddr == "" {
		c.Control.BindAddr = defaultControlAddr
	}
	if c.Control.BindPort == 0 {
		c.Control.BindPort = defaultControlPort
	}
}

func (c *Config) validate() error {
	c.InfluxDB.URL = strings.TrimSpace(c.InfluxDB.URL)
	if c.InfluxDB.URL == "" {
		return errors.New("influxdb.url must not be empty")
	}
	if c.InfluxDB.Token == "" {
		return errors.New("influxdb.token must not be empty")
	}
	if c.InfluxDB.Org == "" {
		return errors.New("influxdb.org must not be empty")
	}
	if c.InfluxDB.Bucket == "" {
		return errors.New("influxdb.bucket must not be empty")
	}

	switch c.Measurement.Kind {
	case KindBandwidth, KindLatency:
	default:
		return fmt.Errorf("measurement.kind must be %s or %s", KindBandwidth, KindLatency)
	}
	if c.Measurement.Interval.Duration() <= 0 {
		return errors.New("measurement.interval must be > 0")
	}
	if c.Measurement.MaxRuntime.Duration() < 0 {
		return errors.New("measurement.max_runtime must be >= 0")
	}

	if c.Measurement.Kind == KindLatency {
		c.Latency.Target = strings.TrimSpace(c.Latency.Target)
		if c.Latency.Target == "" {
			return errors.New("latency.target must not be empty")
		}
	}
	if c.Bandwidth.PreferredServerID < 0 {
		return errors.New("bandwidth.preferred_server_id must be >= 0")
	}

	if c.Gate.GameName != "" || c.Gate.TagLine != "" {
		if c.Gate.GameName == "" || c.Gate.TagLine == "" {
			return errors.New("gate.game_name and gate.tag_line must be set together")
		}
		if c.Gate.APIKey == "" {
			return errors.New("gate.api_key is required when a player identity is configured")
		}
		if c.Gate.Region == "" {
			return errors.New("gate.region is required when a player identity is configured")
		}
		if _, err := gate.RouteForPlatform(c.Gate.Region); err != nil {
			return fmt.Errorf("gate.region: %w", err)
		}
	}

	if c.Control.BindPort <= 0 || c.Control.BindPort > 65535 {
		return errors.New("control.bind_port must be in 1..65535")
	}
	if c.Control.Enabled != nil && *c.Control.Enabled && c.Control.AuthToken == "" {
		return errors.New("control.auth_token must not be empty when control is enabled")
	}

	return nil
}
