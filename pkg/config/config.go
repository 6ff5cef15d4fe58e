// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/go-gaterace/pkg/physics"
	"github.com/opd-ai/go-gaterace/pkg/race"
)

// EnvPrefix is prepended to every environment override, e.g.
// GATERACE_CHASSIS or GATERACE_TELEMETRY_LISTENADDR.
const EnvPrefix = "GATERACE"

var (
	// ErrUnknownChassis is returned when the selected chassis is not in the catalog
	ErrUnknownChassis = errors.New("unknown chassis")
	// ErrInvalidShipStats is returned for non-positive tuning values
	ErrInvalidShipStats = errors.New("ship stats must be positive")
)

// Config contains configuration for a race session
type Config struct {
	LogLevel  string          `mapstructure:"logLevel" yaml:"logLevel"`
	Mode      string          `mapstructure:"mode" yaml:"mode"`
	Chassis   string          `mapstructure:"chassis" yaml:"chassis"`
	ShipScale float64         `mapstructure:"shipScale" yaml:"shipScale"`
	Ships     []ShipConfig    `mapstructure:"ships" yaml:"ships"`
	Course    CourseConfig    `mapstructure:"course" yaml:"course"`
	Loop      LoopConfig      `mapstructure:"loop" yaml:"loop"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Narrative NarrativeConfig `mapstructure:"narrative" yaml:"narrative"`
}

// ShipConfig describes one chassis in the catalog
type ShipConfig struct {
	Name       string  `mapstructure:"name" yaml:"name"`
	Speed      float64 `mapstructure:"speed" yaml:"speed"`
	Durability float64 `mapstructure:"durability" yaml:"durability"`
	Handling   float64 `mapstructure:"handling" yaml:"handling"`
}

// CourseConfig lists gate positions in race order
type CourseConfig struct {
	Name  string       `mapstructure:"name" yaml:"name"`
	Gates []GateConfig `mapstructure:"gates" yaml:"gates"`
}

// GateConfig is one gate's world position
type GateConfig struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
	Z float64 `mapstructure:"z" yaml:"z"`
}

// LoopConfig controls how the host drives frames
type LoopConfig struct {
	// Driver is "ticker" or "engo"
	Driver    string `mapstructure:"driver" yaml:"driver"`
	FPS       int    `mapstructure:"fps" yaml:"fps"`
	Autopilot bool   `mapstructure:"autopilot" yaml:"autopilot"`
	AutoStart bool   `mapstructure:"autoStart" yaml:"autoStart"`
	// MaxFrames stops the host after this many frames; 0 runs forever
	MaxFrames uint64 `mapstructure:"maxFrames" yaml:"maxFrames"`
}

// TelemetryConfig contains the presentation-facing HTTP settings
type TelemetryConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr       string        `mapstructure:"listenAddr" yaml:"listenAddr"`
	BroadcastEvery   int           `mapstructure:"broadcastEvery" yaml:"broadcastEvery"`
	MaxClients       int           `mapstructure:"maxClients" yaml:"maxClients"`
	WriteTimeout     time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	StaleFrameWindow time.Duration `mapstructure:"staleFrameWindow" yaml:"staleFrameWindow"`
}

// NarrativeConfig contains settings for the flavor-text service client
type NarrativeConfig struct {
	Enabled           bool                 `mapstructure:"enabled" yaml:"enabled"`
	Endpoint          string               `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout           time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	RequestsPerMinute int                  `mapstructure:"requestsPerMinute" yaml:"requestsPerMinute"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuitBreaker" yaml:"circuitBreaker"`
}

// CircuitBreakerConfig tunes the breaker in front of the narrative service
type CircuitBreakerConfig struct {
	MaxRequests         int           `mapstructure:"maxRequests" yaml:"maxRequests"`
	Interval            time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxConsecutiveFails int           `mapstructure:"maxConsecutiveFails" yaml:"maxConsecutiveFails"`
}

// DefaultConfig returns a default race configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		Mode:      "free",
		Chassis:   "interceptor",
		ShipScale: 1.0,
		Ships: []ShipConfig{
			{Name: "interceptor", Speed: 6, Durability: 3, Handling: 5},
			{Name: "vanguard", Speed: 4, Durability: 8, Handling: 4},
			{Name: "phantom", Speed: 5, Durability: 4, Handling: 7},
		},
		Course: CourseConfig{
			Name: "canyon",
			Gates: []GateConfig{
				{X: 0, Y: 1.8, Z: -12},
				{X: 3, Y: 2.5, Z: -28},
				{X: -4, Y: 3, Z: -42},
				{X: 2, Y: 2.2, Z: -58},
				{X: 0, Y: 2, Z: -75},
			},
		},
		Loop: LoopConfig{
			Driver:    "ticker",
			FPS:       60,
			Autopilot: true,
			AutoStart: true,
		},
		Telemetry: TelemetryConfig{
			Enabled:          true,
			ListenAddr:       "127.0.0.1:8090",
			BroadcastEvery:   2,
			MaxClients:       32,
			WriteTimeout:     2 * time.Second,
			StaleFrameWindow: 2 * time.Second,
		},
		Narrative: NarrativeConfig{
			Enabled:           false,
			Endpoint:          "http://127.0.0.1:8091/v1/flavor",
			Timeout:           5 * time.Second,
			RequestsPerMinute: 30,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:         1,
				Interval:            60 * time.Second,
				Timeout:             30 * time.Second,
				MaxConsecutiveFails: 3,
			},
		},
	}
}

// envKeys are the scalar settings that may be overridden from the environment
var envKeys = []string{
	"logLevel",
	"mode",
	"chassis",
	"shipScale",
	"loop.driver",
	"loop.fps",
	"loop.autopilot",
	"loop.autoStart",
	"loop.maxFrames",
	"telemetry.enabled",
	"telemetry.listenAddr",
	"telemetry.broadcastEvery",
	"narrative.enabled",
	"narrative.endpoint",
	"narrative.timeout",
	"narrative.requestsPerMinute",
}

// Load reads a YAML or JSON file on top of DefaultConfig and applies
// GATERACE_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	// lists from the file replace the defaults instead of merging by index
	if v.IsSet("ships") {
		cfg.Ships = nil
	}
	if v.IsSet("course.gates") {
		cfg.Course.Gates = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	if _, err := c.PresentationMode(); err != nil {
		return err
	}
	if _, err := c.ShipStats(); err != nil {
		return err
	}
	if _, err := c.BuildCourse(); err != nil {
		return err
	}
	if c.ShipScale <= 0 {
		return fmt.Errorf("shipScale must be positive, got %v", c.ShipScale)
	}
	if c.Loop.FPS <= 0 {
		return fmt.Errorf("loop.fps must be positive, got %d", c.Loop.FPS)
	}
	switch c.Loop.Driver {
	case "ticker", "engo":
	default:
		return fmt.Errorf("loop.driver must be ticker or engo, got %q", c.Loop.Driver)
	}
	if c.Telemetry.Enabled {
		if err := c.Telemetry.validate(); err != nil {
			return err
		}
	}
	if c.Narrative.Enabled {
		if err := c.Narrative.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t TelemetryConfig) validate() error {
	switch {
	case t.BroadcastEvery <= 0:
		return fmt.Errorf("telemetry.broadcastEvery must be positive, got %d", t.BroadcastEvery)
	case t.MaxClients <= 0:
		return fmt.Errorf("telemetry.maxClients must be positive, got %d", t.MaxClients)
	case t.WriteTimeout <= 0:
		return fmt.Errorf("telemetry.writeTimeout must be positive, got %v", t.WriteTimeout)
	case t.StaleFrameWindow <= 0:
		return fmt.Errorf("telemetry.staleFrameWindow must be positive, got %v", t.StaleFrameWindow)
	}
	return nil
}

func (n NarrativeConfig) validate() error {
	cb := n.CircuitBreaker
	switch {
	case n.Endpoint == "":
		return errors.New("narrative.endpoint is required when narrative is enabled")
	case n.Timeout <= 0:
		return fmt.Errorf("narrative.timeout must be positive, got %v", n.Timeout)
	case n.RequestsPerMinute < 0:
		// zero means unlimited
		return fmt.Errorf("narrative.requestsPerMinute must not be negative, got %d", n.RequestsPerMinute)
	case cb.MaxRequests <= 0:
		return fmt.Errorf("narrative.circuitBreaker.maxRequests must be positive, got %d", cb.MaxRequests)
	case cb.MaxConsecutiveFails <= 0:
		return fmt.Errorf("narrative.circuitBreaker.maxConsecutiveFails must be positive, got %d", cb.MaxConsecutiveFails)
	case cb.Interval < 0 || cb.Timeout < 0:
		return errors.New("narrative.circuitBreaker durations must not be negative")
	}
	return nil
}

// PresentationMode returns the configured mode
func (c *Config) PresentationMode() (physics.Mode, error) {
	return physics.ParseMode(c.Mode)
}

// ShipStats returns the stats of the selected chassis
func (c *Config) ShipStats() (physics.ShipStats, error) {
	for _, s := range c.Ships {
		if !strings.EqualFold(s.Name, c.Chassis) {
			continue
		}
		if s.Speed <= 0 || s.Handling <= 0 || s.Durability <= 0 {
			return physics.ShipStats{}, fmt.Errorf("chassis %q: %w", s.Name, ErrInvalidShipStats)
		}
		return physics.ShipStats{
			Speed:      s.Speed,
			Durability: s.Durability,
			Handling:   s.Handling,
		}, nil
	}
	return physics.ShipStats{}, fmt.Errorf("%w: %q", ErrUnknownChassis, c.Chassis)
}

// BuildCourse converts the gate list into a race course
func (c *Config) BuildCourse() (*race.Course, error) {
	positions := make([]physics.Vector3, len(c.Course.Gates))
	for i, g := range c.Course.Gates {
		positions[i] = physics.Vector3{X: g.X, Y: g.Y, Z: g.Z}
	}
	return race.NewCourse(c.Course.Name, positions)
}

// FrameInterval returns the wall-clock time between frames for the ticker driver
func (l LoopConfig) FrameInterval() time.Duration {
	if l.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(l.FPS)
}
