// Package config provides configuration management for FaceGate.
// Configuration is loaded once from YAML at startup and treated as immutable
// afterwards; hardware pins and sensor parameters live here rather than in
// compiled-in constants so tests can substitute simulated peripherals.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SystemConfigPath is checked first by LoadDefault.
	SystemConfigPath = "/etc/facegate/facegate.yaml"
	// UserConfigPath is relative to the user's home directory.
	UserConfigPath = ".config/facegate/facegate.yaml"

	// MinCapturesRequired and MaxCapturesRequired bound the embeddings
	// captured per enrollment session.
	MinCapturesRequired = 5
	MaxCapturesRequired = 10
)

// Config holds all FaceGate configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Relay       RelayConfig       `yaml:"relay"`
	Enrollment  EnrollmentConfig  `yaml:"enrollment"`
	Storage     StorageConfig     `yaml:"storage"`
	Board       BoardConfig       `yaml:"board"`
	Control     ControlConfig     `yaml:"control"`
	Loop        LoopConfig        `yaml:"loop"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CameraConfig holds capture settings. The resolution is kept low on
// purpose: QVGA is enough for a face at door distance and keeps each cycle short.
type CameraConfig struct {
	Device         string `yaml:"device"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	PixelFormat    string `yaml:"pixel_format"` // "MJPG" or "JPEG"
	FrameTimeoutMs int    `yaml:"frame_timeout_ms"`
}

// RecognitionConfig holds face matching settings.
type RecognitionConfig struct {
	MatchThreshold float64 `yaml:"match_threshold"`
	ModelPath      string  `yaml:"model_path"`
	MaxFaces       int     `yaml:"max_faces"`
}

// RelayConfig holds relay pulse settings.
type RelayConfig struct {
	PulseDurationMs int `yaml:"pulse_duration_ms"`
}

// EnrollmentConfig holds enrollment session settings.
type EnrollmentConfig struct {
	CapturesRequired int `yaml:"captures_required"`
	DebounceMs       int `yaml:"debounce_ms"`
}

// StorageConfig holds face store settings.
type StorageConfig struct {
	Backend           string `yaml:"backend"` // "file" or "sqlite"
	DataDir           string `yaml:"data_dir"`
	MaxIdentities     int    `yaml:"max_identities"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// BoardConfig holds GPIO pin assignments, by periph.io pin name.
type BoardConfig struct {
	RelayPin        string `yaml:"relay_pin"`
	StatusPin       string `yaml:"status_pin"`
	EnrollPin       string `yaml:"enroll_pin"`
	EnrollActiveLow bool   `yaml:"enroll_active_low"`
}

// ControlConfig holds control channel settings. An empty SerialPort
// means commands are read from stdin.
type ControlConfig struct {
	SerialPort  string `yaml:"serial_port"`
	BaudRate    int    `yaml:"baud_rate"`
	EnrollToken string `yaml:"enroll_token"`
}

// LoopConfig holds control loop pacing.
type LoopConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Camera: CameraConfig{
			Device:         "/dev/video0",
			Width:          320,
			Height:         240,
			PixelFormat:    "MJPG",
			FrameTimeoutMs: 1000,
		},
		Recognition: RecognitionConfig{
			MatchThreshold: 0.63,
			ModelPath:      "/usr/share/facegate/models",
			MaxFaces:       1,
		},
		Relay: RelayConfig{
			PulseDurationMs: 3000,
		},
		Enrollment: EnrollmentConfig{
			CapturesRequired: 5,
			DebounceMs:       50,
		},
		Storage: StorageConfig{
			Backend:           "file",
			DataDir:           "/var/lib/facegate",
			MaxIdentities:     7,
			EncryptionEnabled: true,
		},
		Board: BoardConfig{
			RelayPin:        "GPIO12",
			StatusPin:       "GPIO26",
			EnrollPin:       "GPIO13",
			EnrollActiveLow: true,
		},
		Control: ControlConfig{
			SerialPort:  "",
			BaudRate:    115200,
			EnrollToken: "enroll",
		},
		Loop: LoopConfig{
			IntervalMs: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Load loads configuration from the specified file on top of the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat(SystemConfigPath); err == nil {
		return Load(SystemConfigPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, UserConfigPath)
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Device == "" {
		return fmt.Errorf("camera device must be set")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	switch strings.ToUpper(c.Camera.PixelFormat) {
	case "MJPG", "JPEG":
	default:
		return fmt.Errorf("invalid pixel_format: %s (must be MJPG or JPEG)", c.Camera.PixelFormat)
	}
	if c.Camera.FrameTimeoutMs <= 0 {
		return fmt.Errorf("frame_timeout_ms must be positive, got %d", c.Camera.FrameTimeoutMs)
	}

	if c.Recognition.MatchThreshold < -1 || c.Recognition.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be between -1 and 1, got %f", c.Recognition.MatchThreshold)
	}
	if c.Recognition.MaxFaces <= 0 {
		return fmt.Errorf("max_faces must be positive, got %d", c.Recognition.MaxFaces)
	}

	if c.Relay.PulseDurationMs <= 0 {
		return fmt.Errorf("pulse_duration_ms must be positive, got %d", c.Relay.PulseDurationMs)
	}

	if c.Enrollment.CapturesRequired < MinCapturesRequired || c.Enrollment.CapturesRequired > MaxCapturesRequired {
		return fmt.Errorf("captures_required must be between %d and %d, got %d",
			MinCapturesRequired, MaxCapturesRequired, c.Enrollment.CapturesRequired)
	}
	if c.Enrollment.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative, got %d", c.Enrollment.DebounceMs)
	}

	validBackends := map[string]bool{"file": true, "sqlite": true}
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage backend: %s (must be file or sqlite)", c.Storage.Backend)
	}
	if c.Storage.MaxIdentities <= 0 {
		return fmt.Errorf("max_identities must be positive, got %d", c.Storage.MaxIdentities)
	}

	if c.Board.RelayPin == "" || c.Board.StatusPin == "" || c.Board.EnrollPin == "" {
		return fmt.Errorf("relay_pin, status_pin and enroll_pin must all be set")
	}
	if c.Board.RelayPin == c.Board.StatusPin || c.Board.RelayPin == c.Board.EnrollPin || c.Board.StatusPin == c.Board.EnrollPin {
		return fmt.Errorf("board pins must be distinct")
	}

	if c.Control.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.Control.BaudRate)
	}
	if strings.TrimSpace(c.Control.EnrollToken) == "" {
		return fmt.Errorf("enroll_token must not be empty")
	}

	if c.Loop.IntervalMs < 0 {
		return fmt.Errorf("interval_ms must not be negative, got %d", c.Loop.IntervalMs)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Camera.Device = ExpandPath(c.Camera.Device)
	c.Recognition.ModelPath = ExpandPath(c.Recognition.ModelPath)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Control.SerialPort = ExpandPath(c.Control.SerialPort)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// EnsureDirectories creates the storage directory and the log directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	if c.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}

// StorePath returns the path of the face store for the configured backend.
func (c *Config) StorePath() string {
	switch c.Storage.Backend {
	case "sqlite":
		return filepath.Join(c.Storage.DataDir, "faces.db")
	default:
		if c.Storage.EncryptionEnabled {
			return filepath.Join(c.Storage.DataDir, "faces.enc")
		}
		return filepath.Join(c.Storage.DataDir, "faces.json")
	}
}

// PulseDuration returns the relay pulse length.
func (c *Config) PulseDuration() time.Duration {
	return time.Duration(c.Relay.PulseDurationMs) * time.Millisecond
}

// FrameTimeout returns how long a frame acquisition may wait.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Camera.FrameTimeoutMs) * time.Millisecond
}

// Debounce returns the enrollment button debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Enrollment.DebounceMs) * time.Millisecond
}

// LoopInterval returns the minimum time between control cycles.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Loop.IntervalMs) * time.Millisecond
}
