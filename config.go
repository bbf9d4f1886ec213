package dualview

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/kungfusheep/dualview/term"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

// Config holds the renderer configuration.
type Config struct {
	FrameRate           int     `yaml:"frame_rate"`
	MaxRecursiveUpdates int     `yaml:"max_recursive_updates"`
	CellWidth           float64 `yaml:"cell_width"`
	CellHeight          float64 `yaml:"cell_height"`
	ImageProtocol       string  `yaml:"image_protocol"`
	ColorProfile        string  `yaml:"color_profile"`
	LogFile             string  `yaml:"log_file"`
	LogLevel            string  `yaml:"log_level"`
	DevMode             bool    `yaml:"dev_mode"`

	// Logger overrides LogFile and LogLevel when set.
	Logger *log.Logger `yaml:"-"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		FrameRate:           20,
		MaxRecursiveUpdates: 100,
		CellWidth:           8,
		CellHeight:          16,
		ImageProtocol:       "auto",
		ColorProfile:        "auto",
		LogLevel:            "info",
	}
}

// DefaultConfigPath returns where LoadConfig looks when given an empty path.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "dualview", "config.yaml")
}

// LoadConfig reads the configuration from path.
// Falls back to defaults if the file doesn't exist
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Ensure reasonable defaults
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 20
	}
	if cfg.MaxRecursiveUpdates <= 0 {
		cfg.MaxRecursiveUpdates = 100
	}
	if cfg.CellWidth <= 0 || cfg.CellHeight <= 0 {
		cfg.CellWidth, cfg.CellHeight = 8, 16
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	if _, err := parseProfile(c.ColorProfile); err != nil {
		return err
	}
	switch strings.ToLower(c.ImageProtocol) {
	case "", "auto", "kitty", "iterm", "iterm2", "blocks":
	default:
		return fmt.Errorf("unknown image_protocol %q", c.ImageProtocol)
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// Protocol returns the configured image protocol.
func (c *Config) Protocol() term.Protocol { return term.ParseProtocol(c.ImageProtocol) }

// Profile returns the configured color profile, detecting it from w for
// "auto".
func (c *Config) Profile(w io.Writer) termenv.Profile {
	p, err := parseProfile(c.ColorProfile)
	if err != nil || p < 0 {
		return termenv.NewOutput(w).EnvColorProfile()
	}
	return p
}

// parseProfile returns -1 for auto.
func parseProfile(s string) (termenv.Profile, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return -1, nil
	case "truecolor":
		return termenv.TrueColor, nil
	case "ansi256":
		return termenv.ANSI256, nil
	case "ansi":
		return termenv.ANSI, nil
	case "ascii":
		return termenv.Ascii, nil
	}
	return 0, fmt.Errorf("unknown color_profile %q", s)
}

// NewLogger builds the logger described by LogFile and LogLevel. Without a
// log file everything is discarded, since stdout belongs to the frame. The
// returned closer releases the file.
func (c *Config) NewLogger() (*log.Logger, io.Closer, error) {
	if c.Logger != nil {
		return c.Logger, nopCloser{}, nil
	}
	if c.LogFile == "" {
		return log.New(io.Discard), nopCloser{}, nil
	}

	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	level := log.InfoLevel
	if c.LogLevel != "" {
		if level, err = log.ParseLevel(c.LogLevel); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("log_level: %w", err)
		}
	}
	if c.DevMode {
		level = min(level, log.DebugLevel)
	}
	logger := log.NewWithOptions(f, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "dualview",
	})
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
