package config

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/formfile/internal/errors"
	"github.com/vango-dev/formfile/pkg/upload"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "formfile.json"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultDestDir is where stored uploads go.
	DefaultDestDir = "uploads"

	// DefaultSweepInterval is how often stale temp files are removed.
	DefaultSweepInterval = "15m"

	// DefaultMetricsPath is the route serving Prometheus metrics.
	DefaultMetricsPath = "/metrics"
)

// Config represents the formfile.json configuration.
type Config struct {
	// Addr is the address the server listens on.
	Addr string `json:"addr,omitempty"`

	// TempDir holds uploads until they are moved. Defaults to
	// <os temp dir>/formfile.
	TempDir string `json:"tempDir,omitempty"`

	// DestDir is where the upload route stores files.
	DestDir string `json:"destDir,omitempty"`

	// MaxFileSize limits a single file in bytes. 0 means no limit.
	MaxFileSize int64 `json:"maxFileSize,omitempty"`

	// MaxBodySize limits the whole request body in bytes. 0 means no limit.
	MaxBodySize int64 `json:"maxBodySize,omitempty"`

	// BlockedExtensions are refused with the extension error code.
	BlockedExtensions []string `json:"blockedExtensions,omitempty"`

	// SweepInterval is a Go duration string (e.g., "15m").
	SweepInterval string `json:"sweepInterval,omitempty"`

	// MetricsPath is the route for Prometheus metrics. Empty disables it.
	MetricsPath string `json:"metricsPath,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// New creates a new Config with default values.
func New() *Config {
	def := upload.DefaultConfig()
	return &Config{
		Addr:          DefaultAddr,
		TempDir:       filepath.Join(os.TempDir(), "formfile"),
		DestDir:       DefaultDestDir,
		MaxFileSize:   def.MaxFileSize,
		MaxBodySize:   def.MaxBodySize,
		SweepInterval: DefaultSweepInterval,
		MetricsPath:   DefaultMetricsPath,
	}
}

// Load reads configuration from the specified directory.
// It looks for formfile.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or run without --config to use defaults")
		}
		return nil, errors.New("E100").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		fe := errors.New("E100").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON").
			Wrap(err)
		var se *json.SyntaxError
		if stderrors.As(err, &se) {
			line, col := position(data, se.Offset)
			fe.WithLocation(path, line, col)
		}
		return nil, fe
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// position converts a json.SyntaxError offset, which counts the offending
// byte, into a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	pos := int(offset) - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(data) {
		pos = len(data)
	}
	before := string(data[:pos])
	line = 1 + strings.Count(before, "\n")
	col = pos - strings.LastIndexByte(before, '\n')
	return line, col
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.TempDir == "" {
		c.TempDir = filepath.Join(os.TempDir(), "formfile")
	}
	if c.DestDir == "" {
		c.DestDir = DefaultDestDir
	}
	if c.SweepInterval == "" {
		c.SweepInterval = DefaultSweepInterval
	}

	// Relative directories resolve against the config file.
	if dir := c.Dir(); dir != "" {
		if !filepath.IsAbs(c.DestDir) {
			c.DestDir = filepath.Join(dir, c.DestDir)
		}
		if !filepath.IsAbs(c.TempDir) {
			c.TempDir = filepath.Join(dir, c.TempDir)
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxFileSize < 0 {
		return errors.New("E102").
			WithDetail("maxFileSize must be zero (unlimited) or positive")
	}
	if c.MaxBodySize < 0 {
		return errors.New("E102").
			WithDetail("maxBodySize must be zero (unlimited) or positive")
	}
	if c.MaxBodySize > 0 && c.MaxFileSize > c.MaxBodySize {
		return errors.New("E102").
			WithDetail("maxFileSize cannot exceed maxBodySize").
			WithSuggestion("Raise maxBodySize or set it to 0")
	}
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil {
		return errors.New("E103").
			WithDetail("sweepInterval: " + err.Error()).
			Wrap(err)
	}
	if d <= 0 {
		return errors.New("E103").
			WithDetail("sweepInterval must be positive")
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		return errors.Newf(errors.CategoryConfig, "metricsPath %q must start with /", c.MetricsPath)
	}
	return nil
}

// SweepEvery returns SweepInterval as a duration, or the default when it
// does not parse.
func (c *Config) SweepEvery() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultSweepInterval)
	}
	return d
}

// UploadConfig returns the request parsing limits.
func (c *Config) UploadConfig() *upload.Config {
	return &upload.Config{
		MaxFileSize:       c.MaxFileSize,
		MaxBodySize:       c.MaxBodySize,
		BlockedExtensions: append([]string(nil), c.BlockedExtensions...),
	}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
