// Package config holds runtime settings for the render CLI and the HTTP
// server. Values come from defaults, then an optional YAML file, then .env
// files and EVENTFRAME_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/eventframe/internal/compositor"
	"github.com/ivlev/eventframe/internal/export"
	"github.com/ivlev/eventframe/internal/geometry"
	"github.com/ivlev/eventframe/internal/source"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EVENTFRAME_"

type Config struct {
	// Server
	Addr         string `yaml:"addr"`
	TemplatesDir string `yaml:"templates_dir"`
	// AppOrigin is sent when fetching remote artwork. Artwork from other
	// origins is only exportable if they allow this one.
	AppOrigin      string        `yaml:"app_origin"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	OpenFiles      uint64        `yaml:"open_files"`

	// Rendering
	DPI                  int     `yaml:"dpi"`
	MaxZoom              float64 `yaml:"max_zoom"`
	ClampPan             bool    `yaml:"clamp_pan"`
	PreviewInterpolation string  `yaml:"preview_interpolation"`
	ExportInterpolation  string  `yaml:"export_interpolation"`
	Encoding             string  `yaml:"encoding"`
	JPEGQuality          int     `yaml:"jpeg_quality"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:                 ":8080",
		TemplatesDir:         "templates",
		FetchTimeout:         source.DefaultTimeout,
		MaxUploadBytes:       20 << 20,
		OpenFiles:            4096,
		DPI:                  source.DefaultDPI,
		MaxZoom:              geometry.DefaultMaxZoom,
		PreviewInterpolation: "bilinear",
		ExportInterpolation:  "catmullrom",
		Encoding:             string(export.PNG),
		JPEGQuality:          export.DefaultJPEGQuality,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Validate normalizes numeric values to safe ranges and rejects names that
// do not parse.
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = source.DefaultTimeout
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 20 << 20
	}
	if c.DPI <= 0 {
		c.DPI = source.DefaultDPI
	}
	if c.MaxZoom < 1 {
		c.MaxZoom = geometry.DefaultMaxZoom
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.JPEGQuality = export.DefaultJPEGQuality
	}

	var errs []error
	if _, err := compositor.ParseInterpolator(c.PreviewInterpolation); err != nil {
		errs = append(errs, fmt.Errorf("preview_interpolation: %w", err))
	}
	if _, err := compositor.ParseInterpolator(c.ExportInterpolation); err != nil {
		errs = append(errs, fmt.Errorf("export_interpolation: %w", err))
	}
	if _, err := export.ParseEncoding(c.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("encoding: %w", err))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Load reads configuration from a YAML file. A missing file yields
// DefaultConfig().
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv loads the given .env files (".env" when none are named; missing
// files are skipped) into the process environment, then applies EVENTFRAME_*
// overrides. Variables already set in the environment win over .env values.
func (c *Config) ApplyEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, set func(string) error) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			}
		}
	}

	str("ADDR", &c.Addr)
	str("TEMPLATES_DIR", &c.TemplatesDir)
	str("APP_ORIGIN", &c.AppOrigin)
	str("PREVIEW_INTERPOLATION", &c.PreviewInterpolation)
	str("EXPORT_INTERPOLATION", &c.ExportInterpolation)
	str("ENCODING", &c.Encoding)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	num("FETCH_TIMEOUT", func(v string) (err error) { c.FetchTimeout, err = time.ParseDuration(v); return })
	num("MAX_UPLOAD_BYTES", func(v string) (err error) { c.MaxUploadBytes, err = strconv.ParseInt(v, 10, 64); return })
	num("OPEN_FILES", func(v string) (err error) { c.OpenFiles, err = strconv.ParseUint(v, 10, 64); return })
	num("DPI", func(v string) (err error) { c.DPI, err = strconv.Atoi(v); return })
	num("MAX_ZOOM", func(v string) (err error) { c.MaxZoom, err = strconv.ParseFloat(v, 64); return })
	num("CLAMP_PAN", func(v string) (err error) { c.ClampPan, err = strconv.ParseBool(v); return })
	num("JPEG_QUALITY", func(v string) (err error) { c.JPEGQuality, err = strconv.Atoi(v); return })

	return errors.Join(errs...)
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
