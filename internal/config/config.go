package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"webcam-fingerprint/internal/domain"
)

// VideoConfig holds capture and encoder preferences.
type VideoConfig struct {
	Width   int    `yaml:"width"`   // preferred width in pixels
	Height  int    `yaml:"height"`  // preferred height in pixels
	FPS     int    `yaml:"fps"`     // preferred frame rate
	BitRate int    `yaml:"bitrate"` // encoder bitrate (bps)
	Codec   string `yaml:"codec"`   // "vp8" (WebM) or "h264" (raw Annex B)
}

// FingerprintConfig points at the scanner service.
type FingerprintConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"` // 0 = transport default
}

// Config aggregates all application configuration.
type Config struct {
	Port        int               `yaml:"port"`
	Debug       bool              `yaml:"debug"`
	Video       VideoConfig       `yaml:"video"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Port: 8080,
		Video: VideoConfig{
			Width:   640,
			Height:  480,
			FPS:     30,
			BitRate: 1_000_000,
			Codec:   "vp8",
		},
		Fingerprint: FingerprintConfig{
			Endpoint: "http://localhost:6001/capture",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file is not an error
// when allowMissing is set.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills zero values with defaults and rejects out of range ones.
func (c *Config) Validate() error {
	def := Default()

	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", c.Port)
	}
	if c.Video.Width < 0 || c.Video.Height < 0 {
		return fmt.Errorf("video size must not be negative, got %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.Width == 0 {
		c.Video.Width = def.Video.Width
	}
	if c.Video.Height == 0 {
		c.Video.Height = def.Video.Height
	}
	if c.Video.FPS < 0 || c.Video.FPS > 240 {
		return fmt.Errorf("video.fps must be between 1 and 240, got %d", c.Video.FPS)
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = def.Video.FPS
	}
	if c.Video.BitRate < 0 {
		return fmt.Errorf("video.bitrate must be > 0, got %d", c.Video.BitRate)
	}
	if c.Video.BitRate == 0 {
		c.Video.BitRate = def.Video.BitRate
	}
	if c.Video.Codec == "" {
		c.Video.Codec = def.Video.Codec
	}
	if c.Video.Codec != "vp8" && c.Video.Codec != "h264" {
		return fmt.Errorf("video.codec must be vp8 or h264, got %q", c.Video.Codec)
	}
	if c.Fingerprint.Endpoint == "" {
		c.Fingerprint.Endpoint = def.Fingerprint.Endpoint
	}
	if c.Fingerprint.TimeoutMs < 0 {
		return fmt.Errorf("fingerprint.timeout_ms must not be negative, got %d", c.Fingerprint.TimeoutMs)
	}
	return nil
}

// FingerprintTimeout returns the scanner request timeout.
func (c *Config) FingerprintTimeout() time.Duration {
	return time.Duration(c.Fingerprint.TimeoutMs) * time.Millisecond
}

// VideoConfig converts the video section for the capture service.
func (c *Config) VideoConfig() domain.VideoConfig {
	return domain.VideoConfig{
		Width:     c.Video.Width,
		Height:    c.Video.Height,
		FrameRate: c.Video.FPS,
		BitRate:   c.Video.BitRate,
		CodecName: c.Video.Codec,
	}
}
