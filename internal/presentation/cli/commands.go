package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"webcam-fingerprint/internal/application"
	"webcam-fingerprint/internal/config"
)

// DefaultConfigPath is used when neither -config nor CONFIG_PATH is given.
var DefaultConfigPath = filepath.Join("configs", "panel.yaml")

// Options holds the command line flags
type Options struct {
	ConfigPath  string
	Port        int
	Debug       bool
	ListDevices bool
	DeviceID    string
}

// Runner starts the panel once the configuration is final
type Runner func(ctx context.Context) error

// CLI is the command line entry point of the panel
type CLI struct {
	captureService *application.CaptureService
	logger         application.Logger
	out            io.Writer
	options        *Options
}

// NewCLI creates the CLI for an already wired capture service
func NewCLI(captureService *application.CaptureService, logger application.Logger, options *Options) *CLI {
	return &CLI{
		captureService: captureService,
		logger:         logger,
		out:            os.Stdout,
		options:        options,
	}
}

// ParseFlags parses args (without the program name)
func ParseFlags(args []string) (*Options, error) {
	options := &Options{}
	fs := flag.NewFlagSet("webcam-panel", flag.ContinueOnError)

	fs.StringVar(&options.ConfigPath, "config", "", "path to the YAML config file (default $CONFIG_PATH or configs/panel.yaml)")
	fs.IntVar(&options.Port, "port", 0, "panel HTTP port, overrides the config file")
	fs.BoolVar(&options.Debug, "debug", false, "enable debug logging")
	fs.BoolVar(&options.ListDevices, "list-devices", false, "list available cameras and exit")
	fs.StringVar(&options.DeviceID, "device", "", "camera device ID to open on start")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if options.Port < 0 || options.Port > 65535 {
		return nil, fmt.Errorf("port must be 1-65535, got %d", options.Port)
	}
	return options, nil
}

// LoadConfig resolves the config path, loads it and applies flag overrides.
// Only an explicitly requested file must exist.
func LoadConfig(options *Options) (*config.Config, error) {
	path, explicit := options.ConfigPath, true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path, explicit = DefaultConfigPath, false
	}

	cfg, err := config.Load(path, !explicit)
	if err != nil {
		return nil, err
	}

	if options.Port > 0 {
		cfg.Port = options.Port
	}
	if options.Debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// Run lists devices or serves the panel until interrupted
func (c *CLI) Run(serve Runner) error {
	// Initial enumeration, as the page does on first display
	devices := c.captureService.ListDevices()

	if c.options.ListDevices {
		fmt.Fprintln(c.out, "Available devices:")
		for i, device := range devices {
			fmt.Fprintf(c.out, "[%d] %s (%s)\n", i, device.DisplayLabel(i), device.ID)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.options.DeviceID != "" {
		// Failures are logged by the service; the panel still starts
		_ = c.captureService.OpenStream(c.options.DeviceID)
	}

	err := serve(ctx)
	c.logger.Info("shutting down...")
	c.captureService.CloseStream()
	return err
}
