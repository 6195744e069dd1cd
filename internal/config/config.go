package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

// Display drivers
const (
	DriverHUB75    = "hub75"
	DriverTerminal = "terminal"
	DriverMemory   = "memory"
)

// Config represents the application configuration
type Config struct {
	Display     types.DisplayConfig     `json:"display"`
	Screensaver types.ScreensaverConfig `json:"screensaver"`
	Server      types.ServerConfig      `json:"server"`
	Panel       types.PanelConfig       `json:"panel"`
	MQTT        types.MQTTConfig        `json:"mqtt"`
}

// LoadConfig loads the configuration from a file and applies LEDPANEL_*
// environment overrides
func LoadConfig(path string) (*Config, error) {
	return Load(context.Background(), path, envconfig.OsLookuper())
}

// Load reads path over the defaults, then applies overrides from l. An empty
// path skips the file.
func Load(ctx context.Context, path string, l envconfig.Lookuper) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := envconfig.ProcessWith(ctx, config, l); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Display: types.DisplayConfig{
			Width:      64,
			Height:     64,
			Brightness: 64,
			Driver:     DriverHUB75,
			LogLevel:   "info",
		},
		Screensaver: types.ScreensaverConfig{
			TickMS:  300,
			Density: 0.5,
		},
		Server: types.ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 4 << 20,
		},
		// Adafruit RGB Matrix Bonnet pinout
		Panel: types.PanelConfig{
			Chip:   "gpiochip0",
			Planes: 4,
			R1Pin:  5,
			G1Pin:  13,
			B1Pin:  6,
			R2Pin:  12,
			G2Pin:  16,
			B2Pin:  23,
			CLKPin: 17,
			OEPin:  4,
			LAPin:  21,
			APin:   22,
			BPin:   26,
			CPin:   27,
			DPin:   20,
			EPin:   24,
		},
		MQTT: types.MQTTConfig{
			ClientID: "ledpanel",
			Topic:    "ledpanel",
		},
	}
}

// Validate checks the configuration for values the display cannot use
func (c *Config) Validate() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.Display.Brightness < 1 || c.Display.Brightness > 255 {
		return fmt.Errorf("brightness must be between 1 and 255")
	}
	switch c.Display.Driver {
	case DriverHUB75, DriverTerminal, DriverMemory:
	default:
		return fmt.Errorf("unknown display driver %q", c.Display.Driver)
	}
	if _, err := c.IdleTimeout(); err != nil {
		return err
	}
	if c.Screensaver.TickMS <= 0 {
		return fmt.Errorf("screensaver tick must be positive, got %dms", c.Screensaver.TickMS)
	}
	if c.Screensaver.Density <= 0 || c.Screensaver.Density > 1 {
		return fmt.Errorf("screensaver density must be in (0, 1], got %v", c.Screensaver.Density)
	}
	if c.Server.MaxUploadBytes < int64(c.Display.Width*c.Display.Height*3) {
		return fmt.Errorf("max upload of %d bytes cannot hold a raw %dx%d frame",
			c.Server.MaxUploadBytes, c.Display.Width, c.Display.Height)
	}
	if c.Display.Driver == DriverHUB75 {
		if c.Display.Height%2 != 0 {
			return fmt.Errorf("hub75 panels need an even height, got %d", c.Display.Height)
		}
		if c.Panel.Planes < 1 || c.Panel.Planes > 8 {
			return fmt.Errorf("panel planes must be between 1 and 8, got %d", c.Panel.Planes)
		}
	}
	return nil
}

// TickPeriod returns the screensaver generation interval
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.Screensaver.TickMS) * time.Millisecond
}

// IdleTimeout returns how long an uploaded image stays up before the
// screensaver resumes. Zero means it stays until replaced.
func (c *Config) IdleTimeout() (time.Duration, error) {
	if c.Display.IdleTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Display.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid idle timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("idle timeout must not be negative, got %s", d)
	}
	return d, nil
}
