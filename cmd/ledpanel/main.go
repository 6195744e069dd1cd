package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/fkcurrie/ledpanel-golang/internal/client"
	"github.com/fkcurrie/ledpanel-golang/internal/config"
	"github.com/fkcurrie/ledpanel-golang/internal/discovery"
	"github.com/fkcurrie/ledpanel-golang/internal/display"
	"github.com/fkcurrie/ledpanel-golang/internal/imaging"
	"github.com/fkcurrie/ledpanel-golang/internal/logging"
	"github.com/fkcurrie/ledpanel-golang/internal/mqtt"
	"github.com/fkcurrie/ledpanel-golang/internal/pattern"
	"github.com/fkcurrie/ledpanel-golang/internal/preview"
	"github.com/fkcurrie/ledpanel-golang/internal/screensaver"
	"github.com/fkcurrie/ledpanel-golang/internal/server"
	"github.com/fkcurrie/ledpanel-golang/internal/termsink"
	"github.com/fkcurrie/ledpanel-golang/internal/types"
	"github.com/fkcurrie/ledpanel-golang/pkg/framebuffer"
	"github.com/fkcurrie/ledpanel-golang/pkg/hub75"
)

func main() {
	if err := buildCLI().ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}
}

func buildCLI() *ffcli.Command {
	// Run command
	runFlagSet := flag.NewFlagSet("ledpanel run", flag.ExitOnError)
	runConfig := runFlagSet.String("config", "config.json", "path to config file")
	runDriver := runFlagSet.String("driver", "", "display driver: hub75, terminal or memory (overrides config)")
	runNoSaver := runFlagSet.Bool("no-screensaver", false, "start with a blank panel instead of the screensaver")

	runCmd := &ffcli.Command{
		Name:       "run",
		ShortUsage: "ledpanel run [flags]",
		ShortHelp:  "Drive the panel and serve uploads",
		FlagSet:    runFlagSet,
		Exec: func(ctx context.Context, _ []string) error {
			cfg, err := loadConfig(*runConfig, *runDriver)
			if err != nil {
				return err
			}
			return execRun(ctx, cfg, !*runNoSaver)
		},
	}

	// Pattern command
	patternFlagSet := flag.NewFlagSet("ledpanel pattern", flag.ExitOnError)
	patternConfig := patternFlagSet.String("config", "config.json", "path to config file")
	patternDriver := patternFlagSet.String("driver", "", "display driver: hub75, terminal or memory (overrides config)")
	patternName := patternFlagSet.String("name", "colors", "pattern: "+strings.Join(pattern.Names(), ", "))
	patternText := patternFlagSet.String("text", "HELLO WORLD", "text for the text pattern")
	patternInterval := patternFlagSet.Duration("interval", 50*time.Millisecond, "time between frames")
	patternFrames := patternFlagSet.Int("frames", 0, "stop after this many frames, 0 runs until interrupted")

	patternCmd := &ffcli.Command{
		Name:       "pattern",
		ShortUsage: "ledpanel pattern [flags]",
		ShortHelp:  "Show a test pattern",
		FlagSet:    patternFlagSet,
		Exec: func(ctx context.Context, _ []string) error {
			cfg, err := loadConfig(*patternConfig, *patternDriver)
			if err != nil {
				return err
			}
			p, err := pattern.Named(*patternName, *patternText)
			if err != nil {
				return err
			}
			return execPattern(ctx, cfg, p, *patternInterval, *patternFrames)
		},
	}

	// Upload command
	uploadFlagSet := flag.NewFlagSet("ledpanel upload", flag.ExitOnError)
	uploadURL := uploadFlagSet.String("url", "http://localhost:8080", "panel server URL")
	uploadWidth := uploadFlagSet.Int("width", 64, "panel width")
	uploadHeight := uploadFlagSet.Int("height", 64, "panel height")
	uploadArt := uploadFlagSet.Int("art", 0, "pixel art resolution, 0 keeps the full panel resolution")
	uploadPassthrough := uploadFlagSet.Bool("passthrough", false, "send the file as is and let the server decode it")

	uploadCmd := &ffcli.Command{
		Name:       "upload",
		ShortUsage: "ledpanel upload [flags] <file or URL>",
		ShortHelp:  "Send an image to a running panel",
		FlagSet:    uploadFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix("LEDPANEL")},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("upload takes exactly one file or URL")
			}
			return execUpload(ctx, client.New(*uploadURL), args[0], uploadOptions{
				width:       *uploadWidth,
				height:      *uploadHeight,
				art:         *uploadArt,
				passthrough: *uploadPassthrough,
			})
		},
	}

	// Screensaver command
	saverFlagSet := flag.NewFlagSet("ledpanel screensaver", flag.ExitOnError)
	saverURL := saverFlagSet.String("url", "http://localhost:8080", "panel server URL")

	saverCmd := &ffcli.Command{
		Name:       "screensaver",
		ShortUsage: "ledpanel screensaver [flags]",
		ShortHelp:  "Switch a running panel to the screensaver",
		FlagSet:    saverFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix("LEDPANEL")},
		Exec: func(ctx context.Context, _ []string) error {
			return client.New(*saverURL).Screensaver(ctx)
		},
	}

	// Status command
	statusFlagSet := flag.NewFlagSet("ledpanel status", flag.ExitOnError)
	statusURL := statusFlagSet.String("url", "http://localhost:8080", "panel server URL")

	statusCmd := &ffcli.Command{
		Name:       "status",
		ShortUsage: "ledpanel status [flags]",
		ShortHelp:  "Show what a running panel is displaying",
		FlagSet:    statusFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix("LEDPANEL")},
		Exec: func(ctx context.Context, _ []string) error {
			status, err := client.New(*statusURL).Status(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}

	// Find command
	findFlagSet := flag.NewFlagSet("ledpanel find", flag.ExitOnError)
	findPort := findFlagSet.Int("port", discovery.DefaultPort, "panel server port")
	findTimeout := findFlagSet.Duration("timeout", discovery.DefaultTimeout, "per host probe timeout")

	findCmd := &ffcli.Command{
		Name:       "find",
		ShortUsage: "ledpanel find [flags]",
		ShortHelp:  "Scan the local networks for running panels",
		FlagSet:    findFlagSet,
		Exec: func(ctx context.Context, _ []string) error {
			results, err := discovery.NewScanner(*findPort, *findTimeout).ScanNetwork(ctx)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				log.Printf("No panels found")
				return nil
			}
			for _, r := range results {
				fmt.Println(r.URL())
			}
			return nil
		},
	}

	// GPIO test command
	gpioFlagSet := flag.NewFlagSet("ledpanel gpio-test", flag.ExitOnError)
	gpioConfig := gpioFlagSet.String("config", "config.json", "path to config file")
	gpioHold := gpioFlagSet.Duration("hold", time.Second, "how long each line stays high")

	gpioCmd := &ffcli.Command{
		Name:       "gpio-test",
		ShortUsage: "ledpanel gpio-test [flags]",
		ShortHelp:  "Raise each HUB75 line in turn to check the wiring",
		FlagSet:    gpioFlagSet,
		Exec: func(ctx context.Context, _ []string) error {
			cfg, err := loadConfig(*gpioConfig, "")
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return hub75.Walk(ctx, cfg.Panel.Chip, panelPins(cfg.Panel), *gpioHold, nil, func(name string, offset int) {
				log.Printf("Set %s (GPIO %d) high", name, offset)
			})
		},
	}

	// Root command
	return &ffcli.Command{
		ShortUsage:  "ledpanel <subcommand> [flags]",
		ShortHelp:   "LED matrix image display with a Game of Life screensaver",
		FlagSet:     flag.NewFlagSet("ledpanel", flag.ExitOnError),
		Subcommands: []*ffcli.Command{runCmd, patternCmd, uploadCmd, saverCmd, statusCmd, findCmd, gpioCmd},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
}

// loadConfig falls back to defaults and the environment when the config file
// does not exist
func loadConfig(path, driver string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Config file %s not found, using defaults", path)
		cfg, err = config.LoadConfig("")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if driver != "" {
		cfg.Display.Driver = driver
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if err := logging.SetLevel(cfg.Display.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func panelPins(p types.PanelConfig) hub75.Pins {
	return hub75.Pins{
		R1: p.R1Pin, G1: p.G1Pin, B1: p.B1Pin,
		R2: p.R2Pin, G2: p.G2Pin, B2: p.B2Pin,
		CLK: p.CLKPin, OE: p.OEPin, LAT: p.LAPin,
		A: p.APin, B: p.BPin, C: p.CPin, D: p.DPin, E: p.EPin,
	}
}

// panel is a display driver the commands can draw on and mirror
type panel interface {
	pattern.Canvas
	Frame() []byte
}

// openPanel creates the configured driver. quit is closed when the user asks
// to leave; it is nil for drivers without input.
func openPanel(cfg *config.Config) (p panel, quit <-chan struct{}, err error) {
	width, height := cfg.Display.Width, cfg.Display.Height

	switch cfg.Display.Driver {
	case config.DriverHUB75:
		pins := cfg.Panel
		hp, err := hub75.New(hub75.Config{
			Width:      width,
			Height:     height,
			Brightness: cfg.Display.Brightness,
			Planes:     pins.Planes,
			Chip:       pins.Chip,
			Pins:       panelPins(pins),
		}, hub75.WithLogger(logging.New("hub75")))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize HUB75 panel: %w", err)
		}
		hp.Start()
		return hp, nil, nil

	case config.DriverTerminal:
		// the terminal is the display; keep logs off it
		logging.SetOutput(io.Discard)
		sink, err := termsink.NewTerminal(width, height)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open terminal: %w", err)
		}
		return sink, sink.Quit(), nil

	default:
		fb, err := framebuffer.New(width, height)
		if err != nil {
			return nil, nil, err
		}
		return fb, nil, nil
	}
}

// withQuit cancels ctx when quit closes
func withQuit(ctx context.Context, quit <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if quit != nil {
		go func() {
			select {
			case <-quit:
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	return ctx, cancel
}

func execRun(ctx context.Context, cfg *config.Config, startSaver bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, quit, err := openPanel(cfg)
	if err != nil {
		return err
	}
	logger := logging.New("ledpanel")
	defer p.Close()

	ctx, cancel := withQuit(ctx, quit)
	defer cancel()

	hub := preview.NewHub(cfg.Display.Width, cfg.Display.Height)
	defer hub.Close()
	mirror := preview.NewMirror(p, hub)

	saver := screensaver.New(cfg.Display.Width, cfg.Display.Height,
		screensaver.WithMatrix(mirror),
		screensaver.WithPeriod(cfg.TickPeriod()),
		screensaver.WithDensity(cfg.Screensaver.Density),
	)

	idle, err := cfg.IdleTimeout()
	if err != nil {
		return err
	}
	opts := []display.Option{display.WithIdleTimeout(idle)}
	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.New(cfg.MQTT)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, display.WithPublisher(publisher))
		logger.Info("publishing display mode", "broker", cfg.MQTT.Broker, "topic", publisher.ModeTopic())
	}

	manager := display.NewManager(mirror, saver, opts...)
	defer manager.Close()

	if startSaver {
		if err := manager.ShowScreensaver(ctx); err != nil {
			return err
		}
	}

	srv := server.New(cfg.Server, cfg.Display.Width, cfg.Display.Height, manager, server.WithPreview(hub))
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func execPattern(ctx context.Context, cfg *config.Config, draw pattern.Pattern, interval time.Duration, frames int) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, quit, err := openPanel(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := withQuit(ctx, quit)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; frames == 0 || n < frames; n++ {
		if err := draw(p, n); err != nil {
			return fmt.Errorf("failed to draw frame %d: %w", n, err)
		}
		if err := p.Show(); err != nil {
			return fmt.Errorf("failed to show frame %d: %w", n, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

type uploadOptions struct {
	width       int
	height      int
	art         int
	passthrough bool
}

func execUpload(ctx context.Context, c *client.Client, source string, opts uploadOptions) error {
	data, contentType, err := readSource(ctx, source)
	if err != nil {
		return err
	}

	if opts.passthrough {
		return c.Upload(ctx, contentType, bytes.NewReader(data))
	}

	img, err := imaging.Decode(contentType, data, opts.width, opts.height)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", source, err)
	}
	img = imaging.Pixelate(img, opts.art)
	if err := c.UploadRGB(ctx, imaging.ToRGB(img)); err != nil {
		return err
	}
	log.Printf("Uploaded %s", source)
	return nil
}

// readSource loads a local file or fetches an http(s) URL
func readSource(ctx context.Context, source string) ([]byte, string, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, "", err
		}
		return data, detectType(source, data, ""), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := (&http.Client{Timeout: client.DefaultTimeout}).Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch %s: %s", source, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, detectType(source, data, resp.Header.Get("Content-Type")), nil
}

func detectType(name string, data []byte, header string) string {
	if strings.EqualFold(filepath.Ext(name), ".svg") || strings.HasPrefix(header, imaging.TypeSVG) {
		return imaging.TypeSVG
	}
	if strings.EqualFold(filepath.Ext(name), ".rgb") {
		return imaging.TypeRaw
	}
	if strings.HasPrefix(header, "image/") {
		return header
	}
	return http.DetectContentType(data)
}
