// Package screensaver runs Conway's Game of Life on a matrix, painting live
// cells in a slowly cycling rainbow color.
package screensaver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fkcurrie/ledpanel-golang/internal/life"
	"github.com/fkcurrie/ledpanel-golang/internal/logging"
	"github.com/fkcurrie/ledpanel-golang/internal/trigger"
	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

const (
	// DefaultTick is the time between generations
	DefaultTick = 300 * time.Millisecond
	// DefaultDensity is the fraction of cells alive in a fresh seed
	DefaultDensity = 0.5
)

var (
	// ErrSinkUnavailable is returned when no matrix has been attached
	ErrSinkUnavailable = errors.New("screensaver: matrix not initialized")
	// ErrTriggerUnavailable is returned when the tick timer cannot be created
	ErrTriggerUnavailable = errors.New("screensaver: failed to create tick timer")
	// ErrRunning is returned when the matrix is swapped while running
	ErrRunning = errors.New("screensaver: running")
)

// Controller owns the grid, the color cycler and the tick timer.
//
// While running, only the tick goroutine touches the grid, the cycler and the
// matrix. Start and Stop stop the timer first, which waits for an in-flight
// tick, before they touch any of them.
type Controller struct {
	width   int
	height  int
	period  time.Duration
	density float64

	matrix     types.Matrix
	rand       life.RandomSource
	newTrigger trigger.Factory
	log        *slog.Logger

	// mu serializes Start, Stop and SetMatrix. The tick never takes it.
	mu      sync.Mutex
	trigger trigger.Trigger
	running bool

	grid   *life.Grid
	cycler life.ColorCycler

	generation atomic.Uint64
	population atomic.Int64
}

// Option configures a Controller
type Option func(*Controller)

// WithMatrix sets the matrix the screensaver draws on
func WithMatrix(m types.Matrix) Option {
	return func(c *Controller) {
		c.matrix = m
	}
}

// WithRandom sets the random source used to seed the grid
func WithRandom(r life.RandomSource) Option {
	return func(c *Controller) {
		c.rand = r
	}
}

// WithTriggerFactory sets how the tick timer is created
func WithTriggerFactory(f trigger.Factory) Option {
	return func(c *Controller) {
		c.newTrigger = f
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithPeriod sets the time between generations
func WithPeriod(d time.Duration) Option {
	return func(c *Controller) {
		c.period = d
	}
}

// WithDensity sets the seed density; it is clamped when seeding
func WithDensity(d float64) Option {
	return func(c *Controller) {
		c.density = d
	}
}

// New creates an idle screensaver for a width x height grid
func New(width, height int, opts ...Option) *Controller {
	c := &Controller{
		width:      width,
		height:     height,
		period:     DefaultTick,
		density:    DefaultDensity,
		rand:       life.SystemRandom{},
		newTrigger: trigger.NewTickerTrigger,
		log:        logging.New("life screensaver"),
		grid:       life.NewGrid(width, height),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetMatrix attaches a matrix. It fails while the screensaver is running.
func (c *Controller) SetMatrix(m types.Matrix) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrRunning
	}
	c.matrix = m
	return nil
}

// Running reports whether generations are being drawn
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Generation returns the number of generations drawn since the last Start
func (c *Controller) Generation() uint64 {
	return c.generation.Load()
}

// Population returns the number of live cells on screen
func (c *Controller) Population() int {
	return int(c.population.Load())
}

// Start seeds a new random grid, draws it and starts the tick timer. Calling
// Start while running reseeds and restarts the timer.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.matrix == nil {
		c.log.Error("attempting to show screensaver on uninitialized matrix")
		return ErrSinkUnavailable
	}

	if c.trigger != nil {
		c.trigger.Stop()
	}
	c.running = false

	c.cycler.Start()
	c.grid.Reset()
	c.generation.Store(0)

	if err := c.matrix.Clear(); err != nil {
		return fmt.Errorf("failed to clear matrix: %w", err)
	}
	if err := c.grid.Seed(c.density, c.rand, c.plot); err != nil {
		return fmt.Errorf("failed to draw seed: %w", err)
	}
	if err := c.matrix.Show(); err != nil {
		return fmt.Errorf("failed to show seed: %w", err)
	}
	c.population.Store(int64(c.grid.Population()))

	r, g, b := c.cycler.RGB()
	c.log.Info("drew randomly generated tick",
		"population", c.grid.Population(), "r", r, "g", g, "b", b)

	if c.trigger == nil {
		t, err := c.newTrigger(c.period, c.tick)
		if err != nil {
			return errors.Join(fmt.Errorf("%w: %v", ErrTriggerUnavailable, err), c.blank())
		}
		c.trigger = t
	}
	if err := c.trigger.Start(); err != nil {
		return errors.Join(fmt.Errorf("failed to start tick timer: %w", err), c.blank())
	}
	c.running = true

	c.log.Info("started game of life screensaver", "tick", c.period)
	return nil
}

// Stop halts the tick timer, blanks the matrix and forgets the grid and color.
// No tick runs after Stop returns until the next Start. Stopping an idle
// screensaver is harmless but still presents a blank frame.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.matrix == nil {
		c.log.Error("attempting to stop screensaver on uninitialized matrix")
		return ErrSinkUnavailable
	}

	if c.trigger != nil {
		c.trigger.Stop()
	}
	c.running = false

	err := c.blank()
	c.log.Info("stopped game of life screensaver", "generations", c.generation.Load())
	return err
}

// blank presents an empty frame and forgets the grid and color. The state is
// reset even when the matrix fails.
func (c *Controller) blank() error {
	c.grid.Reset()
	c.cycler.Reset()
	c.population.Store(0)

	if err := c.matrix.Clear(); err != nil {
		return fmt.Errorf("failed to clear matrix: %w", err)
	}
	if err := c.matrix.Show(); err != nil {
		return fmt.Errorf("failed to show blank frame: %w", err)
	}
	return nil
}

// tick draws the next generation. It runs on the trigger goroutine.
func (c *Controller) tick() {
	if err := c.step(); err != nil {
		c.log.Error("failed to draw generation", "err", err)
	}
}

func (c *Controller) step() error {
	if err := c.matrix.Clear(); err != nil {
		return fmt.Errorf("failed to clear matrix: %w", err)
	}
	c.cycler.Advance()

	stepErr := c.grid.Step(c.plot)
	gen := c.generation.Add(1)
	c.population.Store(int64(c.grid.Population()))

	if err := c.matrix.Show(); err != nil {
		return errors.Join(stepErr, fmt.Errorf("failed to show generation: %w", err))
	}

	r, g, b := c.cycler.RGB()
	c.log.Debug("drew next tick",
		"generation", gen, "population", c.grid.Population(), "r", r, "g", g, "b", b)
	return stepErr
}

func (c *Controller) plot(x, y int) error {
	return c.matrix.SetPixel(x, y, c.cycler.Color())
}
