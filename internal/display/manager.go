// Package display decides what the panel shows: an uploaded image or the
// screensaver.
package display

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/fkcurrie/ledpanel-golang/internal/imaging"
	"github.com/fkcurrie/ledpanel-golang/internal/logging"
	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

// Screensaver is the animation shown when no image is up
type Screensaver interface {
	Start() error
	Stop() error
	Running() bool
	Generation() uint64
	Population() int
}

// Publisher announces display mode changes
type Publisher interface {
	PublishMode(ctx context.Context, event types.ModeEvent) error
}

// Option configures a Manager
type Option func(*Manager)

// WithPublisher sets where mode changes are announced
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithIdleTimeout makes the screensaver resume d after the last image.
// Zero keeps images up until replaced.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.idle = d
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// Manager arbitrates the matrix between uploaded images and the screensaver
type Manager struct {
	matrix    types.Matrix
	saver     Screensaver
	publisher Publisher
	idle      time.Duration
	log       *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	mode  types.DisplayMode
	since time.Time
	timer *time.Timer
	// epoch invalidates idle timers that fire after the mode moved on
	epoch uint64
	seq   uint64

	// pubMu orders publishes without holding mu across the broker round trip
	pubMu     sync.Mutex
	published uint64
}

type modeEvent struct {
	types.ModeEvent
	seq uint64
}

// NewManager creates an idle manager. The screensaver must draw on matrix.
func NewManager(matrix types.Matrix, saver Screensaver, opts ...Option) *Manager {
	m := &Manager{
		matrix: matrix,
		saver:  saver,
		log:    logging.New("display"),
		now:    time.Now,
		mode:   types.ModeIdle,
	}
	m.since = m.now()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ShowImage stops the screensaver and presents img, scaled to the panel if
// needed. If drawing fails the display is left idle.
func (m *Manager) ShowImage(ctx context.Context, img image.Image) error {
	m.mu.Lock()
	m.cancelIdle()
	if m.saver.Running() {
		if err := m.saver.Stop(); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("failed to stop screensaver: %w", err)
		}
	}

	if err := m.draw(img); err != nil {
		event := m.setMode(types.ModeIdle)
		m.mu.Unlock()
		m.publish(ctx, event)
		return err
	}

	event := m.setMode(types.ModeImage)
	if m.idle > 0 {
		epoch := m.epoch
		m.timer = time.AfterFunc(m.idle, func() { m.idleExpired(epoch) })
	}
	m.mu.Unlock()

	m.publish(ctx, event)
	return nil
}

// ShowScreensaver starts the screensaver, reseeding it if already running
func (m *Manager) ShowScreensaver(ctx context.Context) error {
	m.mu.Lock()
	m.cancelIdle()
	if err := m.saver.Start(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to start screensaver: %w", err)
	}
	event := m.setMode(types.ModeScreensaver)
	m.mu.Unlock()

	m.publish(ctx, event)
	return nil
}

// Status reports what is on the panel
func (m *Manager) Status() types.DisplayStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	bounds := m.matrix.Bounds()
	status := types.DisplayStatus{
		Mode:   m.mode,
		Since:  m.since,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
	if m.mode == types.ModeScreensaver {
		status.Generation = m.saver.Generation()
		status.Population = m.saver.Population()
	}
	return status
}

// Close stops the screensaver and any pending idle timer
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelIdle()
	var err error
	if m.saver.Running() {
		err = m.saver.Stop()
	}
	m.mode = types.ModeIdle
	m.since = m.now()
	return err
}

func (m *Manager) draw(img image.Image) error {
	bounds := m.matrix.Bounds()
	if img.Bounds().Size() != bounds.Size() {
		img = imaging.Fit(img, bounds.Dx(), bounds.Dy())
	}
	src := img.Bounds()

	if err := m.matrix.Clear(); err != nil {
		return fmt.Errorf("failed to clear matrix: %w", err)
	}
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if err := m.matrix.SetPixel(x, y, img.At(src.Min.X+x, src.Min.Y+y)); err != nil {
				return fmt.Errorf("failed to draw image: %w", err)
			}
		}
	}
	if err := m.matrix.Show(); err != nil {
		return fmt.Errorf("failed to show image: %w", err)
	}
	return nil
}

func (m *Manager) idleExpired(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.mode != types.ModeImage {
		m.mu.Unlock()
		return
	}
	m.log.Info("image idle timeout, resuming screensaver", "after", m.idle)
	if err := m.saver.Start(); err != nil {
		m.mu.Unlock()
		m.log.Error("failed to resume screensaver", "err", err)
		return
	}
	event := m.setMode(types.ModeScreensaver)
	m.mu.Unlock()

	m.publish(context.Background(), event)
}

// cancelIdle assumes the mutex is held
func (m *Manager) cancelIdle() {
	m.epoch++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// setMode assumes the mutex is held. The returned event is published with
// publish once the mutex is released.
func (m *Manager) setMode(mode types.DisplayMode) modeEvent {
	m.mode = mode
	m.since = m.now()
	m.seq++
	m.log.Info("display mode changed", "mode", mode)
	return modeEvent{ModeEvent: types.ModeEvent{Mode: mode, At: m.since}, seq: m.seq}
}

// publish announces a mode change. Events overtaken by a newer one that was
// already published are dropped so the broker never ends on a stale mode.
func (m *Manager) publish(ctx context.Context, event modeEvent) {
	if m.publisher == nil {
		return
	}

	m.pubMu.Lock()
	defer m.pubMu.Unlock()
	if event.seq <= m.published {
		return
	}
	m.published = event.seq

	if err := m.publisher.PublishMode(ctx, event.ModeEvent); err != nil {
		m.log.Warn("failed to publish display mode", "mode", event.Mode, "err", err)
	}
}
