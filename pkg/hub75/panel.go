// Package hub75 drives a HUB75 RGB LED panel over GPIO character devices.
//
// The panel is scanned two rows at a time (one in each half) by a background
// refresh loop. Color depth comes from binary coded modulation: each bit plane
// of the frame is shown for a time proportional to its weight.
package hub75

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/fkcurrie/ledpanel-golang/internal/logging"
	"github.com/fkcurrie/ledpanel-golang/pkg/framebuffer"
)

// DefaultHold is how long the least significant bit plane is lit
const DefaultHold = 2 * time.Microsecond

// Pin drives one GPIO output line
type Pin interface {
	SetValue(value int) error
	Close() error
}

// Opener requests an output line at offset on chip
type Opener func(chip string, offset int) (Pin, error)

// Pins is the HUB75 pinout, as GPIO line offsets
type Pins struct {
	R1, G1, B1 int // color data for the upper half
	R2, G2, B2 int // color data for the lower half
	CLK        int // clock
	OE         int // output enable, active low
	LAT        int // latch
	A, B, C, D int // row address
	E          int // row address bit 4, 64 row panels only
}

// signal order; the first six are the data bits of a row word
const (
	sigR1 = iota
	sigG1
	sigB1
	sigR2
	sigG2
	sigB2
	sigCLK
	sigOE
	sigLAT
	sigA
	sigB
	sigC
	sigD
	sigE
	numSignals
)

func (p Pins) offsets() [numSignals]int {
	return [numSignals]int{
		p.R1, p.G1, p.B1,
		p.R2, p.G2, p.B2,
		p.CLK, p.OE, p.LAT,
		p.A, p.B, p.C, p.D, p.E,
	}
}

// Config describes a panel and how it is wired
type Config struct {
	Width      int
	Height     int
	Brightness int // 1-255
	Planes     int // bit planes per color channel, 1-8
	Chip       string
	Pins       Pins
	Hold       time.Duration // zero means DefaultHold
}

// Option configures a Panel
type Option func(*Panel)

// WithOpener replaces the GPIO line requester
func WithOpener(o Opener) Option {
	return func(p *Panel) {
		p.open = o
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Panel) {
		p.log = l
	}
}

// Panel is a framebuffer whose presented frames are scanned out to a HUB75
// panel
type Panel struct {
	*framebuffer.Buffer

	cfg  Config
	open Opener
	log  *slog.Logger

	lines [numSignals]Pin

	mu         sync.Mutex
	brightness int
	planes     [][][]byte // [plane][row][column]
	stop       chan struct{}
	done       chan struct{}
}

// New requests the panel's GPIO lines. The refresh loop is started with Start.
func New(cfg Config, opts ...Option) (*Panel, error) {
	if cfg.Height <= 0 || cfg.Height%2 != 0 {
		return nil, fmt.Errorf("panel height must be positive and even, got %d", cfg.Height)
	}
	if cfg.Planes < 1 || cfg.Planes > 8 {
		return nil, fmt.Errorf("planes must be between 1 and 8, got %d", cfg.Planes)
	}
	if cfg.Brightness < 1 || cfg.Brightness > 255 {
		return nil, fmt.Errorf("brightness must be between 1 and 255")
	}
	if cfg.Hold <= 0 {
		cfg.Hold = DefaultHold
	}

	buf, err := framebuffer.New(cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}

	p := &Panel{
		Buffer:     buf,
		cfg:        cfg,
		open:       requestLine,
		log:        logging.New("hub75"),
		brightness: cfg.Brightness,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.log.Debug("requesting GPIO lines", "chip", cfg.Chip)
	for sig, offset := range cfg.Pins.offsets() {
		line, err := p.open(cfg.Chip, offset)
		if err != nil {
			p.closeLines()
			return nil, fmt.Errorf("failed to request GPIO line %d: %w", offset, err)
		}
		p.lines[sig] = line
	}

	// blank until the first frame is latched
	if err := p.set(sigOE, 1); err != nil {
		p.closeLines()
		return nil, err
	}
	return p, nil
}

func requestLine(chip string, offset int) (Pin, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return line, nil
}

// Start launches the refresh loop
func (p *Panel) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
}

// Show presents the back buffer and hands it to the refresh loop
func (p *Panel) Show() error {
	if err := p.Buffer.Show(); err != nil {
		return err
	}
	frame := p.Frame()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.planes = encode(frame, p.cfg.Width, p.cfg.Height, p.cfg.Planes, p.brightness)
	return nil
}

// SetBrightness scales every channel by brightness/255 from the next Show
func (p *Panel) SetBrightness(brightness int) error {
	if brightness < 1 || brightness > 255 {
		return fmt.Errorf("brightness must be between 1 and 255")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.brightness = brightness
	return nil
}

// Brightness returns the current brightness
func (p *Panel) Brightness() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.brightness
}

// Close stops the refresh loop, blanks the panel and releases the lines
func (p *Panel) Close() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	err := p.set(sigOE, 1)
	return errors.Join(err, p.closeLines())
}

func (p *Panel) closeLines() error {
	var errs []error
	for sig, line := range p.lines {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close GPIO line %d: %w", p.cfg.Pins.offsets()[sig], err))
		}
		p.lines[sig] = nil
	}
	return errors.Join(errs...)
}

func (p *Panel) run(stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := p.refresh(); err != nil {
			p.log.Error("failed to refresh panel", "err", err)
			select {
			case <-stop:
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

// refresh scans every row pair once, every bit plane of each
func (p *Panel) refresh() error {
	p.mu.Lock()
	planes := p.planes
	p.mu.Unlock()

	if planes == nil {
		time.Sleep(time.Millisecond)
		return nil
	}

	for row := 0; row < p.cfg.Height/2; row++ {
		for plane := range planes {
			if err := p.scanRow(row, planes[plane][row], p.cfg.Hold<<plane); err != nil {
				return fmt.Errorf("failed to scan row %d: %w", row, err)
			}
		}
	}
	return p.set(sigOE, 1)
}

// scanRow shifts one row of words in, latches it and lights it for hold
func (p *Panel) scanRow(row int, words []byte, hold time.Duration) error {
	for _, word := range words {
		for sig := sigR1; sig <= sigB2; sig++ {
			if err := p.set(sig, int(word>>sig)&1); err != nil {
				return err
			}
		}
		if err := p.set(sigCLK, 1); err != nil {
			return err
		}
		if err := p.set(sigCLK, 0); err != nil {
			return err
		}
	}

	// disable output while the address and latch change
	if err := p.set(sigOE, 1); err != nil {
		return err
	}
	for bit, sig := range []int{sigA, sigB, sigC, sigD, sigE} {
		if err := p.set(sig, (row>>bit)&1); err != nil {
			return err
		}
	}
	if err := p.set(sigLAT, 1); err != nil {
		return err
	}
	if err := p.set(sigLAT, 0); err != nil {
		return err
	}
	if err := p.set(sigOE, 0); err != nil {
		return err
	}
	time.Sleep(hold)
	return nil
}

func (p *Panel) set(sig, value int) error {
	line := p.lines[sig]
	if line == nil {
		return fmt.Errorf("GPIO line %d not requested", p.cfg.Pins.offsets()[sig])
	}
	return line.SetValue(value)
}

// encode splits an RGB888 frame into bit planes of row words
func encode(frame []byte, width, height, planes, brightness int) [][][]byte {
	half := height / 2
	out := make([][][]byte, planes)
	for plane := range out {
		out[plane] = make([][]byte, half)
		for row := 0; row < half; row++ {
			out[plane][row] = rowBits(frame, width, height, row, plane, planes, brightness)
		}
	}
	return out
}

// rowBits packs one scan row of an RGB888 frame for a single bit plane. Each
// word carries R1 G1 B1 R2 G2 B2 in bits 0 to 5: the upper half of the panel
// drives the 1 lines and the lower half the 2 lines. Plane 0 is the least
// significant of the planes most significant bits of each scaled channel.
func rowBits(frame []byte, width, height, row, plane, planes, brightness int) []byte {
	half := height / 2
	shift := 8 - planes + plane
	words := make([]byte, width)
	for x := 0; x < width; x++ {
		upper := (row*width + x) * 3
		lower := ((row+half)*width + x) * 3
		var word byte
		for i := 0; i < 3; i++ {
			word |= channelBit(frame[upper+i], shift, brightness) << i
			word |= channelBit(frame[lower+i], shift, brightness) << (i + 3)
		}
		words[x] = word
	}
	return words
}

func channelBit(v byte, shift, brightness int) byte {
	scaled := int(v) * brightness / 255
	return byte(scaled>>shift) & 1
}
