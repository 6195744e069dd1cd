// Package termsink shows a matrix in a terminal, two pixels per character
// cell using upper half blocks.
package termsink

import (
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/fkcurrie/ledpanel-golang/pkg/framebuffer"
)

const halfBlock = '▀'

// Sink is a matrix drawn on a tcell screen
type Sink struct {
	*framebuffer.Buffer

	screen   tcell.Screen
	quit     chan struct{}
	quitOnce sync.Once
}

// NewTerminal takes over the controlling terminal
func NewTerminal(width, height int) (*Sink, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	s, err := New(width, height, screen)
	if err != nil {
		screen.Fini()
		return nil, err
	}
	return s, nil
}

// New draws on an initialized screen. The sink owns the screen from here on.
func New(width, height int, screen tcell.Screen) (*Sink, error) {
	buf, err := framebuffer.New(width, height)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		Buffer: buf,
		screen: screen,
		quit:   make(chan struct{}),
	}
	screen.HideCursor()
	screen.Clear()
	go s.pollEvents()
	return s, nil
}

// Quit is closed when the user presses Escape, q or Ctrl-C
func (s *Sink) Quit() <-chan struct{} {
	return s.quit
}

// Show presents the back buffer and redraws the terminal
func (s *Sink) Show() error {
	if err := s.Buffer.Show(); err != nil {
		return err
	}
	frame := s.Snapshot()
	bounds := frame.Bounds()

	for y := 0; y < bounds.Dy(); y += 2 {
		for x := 0; x < bounds.Dx(); x++ {
			upper := frame.RGBAAt(x, y)
			lower := color.RGBA{A: 255}
			if y+1 < bounds.Dy() {
				lower = frame.RGBAAt(x, y+1)
			}
			style := tcell.StyleDefault.
				Foreground(rgb(upper)).
				Background(rgb(lower))
			s.screen.SetContent(x, y/2, halfBlock, nil, style)
		}
	}
	s.screen.Show()
	return nil
}

// Close restores the terminal
func (s *Sink) Close() error {
	s.screen.Fini()
	s.stop()
	return nil
}

func (s *Sink) stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// pollEvents runs until Fini makes PollEvent return nil
func (s *Sink) pollEvents() {
	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				s.stop()
			}
		case *tcell.EventResize:
			s.screen.Sync()
		}
	}
}

func rgb(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
