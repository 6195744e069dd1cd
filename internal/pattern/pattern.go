// Package pattern draws test patterns for checking a panel's wiring.
package pattern

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/fkcurrie/ledpanel-golang/internal/types"
)

// Canvas is a matrix with the drawing helpers the patterns use
type Canvas interface {
	types.Matrix
	Fill(c color.Color) error
	SetPixelHSV(x, y int, h, s, v float64) error
	Scroll(dx, dy int) error
}

// Pattern draws frame n of an animation into the back buffer. Frames are
// drawn in order starting at 0; the caller presents each one.
type Pattern func(c Canvas, n int) error

var (
	red    = color.RGBA{R: 255, A: 255}
	green  = color.RGBA{G: 255, A: 255}
	blue   = color.RGBA{B: 255, A: 255}
	white  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	yellow = color.RGBA{R: 255, G: 255, A: 255}
	black  = color.RGBA{A: 255}
)

// Named returns the pattern called name. text is used by the scroller.
func Named(name, text string) (Pattern, error) {
	switch name {
	case "colors":
		return Colors, nil
	case "checkerboard":
		return Checkerboard, nil
	case "rainbow":
		return Rainbow, nil
	case "text":
		return Text(text, red), nil
	}
	return nil, fmt.Errorf("unknown pattern %q, want one of %s", name, strings.Join(Names(), ", "))
}

// Names lists the patterns Named knows
func Names() []string {
	names := []string{"colors", "checkerboard", "rainbow", "text"}
	sort.Strings(names)
	return names
}

// Colors cycles solid red, green and blue, then alternating white pixels
func Colors(c Canvas, n int) error {
	switch n % 4 {
	case 0:
		return c.Fill(red)
	case 1:
		return c.Fill(green)
	case 2:
		return c.Fill(blue)
	}

	b := c.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := black
			if (x+y)%2 == 0 {
				px = white
			}
			if err := c.SetPixel(x, y, px); err != nil {
				return err
			}
		}
	}
	return nil
}

// Checkerboard draws 4x4 yellow cells that invert every 8 frames
func Checkerboard(c Canvas, n int) error {
	const cellSize = 4

	b := c.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := black
			if (y/cellSize+x/cellSize+n/8)%2 == 0 {
				px = yellow
			}
			if err := c.SetPixel(x, y, px); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rainbow draws a horizontal hue sweep on frame 0 and scrolls it left one
// pixel per frame after that
func Rainbow(c Canvas, n int) error {
	if n > 0 {
		return c.Scroll(1, 0)
	}

	b := c.Bounds()
	for x := 0; x < b.Dx(); x++ {
		hue := 360 * float64(x) / float64(b.Dx())
		for y := 0; y < b.Dy(); y++ {
			if err := c.SetPixelHSV(x, y, hue, 1, 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Text scrolls msg right to left in col, vertically centered. Each frame
// shifts the canvas one pixel and draws the next text column at the right
// edge; a screen width of blank columns separates repeats.
func Text(msg string, col color.Color) Pattern {
	msg = strings.ToUpper(msg)

	var columns []byte
	for _, r := range msg {
		columns = append(columns, glyph(r)...)
		columns = append(columns, make([]byte, glyphSpacing)...)
	}

	return func(c Canvas, n int) error {
		b := c.Bounds()
		if n == 0 {
			if err := c.Clear(); err != nil {
				return err
			}
		} else if err := c.Scroll(1, 0); err != nil {
			return err
		}

		var bits byte
		if i := n % (len(columns) + b.Dx()); i < len(columns) {
			bits = columns[i]
		}

		x := b.Dx() - 1
		top := (b.Dy() - glyphHeight) / 2
		for y := 0; y < b.Dy(); y++ {
			px := color.Color(black)
			if row := y - top; row >= 0 && row < glyphHeight && bits&(1<<row) != 0 {
				px = col
			}
			if err := c.SetPixel(x, y, px); err != nil {
				return err
			}
		}
		return nil
	}
}
