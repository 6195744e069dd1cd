package life

import "image/color"

// ColorStep is the amount a channel moves per Advance. 255 is a multiple of
// it, so every channel lands exactly on 0 or 255 at the end of a phase.
const ColorStep = 15

const channelMax = 255

// ColorCycler walks the hue wheel red, yellow, green, cyan, blue, magenta.
// The zero value is black and does not move until Start is called.
type ColorCycler struct {
	r, g, b uint8
}

// Start sets the cycler to pure red
func (c *ColorCycler) Start() {
	c.r, c.g, c.b = channelMax, 0, 0
}

// Reset sets the cycler to black
func (c *ColorCycler) Reset() {
	c.r, c.g, c.b = 0, 0, 0
}

// RGB returns the current channel values
func (c *ColorCycler) RGB() (r, g, b uint8) {
	return c.r, c.g, c.b
}

// Color returns the current color as an opaque RGBA value
func (c *ColorCycler) Color() color.RGBA {
	return color.RGBA{R: c.r, G: c.g, B: c.b, A: 255}
}

// Advance moves at most one channel by ColorStep. Branches are checked in
// order and the first one that changes a channel ends the call.
func (c *ColorCycler) Advance() {
	if c.r == channelMax {
		if c.b == 0 && c.g != channelMax {
			c.g = up(c.g)
			return
		}
		if c.g == 0 {
			c.b = down(c.b)
			return
		}
	}
	if c.g == channelMax {
		if c.r == 0 && c.b != channelMax {
			c.b = up(c.b)
			return
		}
		if c.b == 0 {
			c.r = down(c.r)
			return
		}
	}
	if c.b == channelMax {
		if c.g == 0 && c.r != channelMax {
			c.r = up(c.r)
			return
		}
		if c.r == 0 {
			c.g = down(c.g)
			return
		}
	}
}

func up(v uint8) uint8 {
	if v > channelMax-ColorStep {
		return channelMax
	}
	return v + ColorStep
}

func down(v uint8) uint8 {
	if v < ColorStep {
		return 0
	}
	return v - ColorStep
}
