// Package life implements the Game of Life screensaver state: a double-buffered
// toroidal grid and the rainbow color cycler used to paint live cells.
package life

import (
	"math"
)

const (
	// MinimumDensity is the lowest seed density accepted by Seed
	MinimumDensity = 0.05
	// MaximumDensity is the highest seed density accepted by Seed
	MaximumDensity = 1.0
)

// RandomSource provides uniformly distributed 32-bit values
type RandomSource interface {
	Uint32() uint32
}

// PlotFunc draws a live cell at (x, y)
type PlotFunc func(x, y int) error

// Grid holds the current generation and a scratch buffer for the next one
type Grid struct {
	width   int
	height  int
	current []bool
	next    []bool
}

// NewGrid creates an empty grid of the given dimensions
func NewGrid(width, height int) *Grid {
	return &Grid{
		width:   width,
		height:  height,
		current: make([]bool, width*height),
		next:    make([]bool, width*height),
	}
}

// Width returns the number of columns
func (g *Grid) Width() int {
	return g.width
}

// Height returns the number of rows
func (g *Grid) Height() int {
	return g.height
}

// Alive reports whether the cell at (x, y) is alive in the current generation
func (g *Grid) Alive(x, y int) bool {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return false
	}
	return g.current[y*g.width+x]
}

// Set marks a cell of the current generation alive or dead
func (g *Grid) Set(x, y int, alive bool) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return
	}
	g.current[y*g.width+x] = alive
}

// Population returns the number of live cells in the current generation
func (g *Grid) Population() int {
	n := 0
	for _, alive := range g.current {
		if alive {
			n++
		}
	}
	return n
}

// Cells returns a copy of the current generation in row-major order
func (g *Grid) Cells() []bool {
	cells := make([]bool, len(g.current))
	copy(cells, g.current)
	return cells
}

// Reset kills every cell in both buffers
func (g *Grid) Reset() {
	clear(g.current)
	clear(g.next)
}

// ClampDensity limits density to [MinimumDensity, MaximumDensity]
func ClampDensity(density float64) float64 {
	if density > MaximumDensity {
		return MaximumDensity
	}
	// NaN fails every comparison and ends up at the minimum
	if !(density >= MinimumDensity) {
		return MinimumDensity
	}
	return density
}

// Seed marks cells alive at random so that roughly density of them live.
// One sample is drawn per cell in row-major order, and every cell marked alive
// is passed to plot. The sink must be cleared by the caller beforehand.
func (g *Grid) Seed(density float64, rnd RandomSource, plot PlotFunc) error {
	cutoff := uint32(math.MaxUint32 * ClampDensity(density))

	var firstErr error
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if rnd.Uint32() > cutoff {
				continue
			}
			g.current[y*g.width+x] = true
			if err := plot(x, y); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Step computes the next generation from the current one, plots every cell
// alive in it, then swaps the buffers. Neighbor counts only read the previous
// generation, and plotting starts once the whole generation is known, so
// nothing a plot callback does can leak into the counts. The first plot error,
// if any, is returned after the swap.
func (g *Grid) Step(plot PlotFunc) error {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			n := g.neighbors(x, y)
			g.next[y*g.width+x] = n == 3 || (n == 2 && g.current[y*g.width+x])
		}
	}

	var firstErr error
	for i, alive := range g.next {
		if !alive {
			continue
		}
		if err := plot(i%g.width, i/g.width); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	g.current, g.next = g.next, g.current
	clear(g.next)
	return firstErr
}

// neighbors counts live cells among the eight wrapped neighbors of (x, y)
func (g *Grid) neighbors(x, y int) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		ny := (y + dy + g.height) % g.height
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx := (x + dx + g.width) % g.width
			if g.current[ny*g.width+nx] {
				n++
			}
		}
	}
	return n
}
