package life

import (
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestColorCyclerRedToYellow(t *testing.T) {
	var c ColorCycler
	c.Start()

	for i := 0; i < 17; i++ {
		c.Advance()
		r, g, b := c.RGB()
		if r != 255 || b != 0 || g != uint8((i+1)*ColorStep) {
			t.Fatalf("after %d advances got (%d, %d, %d)", i+1, r, g, b)
		}
	}

	if r, g, b := c.RGB(); r != 255 || g != 255 || b != 0 {
		t.Errorf("RGB() = (%d, %d, %d), want (255, 255, 0)", r, g, b)
	}
}

func TestColorCyclerPhases(t *testing.T) {
	var c ColorCycler
	c.Start()

	want := [][3]uint8{
		{255, 255, 0}, // yellow
		{0, 255, 0},   // green
		{0, 255, 255}, // cyan
		{0, 0, 255},   // blue
		{255, 0, 255}, // magenta
		{255, 0, 0},   // red
	}
	for _, w := range want {
		for i := 0; i < 255/ColorStep; i++ {
			c.Advance()
		}
		if r, g, b := c.RGB(); r != w[0] || g != w[1] || b != w[2] {
			t.Fatalf("RGB() = (%d, %d, %d), want %v", r, g, b, w)
		}
	}
}

func TestColorCyclerExhaustive(t *testing.T) {
	var c ColorCycler
	c.Start()
	start := c.Color()

	const period = 6 * 255 / ColorStep
	seen := map[[3]uint8]int{}
	for i := 1; i <= 5000; i++ {
		prev := c.Color()
		c.Advance()
		r, g, b := c.RGB()

		// one channel saturated high and one at zero, always
		hasHigh := r == 255 || g == 255 || b == 255
		hasLow := r == 0 || g == 0 || b == 0
		if !hasHigh || !hasLow {
			t.Fatalf("step %d: (%d, %d, %d) left the hue wheel", i, r, g, b)
		}

		changed := 0
		for _, d := range []int{int(r) - int(prev.R), int(g) - int(prev.G), int(b) - int(prev.B)} {
			if d != 0 {
				changed++
				if d != ColorStep && d != -ColorStep {
					t.Fatalf("step %d: channel moved by %d", i, d)
				}
			}
		}
		if changed != 1 {
			t.Fatalf("step %d: %d channels changed, want 1", i, changed)
		}

		key := [3]uint8{r, g, b}
		if first, ok := seen[key]; ok && i-first != period {
			t.Fatalf("state %v repeated after %d steps, want %d", key, i-first, period)
		}
		seen[key] = i

		if i%period == 0 && c.Color() != start {
			t.Fatalf("step %d: got %v, want to be back at %v", i, c.Color(), start)
		}
	}
	if len(seen) != period {
		t.Errorf("visited %d distinct colors, want %d", len(seen), period)
	}
}

func TestColorCyclerHueAdvances(t *testing.T) {
	var c ColorCycler
	c.Start()

	total := 0.0
	prev, _, _ := toColorful(c).Hsv()
	for i := 0; i < 6*255/ColorStep; i++ {
		c.Advance()
		h, s, v := toColorful(c).Hsv()
		if s != 1 || v != 1 {
			t.Fatalf("step %d: saturation %v value %v, want fully saturated", i, s, v)
		}
		delta := math.Mod(h-prev+360, 360)
		if delta <= 0 || delta > 10 {
			t.Fatalf("step %d: hue moved %v degrees", i, delta)
		}
		total += delta
		prev = h
	}
	if math.Abs(total-360) > 1e-6 {
		t.Errorf("hue travelled %v degrees over one period, want 360", total)
	}
}

func TestColorCyclerReset(t *testing.T) {
	var c ColorCycler
	c.Start()
	c.Advance()
	c.Reset()
	if r, g, b := c.RGB(); r != 0 || g != 0 || b != 0 {
		t.Errorf("RGB() after Reset() = (%d, %d, %d), want (0, 0, 0)", r, g, b)
	}

	// black sits off the wheel and stays put
	c.Advance()
	if r, g, b := c.RGB(); r != 0 || g != 0 || b != 0 {
		t.Errorf("Advance() from black moved to (%d, %d, %d)", r, g, b)
	}
}

func TestColorCyclerSaturates(t *testing.T) {
	c := ColorCycler{r: 255, g: 250, b: 0}
	c.Advance()
	if _, g, _ := c.RGB(); g != 255 {
		t.Errorf("green = %d, want clamped to 255", g)
	}

	c = ColorCycler{r: 255, g: 0, b: 10}
	c.Advance()
	if _, _, b := c.RGB(); b != 0 {
		t.Errorf("blue = %d, want clamped to 0", b)
	}
}

func toColorful(c ColorCycler) colorful.Color {
	r, g, b := c.RGB()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}
