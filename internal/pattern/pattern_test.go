package pattern

import (
	"image/color"
	"testing"

	"github.com/fkcurrie/ledpanel-golang/pkg/framebuffer"
)

func render(t *testing.T, p Pattern, w, h, frames int) *framebuffer.Buffer {
	t.Helper()
	fb, err := framebuffer.New(w, h)
	if err != nil {
		t.Fatalf("framebuffer.New() error = %v", err)
	}
	for n := 0; n < frames; n++ {
		if err := p(fb, n); err != nil {
			t.Fatalf("frame %d error = %v", n, err)
		}
		_ = fb.Show()
	}
	return fb
}

func TestColors(t *testing.T) {
	tests := []struct {
		frames int
		at     [2]int
		want   color.RGBA
	}{
		{1, [2]int{3, 1}, red},
		{2, [2]int{3, 1}, green},
		{3, [2]int{3, 1}, blue},
		{4, [2]int{0, 0}, white},
		{4, [2]int{1, 0}, black},
		{5, [2]int{1, 0}, red},
	}

	for _, tt := range tests {
		fb := render(t, Colors, 4, 2, tt.frames)
		if got, _ := fb.PixelAt(tt.at[0], tt.at[1]); got != tt.want {
			t.Errorf("after %d frames pixel %v = %v, want %v", tt.frames, tt.at, got, tt.want)
		}
	}
}

func TestCheckerboard(t *testing.T) {
	fb := render(t, Checkerboard, 8, 8, 1)
	if got, _ := fb.PixelAt(0, 0); got != yellow {
		t.Errorf("cell (0, 0) = %v, want yellow", got)
	}
	if got, _ := fb.PixelAt(4, 0); got != black {
		t.Errorf("cell (4, 0) = %v, want black", got)
	}

	// inverted after 8 frames
	fb = render(t, Checkerboard, 8, 8, 9)
	if got, _ := fb.PixelAt(0, 0); got != black {
		t.Errorf("cell (0, 0) at frame 8 = %v, want black", got)
	}
}

func TestRainbowScrolls(t *testing.T) {
	first := render(t, Rainbow, 6, 1, 1)
	if got, _ := first.PixelAt(0, 0); got != red {
		t.Errorf("hue 0 = %v, want red", got)
	}

	later := render(t, Rainbow, 6, 1, 3)
	for x := 0; x < 6; x++ {
		want, _ := first.PixelAt((x+2)%6, 0)
		if got, _ := later.PixelAt(x, 0); got != want {
			t.Errorf("pixel %d after 2 scrolls = %v, want %v", x, got, want)
		}
	}
}

func TestTextScrolls(t *testing.T) {
	// 'I' is {0x00, 0x41, 0x7F, 0x41, 0x00}; the full stroke is its third column
	p := Text("i", red)

	fb := render(t, p, 8, 7, 3)
	for y := 0; y < 7; y++ {
		if got, _ := fb.PixelAt(7, y); got != red {
			t.Errorf("right edge row %d = %v, want red", y, got)
		}
	}

	fb = render(t, p, 8, 7, 5)
	for y := 0; y < 7; y++ {
		if got, _ := fb.PixelAt(5, y); got != red {
			t.Errorf("stroke row %d after 2 more frames = %v, want red", y, got)
		}
	}
	if got, _ := fb.PixelAt(6, 0); got != red {
		t.Errorf("serif = %v, want red", got)
	}
	if got, _ := fb.PixelAt(6, 3); got != black {
		t.Errorf("gap beside stroke = %v, want black", got)
	}
}

func TestTextBlankBetweenRepeats(t *testing.T) {
	p := Text("-", red)
	// 6 text columns then 4 blank ones
	fb := render(t, p, 4, 7, 10)
	for x := 0; x < 4; x++ {
		for y := 0; y < 7; y++ {
			if got, _ := fb.PixelAt(x, y); got != black {
				t.Fatalf("pixel (%d, %d) = %v, want blank between repeats", x, y, got)
			}
		}
	}
}

func TestNamed(t *testing.T) {
	for _, name := range Names() {
		if _, err := Named(name, "HI"); err != nil {
			t.Errorf("Named(%q) error = %v", name, err)
		}
	}
	if _, err := Named("plaid", ""); err == nil {
		t.Error("Named(plaid) returned no error")
	}
}
