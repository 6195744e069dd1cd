// Package framebuffer provides a double-buffered in-memory RGB frame. It backs
// every display driver and can be used on its own as a headless matrix.
package framebuffer

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
)

// Buffer is a back buffer for drawing and a front buffer holding the last
// presented frame
type Buffer struct {
	width  int
	height int
	mutex  sync.Mutex
	back   []color.RGBA
	front  []color.RGBA
	frames uint64
}

// New creates a black buffer of the given dimensions
func New(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}
	b := &Buffer{
		width:  width,
		height: height,
		back:   make([]color.RGBA, width*height),
		front:  make([]color.RGBA, width*height),
	}
	b.fill(b.back, color.RGBA{A: 255})
	b.fill(b.front, color.RGBA{A: 255})
	return b, nil
}

// Bounds returns the drawable area
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.width, b.height)
}

// Close is a no-op; the buffer holds no device
func (b *Buffer) Close() error {
	return nil
}

// Clear blanks the back buffer
func (b *Buffer) Clear() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.fill(b.back, color.RGBA{A: 255})
	return nil
}

// SetPixel sets a back buffer pixel's color
func (b *Buffer) SetPixel(x, y int, c color.Color) error {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return fmt.Errorf("coordinates out of bounds: (%d, %d)", x, y)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.back[y*b.width+x] = toRGBA(c)
	return nil
}

// SetPixelHSV sets a back buffer pixel from hue in degrees and saturation and
// value in [0, 1]
func (b *Buffer) SetPixelHSV(x, y int, h, s, v float64) error {
	r, g, bl := colorful.Hsv(h, s, v).Clamped().RGB255()
	return b.SetPixel(x, y, color.RGBA{R: r, G: g, B: bl, A: 255})
}

// Show presents the back buffer. The back buffer keeps its contents, so a
// frame can be drawn incrementally from the previous one.
func (b *Buffer) Show() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	copy(b.front, b.back)
	b.frames++
	return nil
}

// Fill sets every back buffer pixel to c
func (b *Buffer) Fill(c color.Color) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.fill(b.back, toRGBA(c))
	return nil
}

// SetImage copies img into the back buffer; dimensions must match
func (b *Buffer) SetImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() != b.width || bounds.Dy() != b.height {
		return fmt.Errorf("image dimensions (%dx%d) do not match matrix dimensions (%dx%d)",
			bounds.Dx(), bounds.Dy(), b.width, b.height)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			b.back[y*b.width+x] = toRGBA(img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return nil
}

// Scroll shifts the back buffer by (dx, dy), wrapping at the edges. Pixel
// (x, y) takes the value previously at (x+dx, y+dy).
func (b *Buffer) Scroll(dx, dy int) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	scrolled := make([]color.RGBA, len(b.back))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			srcX := ((x+dx)%b.width + b.width) % b.width
			srcY := ((y+dy)%b.height + b.height) % b.height
			scrolled[y*b.width+x] = b.back[srcY*b.width+srcX]
		}
	}
	b.back = scrolled
	return nil
}

// PixelAt returns the presented color at (x, y)
func (b *Buffer) PixelAt(x, y int) (color.RGBA, error) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return color.RGBA{}, fmt.Errorf("coordinates out of bounds: (%d, %d)", x, y)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.front[y*b.width+x], nil
}

// Frame returns the presented frame as packed RGB888, row-major
func (b *Buffer) Frame() []byte {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	data := make([]byte, len(b.front)*3)
	for i, c := range b.front {
		offset := i * 3
		data[offset] = c.R
		data[offset+1] = c.G
		data[offset+2] = c.B
	}
	return data
}

// Snapshot returns a copy of the presented frame
func (b *Buffer) Snapshot() *image.RGBA {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	for i, c := range b.front {
		img.SetRGBA(i%b.width, i/b.width, c)
	}
	return img
}

// Frames returns how many times Show has been called
func (b *Buffer) Frames() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.frames
}

// fill assumes the mutex is held
func (b *Buffer) fill(buf []color.RGBA, c color.RGBA) {
	for i := range buf {
		buf[i] = c
	}
}

func toRGBA(c color.Color) color.RGBA {
	if rgba, ok := c.(color.RGBA); ok {
		return rgba
	}
	r, g, b, _ := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
}
