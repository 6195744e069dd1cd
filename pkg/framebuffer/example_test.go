package framebuffer_test

import (
	"fmt"
	"image/color"

	"github.com/fkcurrie/ledpanel-golang/pkg/framebuffer"
)

func Example() {
	fb, err := framebuffer.New(4, 1)
	if err != nil {
		fmt.Printf("Failed to create buffer: %v\n", err)
		return
	}
	defer fb.Close()

	colors := []color.Color{
		color.RGBA{255, 0, 0, 255},   // Red
		color.RGBA{0, 255, 0, 255},   // Green
		color.RGBA{0, 0, 255, 255},   // Blue
		color.RGBA{255, 255, 0, 255}, // Yellow
	}
	for i, c := range colors {
		if err := fb.SetPixel(i, 0, c); err != nil {
			fmt.Printf("Failed to set pixel: %v\n", err)
			return
		}
	}

	// Nothing is visible until the frame is shown
	fmt.Println(fb.Frame()[:3])
	_ = fb.Show()
	fmt.Println(fb.Frame())

	// Output:
	// [0 0 0]
	// [255 0 0 0 255 0 0 0 255 255 255 0]
}

func ExampleBuffer_SetPixelHSV() {
	fb, _ := framebuffer.New(1, 1)

	// Hue 240 is blue
	_ = fb.SetPixelHSV(0, 0, 240, 1, 1)
	_ = fb.Show()

	c, _ := fb.PixelAt(0, 0)
	fmt.Println(c.R, c.G, c.B)
	// Output: 0 0 255
}
