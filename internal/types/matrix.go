package types

import (
	"image"
	"image/color"
)

// Matrix is a double-buffered pixel target. Drawing calls write the back
// buffer; Show makes it visible.
type Matrix interface {
	// Clear blanks the back buffer
	Clear() error
	// SetPixel sets a back buffer pixel; x < width, y < height
	SetPixel(x, y int, c color.Color) error
	// Show presents the back buffer
	Show() error
	// Bounds returns the drawable area, anchored at the origin
	Bounds() image.Rectangle
	// Close releases the underlying device
	Close() error
}
