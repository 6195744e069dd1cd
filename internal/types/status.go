package types

import (
	"time"
)

// DisplayMode is what the panel is currently showing
type DisplayMode string

const (
	// Possible display modes
	ModeIdle        DisplayMode = "idle"
	ModeScreensaver DisplayMode = "screensaver"
	ModeImage       DisplayMode = "image"
)

// DisplayStatus is a point-in-time view of the display
type DisplayStatus struct {
	Mode       DisplayMode `json:"mode"`
	Since      time.Time   `json:"since"`
	Generation uint64      `json:"generation"`
	Population int         `json:"population"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
}

// ModeEvent is published whenever the display mode changes
type ModeEvent struct {
	Mode DisplayMode `json:"mode"`
	At   time.Time   `json:"at"`
}
