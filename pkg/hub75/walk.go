package hub75

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var signalNames = [numSignals]string{
	"R1", "G1", "B1",
	"R2", "G2", "B2",
	"CLK", "OE", "LAT",
	"A", "B", "C", "D", "E",
}

// Walk drives each panel line high for hold and then low again, one at a
// time, for checking the wiring with a meter or logic probe. visit is called
// before each line is raised. A nil open uses the GPIO character device.
func Walk(ctx context.Context, chip string, pins Pins, hold time.Duration, open Opener, visit func(name string, offset int)) (err error) {
	if open == nil {
		open = requestLine
	}

	for sig, offset := range pins.offsets() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := open(chip, offset)
		if err != nil {
			return fmt.Errorf("failed to request %s (line %d): %w", signalNames[sig], offset, err)
		}
		if visit != nil {
			visit(signalNames[sig], offset)
		}
		if err := pulse(ctx, line, hold); err != nil {
			return errors.Join(fmt.Errorf("failed to drive %s (line %d): %w", signalNames[sig], offset, err), line.Close())
		}
		if err := line.Close(); err != nil {
			return err
		}
	}
	return nil
}

func pulse(ctx context.Context, line Pin, hold time.Duration) error {
	if err := line.SetValue(1); err != nil {
		return err
	}

	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	// always leave the line low
	return line.SetValue(0)
}
