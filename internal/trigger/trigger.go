// Package trigger delivers periodic callbacks on a dedicated goroutine.
//
// A Ticker is created once and may be started and stopped any number of
// times. Stop waits for an in-flight callback to return, so once it returns no
// callback runs until the next Start.
package trigger

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrInvalidPeriod is returned when a trigger is created with a non-positive period
	ErrInvalidPeriod = errors.New("trigger: period must be positive")
	// ErrNilCallback is returned when a trigger is created without a callback
	ErrNilCallback = errors.New("trigger: callback is nil")
)

// Trigger is a restartable periodic callback
type Trigger interface {
	// Start begins delivery, restarting the period if already running
	Start() error
	// Stop halts delivery and waits for any callback in progress
	Stop()
}

// Factory creates a trigger bound to a period and callback
type Factory func(period time.Duration, fn func()) (Trigger, error)

// Ticker is a Trigger backed by time.Ticker
type Ticker struct {
	period time.Duration
	fn     func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTicker creates a stopped ticker that calls fn every period
func NewTicker(period time.Duration, fn func()) (*Ticker, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if fn == nil {
		return nil, ErrNilCallback
	}
	return &Ticker{
		period: period,
		fn:     fn,
	}, nil
}

// NewTickerTrigger adapts NewTicker to Factory
func NewTickerTrigger(period time.Duration, fn func()) (Trigger, error) {
	t, err := NewTicker(period, fn)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Period returns the interval between callbacks
func (t *Ticker) Period() time.Duration {
	return t.period
}

// Running reports whether callbacks are being delivered
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Start begins delivering callbacks. A running ticker is stopped first, so the
// next callback fires one full period after Start returns.
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.halt()

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done
	go t.run(stop, done)
	return nil
}

// Stop halts delivery and blocks until a callback in progress returns.
// It must not be called from inside the callback.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.halt()
}

// halt assumes t.mu is held
func (t *Ticker) halt() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
}

func (t *Ticker) run(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// a tick and a stop can be ready together; stop wins
			select {
			case <-stop:
				return
			default:
			}
			t.fn()
		}
	}
}
