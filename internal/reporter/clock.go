package reporter

import "time"

// Clock abstracts ticker creation so reporter sessions can be driven by a
// fake timer in tests.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	Now() time.Time
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

// RealClock is the wall-clock implementation used in production wiring.
var RealClock Clock = realClock{}

func (realClock) NewTicker(d time.Duration) Ticker { return &realTicker{t: time.NewTicker(d)} }
func (realClock) Now() time.Time                   { return time.Now() }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
