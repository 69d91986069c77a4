package queue

import "time"

// ticker abstracts time.Ticker so tests can drive the retry loop without
// real wall-clock waits.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type wallTicker struct {
	t *time.Ticker
}

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

var newTicker = func(d time.Duration) ticker {
	return wallTicker{t: time.NewTicker(d)}
}
