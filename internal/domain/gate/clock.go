package gate

import "time"

// Clock supplies the current time. Injected so cooldown arithmetic is a
// pure function of stored state and the clock reading.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
