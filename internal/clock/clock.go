package clock

import "time"

// Clock abstracts time.Now so schedulers and workflow services can be tested
// against a fixed point in time.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
