package realtime

import (
	"math/rand/v2"
	"time"
)

// backoff yields exponentially growing reconnect delays with jitter.
// Each delay lies in [d/2, d] where d doubles from min up to max.
type backoff struct {
	min     time.Duration
	max     time.Duration
	current time.Duration
	jitter  func(n int64) int64
}

func newBackoff(floor, ceiling time.Duration) *backoff {
	if floor <= 0 {
		floor = time.Second
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &backoff{min: floor, max: ceiling, jitter: rand.Int64N}
}

func (b *backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.min
	} else {
		b.current = min(b.current*2, b.max)
	}
	half := b.current / 2
	return half + time.Duration(b.jitter(int64(b.current-half)+1))
}

func (b *backoff) Reset() {
	b.current = 0
}
