package clock

import "time"

// SystemClock returns the current wall-clock time in UTC. Ride schedules, request timestamps
// and idempotency expiry are all compared against it.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
