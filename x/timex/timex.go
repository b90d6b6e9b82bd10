package timex

import "time"

// Clock yields a monotonically increasing millisecond counter that wraps at
// 2^32, the same shape as a microcontroller millis() counter.
type Clock interface {
	Millis() uint32
}

// Elapsed returns now-since using modular arithmetic, so it stays correct
// across one wrap of the counter.
func Elapsed(now, since uint32) uint32 { return now - since }

// Mono is a Clock anchored at its construction time.
type Mono struct {
	start time.Time
}

func NewMono() *Mono { return &Mono{start: time.Now()} }

// Millis truncates the elapsed monotonic time to 32 bits.
func (m *Mono) Millis() uint32 { return uint32(time.Since(m.start).Milliseconds()) }

// Ms converts a duration to counter units, saturating at the counter range.
func Ms(d time.Duration) uint32 {
	ms := d.Milliseconds()
	switch {
	case ms <= 0:
		return 0
	case ms > int64(^uint32(0)):
		return ^uint32(0)
	}
	return uint32(ms)
}
