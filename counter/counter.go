// Package counter provides a 64 bit counter, used by fsm.State to track
// the ConnectRetryCounter mandatory FSM attribute (RFC 4271 §8).
package counter

// Counter is a 64 bit counter.
type Counter struct {
	count uint64
}

// New creates a new 64 bit counter.
func New() *Counter {
	return new(Counter)
}

// Reset zeroes the counter.
func (c *Counter) Reset() {
	c.count = 0
}

// Increment adds one.
func (c *Counter) Increment() {
	c.count++
}

// Value reports the current count.
func (c *Counter) Value() uint64 {
	return c.count
}
