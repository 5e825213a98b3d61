// Package timer wraps time.Timer with the Reset/Stop/Running API the
// peer FSM drives its ConnectRetry, Hold, and Keepalive timers with.
package timer

import "time"

// Timer is a restartable, stoppable wrapper around time.AfterFunc.
type Timer struct {
	timer    *time.Timer
	interval time.Duration
	running  bool
}

// New creates a new timer that will call f after d has elapsed.
func New(d time.Duration, f func()) *Timer {
	t := &Timer{
		interval: d,
		running:  true,
	}
	t.timer = time.AfterFunc(d, t.preflight(f))
	return t
}

// preflight clears the running flag before calling the user's function,
// so Running() reflects reality even if f itself is slow.
func (t *Timer) preflight(f func()) func() {
	return func() {
		t.running = false
		f()
	}
}

// Reset restarts the timer at d, superseding whatever interval it was
// created or last reset with. time.Timer's documented Stop/Reset
// pattern doesn't drain the channel here because the timer was built
// with AfterFunc, whose C is never sent to.
func (t *Timer) Reset(d time.Duration) {
	t.timer.Stop()
	t.interval = d
	t.timer.Reset(d)
	t.running = true
}

// Stop cancels the timer. It is safe to call on an already-fired or
// already-stopped timer.
func (t *Timer) Stop() {
	t.timer.Stop()
	t.running = false
}

// Running returns true if the timer is counting down, false otherwise.
func (t *Timer) Running() bool {
	return t.running
}
