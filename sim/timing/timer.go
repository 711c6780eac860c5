package timing

// TimerFunc is called when a Timer expires or a Deferred runs.
type TimerFunc func(now VTimeInNs)

// A Timer is a one-shot, cancelable deadline on an engine's clock.
//
// Only the most recently armed deadline is live. Re-arming or cancelling
// leaves the superseded event in the engine queue; it is recognized as stale
// and dropped when it comes due.
type Timer struct {
	engine   EventScheduler
	callback TimerFunc
	pending  *timerEvent
}

type timerEvent struct {
	*EventBase
}

// NewTimer creates a disarmed timer that calls callback on expiry.
func NewTimer(engine EventScheduler, callback TimerFunc) *Timer {
	return &Timer{
		engine:   engine,
		callback: callback,
	}
}

// Arm sets the deadline unconditionally, replacing any armed deadline. A
// deadline in the past fires at the current time.
func (t *Timer) Arm(deadline VTimeInNs) {
	now := t.engine.Now()
	if deadline < now {
		deadline = now
	}

	evt := &timerEvent{EventBase: NewEventBase(deadline, t)}
	t.pending = evt
	t.engine.Schedule(evt)
}

// ArmAnticipate sets the deadline only if the timer is disarmed or the new
// deadline is sooner than the armed one. It reports whether the deadline
// changed.
func (t *Timer) ArmAnticipate(deadline VTimeInNs) bool {
	if current, armed := t.Deadline(); armed && current <= deadline {
		return false
	}

	t.Arm(deadline)

	return true
}

// Cancel disarms the timer. Cancelling a disarmed timer does nothing.
func (t *Timer) Cancel() {
	t.pending = nil
}

// IsArmed reports whether a deadline is pending.
func (t *Timer) IsArmed() bool {
	return t.pending != nil
}

// Deadline returns the armed deadline.
func (t *Timer) Deadline() (VTimeInNs, bool) {
	if t.pending == nil {
		return 0, false
	}

	return t.pending.Time(), true
}

// Handle fires the callback if evt is the live deadline.
func (t *Timer) Handle(evt Event) error {
	if evt != Event(t.pending) {
		return nil
	}

	t.pending = nil
	t.callback(evt.Time())

	return nil
}
