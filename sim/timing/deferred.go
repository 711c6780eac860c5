package timing

// A Deferred runs a callback once, after every primary event due at the
// current time has been handled. It is how a device says "on the next tick"
// without a timer of its own.
type Deferred struct {
	engine   EventScheduler
	callback TimerFunc
	pending  *deferredEvent
}

type deferredEvent struct {
	*EventBase
}

// NewDeferred creates an idle Deferred.
func NewDeferred(engine EventScheduler, callback TimerFunc) *Deferred {
	return &Deferred{
		engine:   engine,
		callback: callback,
	}
}

// Schedule queues the callback. Scheduling an already pending Deferred does
// nothing; the callback runs once.
func (d *Deferred) Schedule() {
	if d.pending != nil {
		return
	}

	evt := &deferredEvent{
		EventBase: NewSecondaryEventBase(d.engine.Now(), d),
	}
	d.pending = evt
	d.engine.Schedule(evt)
}

// Cancel drops a pending callback.
func (d *Deferred) Cancel() {
	d.pending = nil
}

// IsPending reports whether the callback is queued.
func (d *Deferred) IsPending() bool {
	return d.pending != nil
}

// Handle runs the callback if evt is the live request.
func (d *Deferred) Handle(evt Event) error {
	if evt != Event(d.pending) {
		return nil
	}

	d.pending = nil
	d.callback(evt.Time())

	return nil
}
