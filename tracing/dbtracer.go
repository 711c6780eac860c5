package tracing

import (
	"sync"

	"github.com/sarchlab/otsim/datarecording"
	"github.com/sarchlab/otsim/sim/id"
	"github.com/sarchlab/otsim/sim/timing"
)

// TraceTableName is the table DBTracer writes to.
const TraceTableName = "trace"

// TraceEntry is the row DBTracer stores for a record.
type TraceEntry struct {
	Session  string
	ID       string
	Time     uint64
	Location string
	Kind     string
	What     string
}

// DBTracer stores records through a DataRecorder. Every tracer is a
// session with its own ID, so several runs can share a database.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	session string

	startTime, endTime timing.VTimeInNs
	hasEnd             bool
}

// NewDBTracer creates a tracer and its table.
func NewDBTracer(backend datarecording.DataRecorder) *DBTracer {
	t := &DBTracer{
		backend: backend,
		session: id.NewGlobalIDGenerator().Generate(),
	}

	if !hasTable(backend, TraceTableName) {
		backend.CreateTable(TraceTableName, TraceEntry{})
	}

	return t
}

func hasTable(backend datarecording.DataRecorder, name string) bool {
	for _, t := range backend.ListTables() {
		if t == name {
			return true
		}
	}

	return false
}

// Session returns the ID written with every row of this tracer.
func (t *DBTracer) Session() string {
	return t.session
}

// SetTimeRange limits tracing to records within [start, end].
func (t *DBTracer) SetTimeRange(start, end timing.VTimeInNs) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = start
	t.endTime = end
	t.hasEnd = true
}

// Trace stores the record.
func (t *DBTracer) Trace(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.Time < t.startTime || (t.hasEnd && r.Time > t.endTime) {
		return
	}

	t.backend.InsertData(TraceTableName, TraceEntry{
		Session:  t.session,
		ID:       r.ID,
		Time:     uint64(r.Time),
		Location: r.Where,
		Kind:     r.Kind,
		What:     r.What,
	})
}
