package simulation

import (
	"io"
	"log"

	"github.com/rs/xid"
	"github.com/sarchlab/otsim/datarecording"
	"github.com/sarchlab/otsim/monitoring"
	"github.com/sarchlab/otsim/sim/timing"
	"github.com/sarchlab/otsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	recordingOn    bool
	outputFileName string
	traceLog       io.Writer
	eventLog       io.Writer
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn:   true,
		recordingOn: true,
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutRecording sets the simulation to not write a trace database.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets where the trace is recorded. A name starting with
// clickhouse:// is a ClickHouse DSN; anything else names an SQLite file.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithTraceLog prints every trace record of the registered devices to w.
func (b Builder) WithTraceLog(w io.Writer) Builder {
	b.traceLog = w
	return b
}

// WithEventLog prints every event the engine handles to w.
func (b Builder) WithEventLog(w io.Writer) Builder {
	b.eventLog = w
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && b.outputFileName != "" {
		panic("output file cannot be set when recording is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:            xid.New().String(),
		engine:        timing.NewSerialEngine(),
		devNameIndex:  make(map[string]int),
		monitorServed: b.monitorOn,
	}

	if b.eventLog != nil {
		s.engine.AcceptHook(timing.NewEventLogger(log.New(b.eventLog, "", 0)))
	}

	if b.recordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "otsim_" + s.id
		}

		recorder, err := datarecording.Open(outputPath)
		if err != nil {
			log.Panic(err)
		}

		s.dataRecorder = recorder
		s.tracers = append(s.tracers, tracing.NewDBTracer(recorder))
	}

	if b.traceLog != nil {
		s.tracers = append(s.tracers,
			tracing.NewLogTracer(log.New(b.traceLog, "", 0)))
	}

	s.monitor = monitoring.NewMonitor()
	s.monitor.RegisterEngine(s.engine)

	if b.monitorOn {
		s.monitor.WithPortNumber(b.monitorPort)
		s.monitorURL = s.monitor.StartServer()
	}

	return s
}
