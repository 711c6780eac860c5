// Package simulation puts together the engine, the devices and the
// services around them: trace recording and the monitoring server.
package simulation

import (
	"fmt"

	"github.com/sarchlab/otsim/datarecording"
	"github.com/sarchlab/otsim/monitoring"
	"github.com/sarchlab/otsim/sim/hooking"
	"github.com/sarchlab/otsim/sim/timing"
	"github.com/sarchlab/otsim/tracing"
)

// A Device is a peripheral that runs in a simulation.
type Device interface {
	monitoring.Device
	hooking.Hookable
}

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id     string
	engine *timing.SerialEngine

	dataRecorder  datarecording.DataRecorder
	tracers       []tracing.Tracer
	monitor       *monitoring.Monitor
	monitorServed bool
	monitorURL    string

	devices      []Device
	devNameIndex map[string]int
}

// ID returns the unique ID of the simulation run.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() *timing.SerialEngine {
	return s.engine
}

// GetDataRecorder returns the data recorder used in the simulation. It is
// nil if recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring server, or an empty
// string if monitoring is disabled.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// RegisterDevice registers a device with the simulation. Its hooks are fed
// to the tracers and its registers are shown by the monitor.
func (s *Simulation) RegisterDevice(d Device) {
	name := d.Name()
	if _, found := s.devNameIndex[name]; found {
		panic("device " + name + " already registered")
	}

	s.devices = append(s.devices, d)
	s.devNameIndex[name] = len(s.devices) - 1

	for _, t := range s.tracers {
		tracing.CollectTrace(d, s.engine, t)
	}

	s.monitor.RegisterDevice(d)
}

// Devices returns all registered devices in registration order.
func (s *Simulation) Devices() []Device {
	return s.devices
}

// GetDeviceByName returns the device with the given name.
func (s *Simulation) GetDeviceByName(name string) Device {
	i, found := s.devNameIndex[name]
	if !found {
		panic(fmt.Sprintf("device %s is not registered", name))
	}

	return s.devices[i]
}

// Terminate flushes the recording and stops the monitoring server.
func (s *Simulation) Terminate() error {
	if s.monitorServed {
		s.monitor.StopServer()
	}

	if s.dataRecorder == nil {
		return nil
	}

	return s.dataRecorder.Close()
}
