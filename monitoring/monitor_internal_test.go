package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/otsim/periph"
	"github.com/sarchlab/otsim/sim/timing"
)

type fakeDevice struct {
	name  string
	Value uint32
}

func (d *fakeDevice) Name() string {
	return d.name
}

func (d *fakeDevice) RegisterDump() []periph.RegisterValue {
	return []periph.RegisterValue{
		{Offset: 0, Name: "CTRL", Value: d.Value},
		{Offset: 4, Name: "STATUS", Value: 0},
	}
}

type noopHandler struct{}

func (noopHandler) Handle(timing.Event) error {
	return nil
}

var _ = Describe("Monitor", func() {
	var (
		engine  *timing.SerialEngine
		device  *fakeDevice
		monitor *Monitor
		server  *httptest.Server
	)

	get := func(path string) (int, string) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, string(body)
	}

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		device = &fakeDevice{name: "Alert", Value: 0x393c}

		monitor = NewMonitor()
		monitor.RegisterEngine(engine)
		monitor.RegisterDevice(device)

		server = httptest.NewServer(monitor.Router())
	})

	AfterEach(func() {
		server.Close()
	})

	It("should panic when a device name is taken", func() {
		Expect(func() {
			monitor.RegisterDevice(&fakeDevice{name: "Alert"})
		}).To(Panic())
	})

	It("should report the simulated time", func() {
		Expect(engine.RunUntil(1500)).To(Succeed())

		code, body := get("/api/now")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"now":1500}`))
	})

	It("should list devices", func() {
		_, body := get("/api/list_components")

		Expect(body).To(MatchJSON(`["Alert"]`))
	})

	It("should dump registers", func() {
		code, body := get("/api/regs/Alert")
		Expect(code).To(Equal(http.StatusOK))

		var dump []periph.RegisterValue
		Expect(json.Unmarshal([]byte(body), &dump)).To(Succeed())
		Expect(dump).To(HaveLen(2))
		Expect(dump[0]).To(Equal(
			periph.RegisterValue{Offset: 0, Name: "CTRL", Value: 0x393c}))
	})

	It("should return 404 for an unknown device", func() {
		code, body := get("/api/regs/Nope")

		Expect(code).To(Equal(http.StatusNotFound))
		Expect(body).To(Equal("Device not found"))
	})

	It("should serialize device fields", func() {
		code, body := get("/api/component/Alert")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).NotTo(BeEmpty())
	})

	It("should reject a malformed field request", func() {
		code, _ := get("/api/field/notjson")

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should keep the engine paused while dumping registers", func() {
		code, _ := get("/api/pause")
		Expect(code).To(Equal(http.StatusOK))

		code, _ = get("/api/regs/Alert")
		Expect(code).To(Equal(http.StatusOK))
		Expect(monitor.paused).To(BeTrue())

		code, _ = get("/api/continue")
		Expect(code).To(Equal(http.StatusOK))
		Expect(monitor.paused).To(BeFalse())

		engine.Schedule(timing.NewEventBase(10, noopHandler{}))
		Expect(engine.Run()).To(Succeed())
		Expect(engine.Now()).To(Equal(timing.VTimeInNs(10)))
	})

	It("should list progress bars", func() {
		bar := monitor.CreateProgressBar("scenario", 3)
		bar.StartStep()
		bar.FinishStep()

		_, body := get("/api/progress")
		Expect(body).To(ContainSubstring(`"name":"scenario"`))
		Expect(body).To(ContainSubstring(`"finished":1`))
		Expect(bar.Done()).To(BeFalse())

		monitor.CompleteProgressBar(bar)

		_, body = get("/api/progress")
		Expect(body).To(MatchJSON(`[]`))
	})

	It("should report resource usage", func() {
		code, body := get("/api/resource")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("memory_size"))
	})

	It("should serve the index page", func() {
		code, body := get("/")

		Expect(code).To(Equal(http.StatusOK))
		Expect(body).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should start and stop a server", func() {
		url := monitor.StartServer()
		Expect(url).To(HavePrefix("http://localhost:"))

		monitor.StopServer()
		Expect(monitor.listener).To(BeNil())
	})
})
