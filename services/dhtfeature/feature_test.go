package dhtfeature

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"

	"firmatadht-go/drivers/dht"
	"firmatadht-go/errcode"
	"firmatadht-go/firmata"
	"firmatadht-go/x/timex"
)

func attach(t *testing.T, h *harness, cfg SensorConfig) {
	t.Helper()
	if err := h.drv.Attach(cfg); err != nil {
		t.Fatalf("attach: %v", err)
	}
}

func TestAttach_ClampsInterval(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11, IntervalMs: 100})
	cfg, ok := h.drv.Config()
	if !ok || cfg.IntervalMs != MinIntervalMs {
		t.Fatalf("cfg=%+v ok=%v", cfg, ok)
	}
	if h.host.modes[3] != firmata.PinModeDHT {
		t.Fatalf("pin mode=%#x", h.host.modes[3])
	}
	if h.drv.State() != StateIdle {
		t.Fatalf("state=%v", h.drv.State())
	}
}

func TestAttach_SecondIsRefused(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11})
	err := h.drv.Attach(SensorConfig{Pin: 4, Type: dht.DHT22, IntervalMs: 5000})
	if errcode.Of(err) != errcode.AlreadyAttached {
		t.Fatalf("err=%v", err)
	}
	if len(h.host.strings) != 1 || h.host.strings[0] != msgAlreadyAttached {
		t.Fatalf("strings=%q", h.host.strings)
	}
	cfg, _ := h.drv.Config()
	if cfg.Pin != 3 || h.opened != 1 {
		t.Fatalf("first session disturbed: cfg=%+v opened=%d", cfg, h.opened)
	}
}

func TestAttach_IneligiblePin(t *testing.T) {
	h := newHarness()
	h.host.noIRQ[7] = true
	h.host.modes[8] = firmata.PinModeIgnore

	for _, pin := range []uint8{7, 8} {
		err := h.drv.Attach(SensorConfig{Pin: pin, Type: dht.DHT11})
		if errcode.Of(err) != errcode.PinNotEligible {
			t.Fatalf("pin %d: err=%v", pin, err)
		}
	}
	if h.drv.IsAttached() || h.opened != 0 {
		t.Fatalf("attached=%v opened=%d", h.drv.IsAttached(), h.opened)
	}
	if len(h.host.strings) != 2 || h.host.strings[0] != msgPinNotEligible {
		t.Fatalf("strings=%q", h.host.strings)
	}
}

func TestAttach_OpenFailure(t *testing.T) {
	h := newHarness()
	h.drv.open = func(uint8, dht.Type) (dht.Device, error) { return nil, errOpen }
	err := h.drv.Attach(SensorConfig{Pin: 3, Type: dht.DHT11})
	if errcode.Of(err) != errcode.OpenFailed {
		t.Fatalf("err=%v", err)
	}
	if h.drv.IsAttached() {
		t.Fatal("attached after open failure")
	}
	if len(h.host.strings) != 1 || h.host.strings[0] != msgOpenFailed {
		t.Fatalf("strings=%q", h.host.strings)
	}
}

func TestUpdate_InitGrace(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11, IntervalMs: 5000})

	h.tickAt(10000 + InitGraceMs)
	if h.dev.starts != 0 {
		t.Fatal("started before grace elapsed")
	}
	h.tickAt(10000 + InitGraceMs + 1)
	if h.dev.starts != 1 || h.drv.State() != StateAcquiring {
		t.Fatalf("starts=%d state=%v", h.dev.starts, h.drv.State())
	}
}

func TestUpdate_ReportAndInterval(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11, IntervalMs: 2000})

	h.tickAt(12001)
	if h.dev.starts != 1 {
		t.Fatalf("starts=%d", h.dev.starts)
	}
	h.tickAt(12005) // still busy
	if len(h.host.sysex) != 0 {
		t.Fatal("reported while busy")
	}
	h.dev.complete(21.5, 40.25, nil)
	h.tickAt(12010)
	if len(h.host.sysex) != 1 {
		t.Fatalf("sysex=%v", h.host.sysex)
	}
	got := h.host.sysex[0]
	if got.cmd != firmata.DHTSensorData || !bytes.Equal(got.payload, []byte{0x57, 0x01, 0x39, 0x1F}) {
		t.Fatalf("report=%#v", got)
	}
	if h.drv.State() != StateIdle {
		t.Fatalf("state=%v", h.drv.State())
	}

	h.tickAt(14010)
	if h.dev.starts != 1 {
		t.Fatal("restarted before interval elapsed")
	}
	h.tickAt(14011)
	if h.dev.starts != 2 {
		t.Fatalf("starts=%d", h.dev.starts)
	}
}

func TestUpdate_FailureSchedulesRetry(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT22, IntervalMs: 10000})

	h.tickAt(12001)
	h.dev.complete(0, 0, dht.ErrChecksum)
	h.tickAt(12100)
	if len(h.host.strings) != 1 || h.host.strings[0] != KindChecksum.Message() {
		t.Fatalf("strings=%q", h.host.strings)
	}
	if len(h.host.sysex) != 0 {
		t.Fatal("report sent for failed read")
	}

	h.tickAt(12100 + RetryIntervalMs)
	if h.dev.starts != 1 {
		t.Fatal("retried too early")
	}
	h.tickAt(12100 + RetryIntervalMs + 1)
	if h.dev.starts != 2 {
		t.Fatalf("starts=%d", h.dev.starts)
	}
}

func TestUpdate_StartErrorIsFailure(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11})
	h.dev.startErr = dht.ErrAcquiring

	h.tickAt(12001)
	if h.drv.State() != StateIdle {
		t.Fatalf("state=%v", h.drv.State())
	}
	if len(h.host.strings) != 1 || h.host.strings[0] != "DHT Error: Acquiring" {
		t.Fatalf("strings=%q", h.host.strings)
	}
	h.dev.startErr = nil
	h.tickAt(12001 + RetryIntervalMs)
	if h.dev.starts != 0 {
		t.Fatal("retried too early")
	}
	h.tickAt(12002 + RetryIntervalMs)
	if h.dev.starts != 1 {
		t.Fatalf("starts=%d", h.dev.starts)
	}
}

func TestUpdate_BlockingUsesAcquire(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11, Blocking: true})
	h.tickAt(12001)
	if h.dev.blocking != 1 || h.drv.State() != StateAcquiring {
		t.Fatalf("blocking=%d state=%v", h.dev.blocking, h.drv.State())
	}
	h.dev.complete(20, 50, nil)
	h.tickAt(12002)
	if len(h.host.sysex) != 1 {
		t.Fatalf("sysex=%v", h.host.sysex)
	}
}

func TestUpdate_OnOutcome(t *testing.T) {
	h := newHarness()
	var got []Outcome
	h.drv.onOutcome = func(pin uint8, o Outcome) {
		if pin != 3 {
			t.Errorf("pin=%d", pin)
		}
		got = append(got, o)
	}
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11})
	h.tickAt(12001)
	h.dev.complete(0, 0, dht.ErrTimeout)
	h.tickAt(12002)
	h.tickAt(12503)
	h.dev.complete(19.96, 33.333, nil)
	h.tickAt(12504)

	if len(got) != 2 || got[0].Kind != KindTimeout || !got[1].OK() {
		t.Fatalf("outcomes=%+v", got)
	}
	if got[1].Reading != (Reading{DeciCelsius: 200, CentiPercent: 3333}) {
		t.Fatalf("reading=%+v", got[1].Reading)
	}
}

func TestUpdate_Detached(t *testing.T) {
	h := newHarness()
	h.tickAt(50000)
	if len(h.host.strings)+len(h.host.sysex) != 0 {
		t.Fatal("detached driver produced output")
	}
}

func TestDetach_Idempotent(t *testing.T) {
	h := newHarness()
	h.drv.Detach()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11})
	h.drv.Detach()
	h.drv.Detach()
	if h.drv.IsAttached() || !h.dev.closed {
		t.Fatalf("attached=%v closed=%v", h.drv.IsAttached(), h.dev.closed)
	}
	if len(h.host.strings) != 0 {
		t.Fatalf("strings=%q", h.host.strings)
	}
	if h.host.modes[3] != firmata.PinModeInput {
		t.Fatalf("pin mode=%#x", h.host.modes[3])
	}
	// A new sensor may be attached after detach.
	attach(t, h, SensorConfig{Pin: 4, Type: dht.DHT22})
}

func TestDetach_WaitsForInFlightRead(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11})
	h.tickAt(12001)
	polls := 0
	h.dev.onPoll = func(f *fakeDevice) {
		polls++
		if polls == 4 {
			f.busy = false
		}
	}
	h.drv.Detach()
	if h.slept != 3*time.Millisecond || !h.dev.closed {
		t.Fatalf("slept=%v closed=%v", h.slept, h.dev.closed)
	}
}

func TestDetach_WaitIsBounded(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11})
	h.tickAt(12001)
	h.drv.Detach()
	if h.slept != DefaultDetachWait || !h.dev.closed {
		t.Fatalf("slept=%v closed=%v", h.slept, h.dev.closed)
	}
}

func TestReset_Detaches(t *testing.T) {
	h := newHarness()
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11})
	h.drv.Reset()
	if h.drv.IsAttached() {
		t.Fatal("still attached")
	}
}

func TestPinModeAndCapability(t *testing.T) {
	h := newHarness()
	h.host.noIRQ[9] = true
	if !h.drv.HandlePinMode(3, firmata.PinModeDHT) || h.drv.HandlePinMode(9, firmata.PinModeDHT) {
		t.Fatal("pin mode eligibility")
	}
	if h.drv.HandlePinMode(3, firmata.PinModeOutput) {
		t.Fatal("accepted foreign mode")
	}
	if got := h.drv.HandleCapability(3); !bytes.Equal(got, []byte{firmata.PinModeDHT, ReportBits}) {
		t.Fatalf("capability=%v", got)
	}
	if got := h.drv.HandleCapability(9); got != nil {
		t.Fatalf("capability=%v", got)
	}
}

// End to end through a Board and a simulated sensor: the host sees one
// framed report after the grace period.
func TestBoard_AttachAndReport(t *testing.T) {
	clock := timex.NewManualClock(10000)
	var out bytes.Buffer
	b := firmata.NewBoard(firmata.BoardConfig{}, testr.New(t))
	b.SetOutput(&out)
	var sim *dht.Sim
	drv := New(Options{
		Host:  b,
		Clock: clock,
		Open:  dht.SimOpener(clock, dht.SimConfig{Celsius: 21.5, Humidity: 40}, func(s *dht.Sim) { sim = s }),
	})
	b.AddFeature(drv)

	var p firmata.Parser
	in := firmata.Sysex(firmata.DHTSensorData, []byte{SubAttachDHT11, 3, 0, 0x50, 0x0F})
	for _, m := range p.Parse(in) {
		b.Dispatch(m)
	}
	if sim == nil || sim.Pin() != 3 {
		t.Fatal("sensor not opened on pin 3")
	}
	if b.PinMode(3) != firmata.PinModeDHT {
		t.Fatalf("pin mode=%#x", b.PinMode(3))
	}

	for i := 0; i < 600; i++ {
		clock.Advance(5 * time.Millisecond)
		b.Update()
	}
	want := firmata.Sysex(firmata.DHTSensorData, EncodeReport(Reading{DeciCelsius: 215, CentiPercent: 4000}))
	if !bytes.Contains(out.Bytes(), want) {
		t.Fatalf("output % x does not contain % x", out.Bytes(), want)
	}
	if sim.Reads() != 1 {
		t.Fatalf("reads=%d", sim.Reads())
	}
}

func TestUpdate_FirstReadAfterGraceAtClockZero(t *testing.T) {
	h := newHarnessAt(0)
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT22, IntervalMs: 10000})

	at, ok := h.tickUntilStart(1, 600000)
	if !ok {
		t.Fatal("no read within 10 minutes of attach")
	}
	if at != InitGraceMs+5 {
		t.Fatalf("first read at %d ms", at)
	}
}

func TestUpdate_RetryAtClockZero(t *testing.T) {
	h := newHarnessAt(0)
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT22, IntervalMs: 10000})

	h.tickAt(InitGraceMs + 1)
	h.dev.complete(0, 0, dht.ErrTimeout)
	h.tickAt(2100)
	if h.drv.State() != StateIdle || len(h.host.strings) != 1 {
		t.Fatalf("state=%v strings=%q", h.drv.State(), h.host.strings)
	}
	at, ok := h.tickUntilStart(2, 600000)
	if !ok {
		t.Fatal("no retry within 10 minutes of failure")
	}
	if at != 2100+RetryIntervalMs+5 {
		t.Fatalf("retry at %d ms", at)
	}
}

func TestUpdate_ReattachEarlyInUptime(t *testing.T) {
	h := newHarnessAt(0)
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11})
	h.drv.Detach()

	h.dev = &fakeDevice{}
	h.clock.Set(3000)
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11, IntervalMs: 5000})
	at, ok := h.tickUntilStart(1, 600000)
	if !ok {
		t.Fatal("no read within 10 minutes of re-attach")
	}
	if at != 3000+InitGraceMs+5 {
		t.Fatalf("first read at %d ms", at)
	}
}

func TestUpdate_ClockWrap(t *testing.T) {
	start := ^uint32(0) - 1000
	h := newHarnessAt(start)
	attach(t, h, SensorConfig{Pin: 3, Type: dht.DHT11, IntervalMs: 2000})

	at, ok := h.tickUntilStart(1, 600000)
	if !ok {
		t.Fatal("no read after the clock wrapped")
	}
	if at >= start {
		t.Fatalf("read started at %d, before the wrap", at)
	}
	if elapsed := at - start; elapsed <= InitGraceMs {
		t.Fatalf("read started %d ms after attach", elapsed)
	}
	if h.drv.State() != StateAcquiring {
		t.Fatalf("state=%v", h.drv.State())
	}

	h.dev.complete(21.5, 40, nil)
	h.tickAt(at + 5)
	if len(h.host.sysex) != 1 || h.drv.State() != StateIdle {
		t.Fatalf("sysex=%d state=%v", len(h.host.sysex), h.drv.State())
	}
	next, ok := h.tickUntilStart(2, 600000)
	if !ok || next-(at+5) <= 2000 {
		t.Fatalf("second read at %d (ok=%v)", next, ok)
	}
}
