package lsm6fifo

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/drivers"

	"github.com/runner1010/lsm6fifo/lsm6dsox"
)

func init() {
	log.SetOutput(io.Discard)
}

// Compile-time check.
var _ drivers.I2C = (*fakeI2C)(nil)

var errShortRead = errors.New("short read")

// fakeI2C emulates the FIFO of an LSM6DSOX. The reported level is len(fifo)
// unless level is set.
type fakeI2C struct {
	mu        sync.Mutex
	absent    bool
	regs      map[byte]byte
	fifo      [][]byte
	level     *uint16
	dataReads int
	onData    func(f *fakeI2C)
}

func newFakeI2C(records ...[]byte) *fakeI2C {
	return &fakeI2C{regs: make(map[byte]byte), fifo: records}
}

func (f *fakeI2C) pending() uint16 {
	if f.level != nil {
		return *f.level
	}
	return uint16(len(f.fifo))
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.absent || addr != lsm6dsox.Addr {
		return errors.New("nack")
	}
	if len(w) == 2 {
		f.regs[w[0]] = w[1]
		return nil
	}

	switch w[0] {
	case lsm6dsox.FIFOStatus1:
		r[0] = byte(f.pending())
	case lsm6dsox.FIFOStatus2:
		r[0] = byte(f.pending()>>8) & 0x03
	case lsm6dsox.FIFODataOutTag:
		f.dataReads++
		if len(f.fifo) == 0 || len(r) != lsm6dsox.RecordSize {
			return errShortRead
		}
		copy(r, f.fifo[0])
		f.fifo = f.fifo[1:]
		if f.onData != nil {
			f.onData(f)
		}
	default:
		r[0] = f.regs[w[0]]
	}
	return nil
}

func record(tag byte, x, y, z int16) []byte {
	b := []byte{tag, 0, 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(b[1:], uint16(x))
	binary.LittleEndian.PutUint16(b[3:], uint16(y))
	binary.LittleEndian.PutUint16(b[5:], uint16(z))
	return b
}

func testConfig() lsm6dsox.Config {
	cfg := lsm6dsox.DefaultConfig()
	cfg.ResetDelay = 0
	return cfg
}

func newTestStream(t *testing.T, bus *fakeI2C) *Stream {
	t.Helper()
	s, err := NewI2C(bus, WithConfig(testConfig()))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTickZeroPending(t *testing.T) {
	bus := newFakeI2C()
	s := newTestStream(t, bus)

	st, rep := s.Tick(State{})
	if bus.dataReads != 0 {
		t.Errorf("FIFO data read %d times with nothing pending", bus.dataReads)
	}
	if rep.Err != nil || len(rep.Samples) != 0 || rep.Status.Level != 0 {
		t.Errorf("Tick() = %+v, want empty report", rep)
	}
	if st.Ticks != 1 || st.Records != 0 {
		t.Errorf("state = %+v", st)
	}
}

func TestTickDrain(t *testing.T) {
	bus := newFakeI2C(
		record(0x01, 8192, 0, -8192),
		record(0x02, 1, 2, 3),
		record(0x0C, 32767, -32768, 0),
	)
	s := newTestStream(t, bus)

	st, rep := s.Tick(State{})
	if rep.Err != nil {
		t.Fatal(rep.Err)
	}
	if rep.Status.Level != 3 || len(rep.Samples) != 3 || st.Records != 3 || st.Level != 3 {
		t.Fatalf("Tick() = %+v, state %+v", rep, st)
	}

	want := []struct {
		typ   lsm6dsox.SampleType
		label string
		x     float64
	}{
		{lsm6dsox.Accelerometer, "ACCEL", 1},
		{lsm6dsox.Gyroscope, "GYRO", 1.0 / 8192},
		{lsm6dsox.Unknown, "UNKNOWN TAG: 0xC", 32767.0 / 8192},
	}
	for i, w := range want {
		got := rep.Samples[i]
		if got.Type != w.typ || got.Label() != w.label || got.Value.X != w.x {
			t.Errorf("sample %d = %+v (%s), want %v %s x=%v", i, got, got.Label(), w.typ, w.label, w.x)
		}
	}
	if rep.Samples[0].Value.Z != -1 || rep.Samples[2].Value.Y != -4 {
		t.Errorf("unexpected conversion %+v", rep.Samples)
	}
	if rep.Stats.Count != 1 || rep.Stats.Last.X != 1 {
		t.Errorf("stats = %+v, want only the accelerometer sample", rep.Stats)
	}
}

func TestTickDrainAbort(t *testing.T) {
	bus := newFakeI2C(
		record(0x01, 1, 1, 1),
		record(0x01, 2, 2, 2),
		record(0x01, 3, 3, 3),
	)
	five := uint16(5)
	bus.level = &five
	s := newTestStream(t, bus)

	st, rep := s.Tick(State{})
	if len(rep.Samples) != 3 {
		t.Fatalf("decoded %d samples, want 3", len(rep.Samples))
	}
	for i, smp := range rep.Samples {
		if smp.Record.X != int16(i+1) {
			t.Errorf("sample %d = %+v", i, smp.Record)
		}
	}
	if !errors.Is(rep.Err, ErrTransport) || !errors.Is(rep.Err, errShortRead) {
		t.Fatalf("Err = %v, want transport error", rep.Err)
	}
	var te *TransportError
	if !errors.As(rep.Err, &te) || te.Drained != 3 || te.Pending != 5 {
		t.Errorf("Err = %#v", rep.Err)
	}
	if bus.dataReads != 4 {
		t.Errorf("FIFO data read %d times, want 4", bus.dataReads)
	}
	if st.TransportErrors != 1 || st.Records != 3 {
		t.Errorf("state = %+v", st)
	}

	bus.level = nil
	st, rep = s.Tick(st)
	if rep.Err != nil || len(rep.Samples) != 0 || st.Ticks != 2 {
		t.Errorf("next tick = %+v, state %+v", rep, st)
	}
}

func TestTickStatusError(t *testing.T) {
	bus := newFakeI2C(record(0x01, 1, 1, 1))
	s := newTestStream(t, bus)
	bus.absent = true

	st, rep := s.Tick(State{})
	var te *TransportError
	if !errors.As(rep.Err, &te) || te.Op != "status" {
		t.Fatalf("Err = %v, want status transport error", rep.Err)
	}
	if bus.dataReads != 0 || st.TransportErrors != 1 {
		t.Errorf("dataReads = %d, state = %+v", bus.dataReads, st)
	}
}

func TestTickDefersLateRecords(t *testing.T) {
	bus := newFakeI2C(record(0x01, 1, 0, 0), record(0x01, 2, 0, 0))
	added := false
	bus.onData = func(f *fakeI2C) {
		if !added {
			added = true
			f.fifo = append(f.fifo, record(0x01, 3, 0, 0))
		}
	}
	s := newTestStream(t, bus)

	st, rep := s.Tick(State{})
	if len(rep.Samples) != 2 {
		t.Fatalf("first tick drained %d records, want 2", len(rep.Samples))
	}
	st, rep = s.Tick(st)
	if len(rep.Samples) != 1 || rep.Samples[0].Record.X != 3 {
		t.Fatalf("second tick = %+v", rep.Samples)
	}
	if st.Records != 3 {
		t.Errorf("records = %d, want 3", st.Records)
	}
}

func TestNewI2CPolicy(t *testing.T) {
	bus := newFakeI2C()
	bus.absent = true

	if _, err := NewI2C(bus, WithConfig(testConfig())); !errors.Is(err, lsm6dsox.ErrSetup) {
		t.Fatalf("NewI2C() = %v, want setup error", err)
	}
	for _, p := range []lsm6dsox.Policy{lsm6dsox.PolicyWarn, lsm6dsox.PolicyIgnore} {
		if _, err := NewI2C(bus, WithConfig(testConfig()), WithPolicy(p)); err != nil {
			t.Errorf("NewI2C(%v) = %v, want nil", p, err)
		}
	}
}

func TestNewI2CRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Range = 4

	for _, p := range []lsm6dsox.Policy{lsm6dsox.PolicyFailFast, lsm6dsox.PolicyWarn, lsm6dsox.PolicyIgnore} {
		bus := newFakeI2C(record(0x01, 16384, 0, 0))
		_, err := NewI2C(bus, WithConfig(cfg), WithPolicy(p))
		if err == nil || errors.Is(err, lsm6dsox.ErrSetup) {
			t.Errorf("NewI2C(%v) = %v, want config error", p, err)
		}
		if len(bus.regs) != 0 {
			t.Errorf("NewI2C(%v) wrote %d registers, want 0", p, len(bus.regs))
		}
	}
}

// closeFailSensor fails setup and then fails to close.
type closeFailSensor struct {
	closed bool
}

var errClose = errors.New("close failed")

func (c *closeFailSensor) Configure(lsm6dsox.Config, lsm6dsox.Policy) error {
	return fmt.Errorf("reset: %w", lsm6dsox.ErrSetup)
}

func (c *closeFailSensor) FIFOStatus() (lsm6dsox.Status, error) {
	return lsm6dsox.Status{}, errShortRead
}

func (c *closeFailSensor) ReadRecord() (lsm6dsox.Record, error) {
	return lsm6dsox.Record{}, errShortRead
}

func (c *closeFailSensor) Close() error {
	c.closed = true
	return errClose
}

func TestOpenJoinsCloseError(t *testing.T) {
	dev := &closeFailSensor{}
	s := newStream([]Option{WithConfig(testConfig())})

	err := s.open(dev)
	if !dev.closed {
		t.Error("sensor not closed after failed setup")
	}
	if !errors.Is(err, lsm6dsox.ErrSetup) || !errors.Is(err, errClose) {
		t.Errorf("open() = %v, want setup and close errors", err)
	}
}

func TestNewI2CProgramsRange(t *testing.T) {
	bus := newFakeI2C(record(0x01, -32768, 0, 0))
	cfg := testConfig()
	cfg.Range = lsm6dsox.Range16G
	s, err := NewI2C(bus, WithConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if got := bus.regs[lsm6dsox.Ctrl1XL]; got != cfg.Ctrl1XL() {
		t.Errorf("CTRL1_XL = %#02x, want %#02x", got, cfg.Ctrl1XL())
	}
	if _, rep := s.Tick(State{}); rep.Samples[0].Value.X != -16 {
		t.Errorf("x = %v, want -16", rep.Samples[0].Value.X)
	}
}

func TestRun(t *testing.T) {
	bus := newFakeI2C(record(0x01, 1, 1, 1), record(0x01, 2, 2, 2))
	s := newTestStream(t, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	st, err := s.Run(ctx, TextSink{W: &out}, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() = %v", err)
	}
	if st.Ticks < 2 || st.Records != 2 {
		t.Errorf("state = %+v", st)
	}
	if !strings.HasPrefix(out.String(), "FIFO Samples: 2\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestTextSink(t *testing.T) {
	var out bytes.Buffer
	sink := TextSink{W: &out}
	Emit(sink, Report{
		Status: lsm6dsox.Status{Level: 2},
		Samples: []Sample{
			{Record: lsm6dsox.Record{Tag: 0x41}, Type: lsm6dsox.Accelerometer, Value: lsm6dsox.Vector{X: 0.000122, Y: -1, Z: 3.999878}},
			{Record: lsm6dsox.Record{Tag: 0x0B}, Type: lsm6dsox.Unknown},
		},
		Err: &TransportError{Op: "drain", Drained: 2, Pending: 3, Err: errShortRead},
	})

	want := "FIFO Samples: 2\n" +
		"TAG: 0x41 ACCEL: X: 0.00012 g Y: -1.00000 g Z: 3.99988 g\n" +
		"TAG: 0xB UNKNOWN TAG: 0xB X: 0.00000 g Y: 0.00000 g Z: 0.00000 g\n" +
		"ERROR: Not enough bytes read from FIFO!\n"
	if out.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
	}

	out.Reset()
	Emit(sink, Report{})
	if out.Len() != 0 {
		t.Errorf("empty report printed %q", out.String())
	}
}

type memoryHook struct {
	entries []*log.Entry
}

func (h *memoryHook) Levels() []log.Level { return log.AllLevels }
func (h *memoryHook) Fire(e *log.Entry) error {
	h.entries = append(h.entries, e)
	return nil
}

func TestLogSink(t *testing.T) {
	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(log.DebugLevel)
	hook := &memoryHook{}
	logger.AddHook(hook)

	Emit(LogSink{Logger: logger}, Report{
		Status:  lsm6dsox.Status{Level: 1, Flags: lsm6dsox.Overrun},
		Samples: []Sample{{Record: lsm6dsox.Record{Tag: 0x01}, Type: lsm6dsox.Accelerometer, Value: lsm6dsox.Vector{Z: 1}}},
		Err:     &TransportError{Op: "status", Err: errShortRead},
	})

	if len(hook.entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(hook.entries))
	}
	if e := hook.entries[0]; e.Level != log.WarnLevel || e.Data["pending"] != uint16(1) {
		t.Errorf("pending entry = %v %v", e.Level, e.Data)
	}
	if e := hook.entries[1]; e.Data["type"] != "ACCEL" || e.Data["tag"] != "0x01" || e.Data["z"] != 1.0 {
		t.Errorf("sample entry = %v", e.Data)
	}
	if e := hook.entries[2]; e.Level != log.WarnLevel || !errors.Is(e.Data[log.ErrorKey].(error), ErrTransport) {
		t.Errorf("error entry = %v %v", e.Level, e.Data)
	}
	if e := hook.entries[3]; e.Level != log.DebugLevel || e.Data["count"] != 0 {
		t.Errorf("stats entry = %v %v", e.Level, e.Data)
	}
}

func TestLogSinkFull(t *testing.T) {
	logger := log.New()
	logger.SetOutput(io.Discard)
	hook := &memoryHook{}
	logger.AddHook(hook)

	sink := LogSink{Logger: logger}
	sink.Pending(lsm6dsox.Status{Level: lsm6dsox.MaxLevel, Flags: lsm6dsox.Full})
	sink.Pending(lsm6dsox.Status{Level: 3})

	if len(hook.entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(hook.entries))
	}
	if e := hook.entries[0]; e.Level != log.WarnLevel || !strings.Contains(e.Message, "full") {
		t.Errorf("full entry = %v %q", e.Level, e.Message)
	}
	if e := hook.entries[1]; e.Level != log.InfoLevel {
		t.Errorf("pending entry = %v %q", e.Level, e.Message)
	}
}

func TestTSeriesSpan(t *testing.T) {
	ts := newTSeries(3)
	if ts.span() != 0 || ts.last() != 0 {
		t.Fatal("empty series not zero")
	}
	ts.add(1, -2, 5)
	if ts.span() != 7 || ts.last() != 5 {
		t.Errorf("span = %v last = %v, want 7 and 5", ts.span(), ts.last())
	}
	ts.add(0) // evicts 1
	if ts.span() != 7 {
		t.Errorf("span = %v, want 7", ts.span())
	}
	ts.add(0) // evicts the minimum
	if ts.span() != 5 {
		t.Errorf("span = %v, want 5", ts.span())
	}
	ts.add(0) // evicts the maximum
	if ts.span() != 0 || ts.n != 3 {
		t.Errorf("span = %v n = %d, want 0 and 3", ts.span(), ts.n)
	}
}

func TestMovingAverage(t *testing.T) {
	var m movingAverage
	m.add(2)
	if m.mean != 2 {
		t.Fatalf("first value = %v, want 2", m.mean)
	}
	for i := 0; i < 200; i++ {
		m.add(-1)
	}
	if math.Abs(m.mean+1) > 1e-3 {
		t.Errorf("mean = %v, want ~-1", m.mean)
	}
}
