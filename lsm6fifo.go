package lsm6fifo

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/drivers"

	"github.com/runner1010/lsm6fifo/lsm6dsox"
)

var (
	// ErrTransport matches every *TransportError: the FIFO could not be read
	// during a tick. The stream keeps going and retries on the next tick.
	ErrTransport = errors.New("lsm6fifo: transport error")
)

// TransportError reports a failed bus read while polling the FIFO. When Op
// is "drain", Drained records out of Pending were decoded before the failure.
type TransportError struct {
	Op      string
	Drained uint16
	Pending uint16
	Err     error
}

func (e *TransportError) Error() string {
	if e.Op == "drain" {
		return fmt.Sprintf("lsm6fifo: FIFO drain aborted after %d of %d records: %v", e.Drained, e.Pending, e.Err)
	}
	return fmt.Sprintf("lsm6fifo: could not read FIFO %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Stream drains the FIFO of an LSM6DSOX configured for accelerometer
// streaming.
type Stream struct {
	sensor sensor
	stats  *window

	bus    string
	addr   uint16
	cfg    lsm6dsox.Config
	policy lsm6dsox.Policy
	size   int
}

type sensor interface {
	Configure(cfg lsm6dsox.Config, policy lsm6dsox.Policy) error
	FIFOStatus() (lsm6dsox.Status, error)
	ReadRecord() (lsm6dsox.Record, error)

	Close() error
}

// Sample is one decoded FIFO record.
type Sample struct {
	Record lsm6dsox.Record
	Type   lsm6dsox.SampleType
	// Value is the raw triplet scaled with the configured full scale, in g.
	Value lsm6dsox.Vector
}

// Label returns the console label of the sample type. Unknown tags keep
// their raw nibble.
func (s Sample) Label() string {
	if s.Type == lsm6dsox.Unknown {
		return fmt.Sprintf("UNKNOWN TAG: 0x%X", s.Record.Nibble())
	}
	return s.Type.String()
}

// State is carried from one Tick to the next.
type State struct {
	Ticks           uint64
	Records         uint64
	TransportErrors uint64
	// Level is the pending count read by the last tick.
	Level uint16
}

// Report is everything a single Tick produced.
type Report struct {
	Status  lsm6dsox.Status
	Samples []Sample
	// Err is a *TransportError when the status or a record could not be
	// read. Samples decoded before the failure are kept.
	Err   error
	Stats Stats
}

// New opens the host I²C bus, then resets and configures the sensor.
func New(opts ...Option) (*Stream, error) {
	s := newStream(opts)

	dev, err := lsm6dsox.New(s.bus, s.addr)
	if err != nil {
		return nil, err
	}
	if err := s.open(dev); err != nil {
		return nil, err
	}
	return s, nil
}

// NewI2C configures the sensor on an already opened bus. OnBus has no
// effect here.
func NewI2C(bus drivers.I2C, opts ...Option) (*Stream, error) {
	s := newStream(opts)
	if err := s.start(lsm6dsox.NewI2C(bus, s.addr)); err != nil {
		return nil, err
	}
	return s, nil
}

func newStream(opts []Option) *Stream {
	s := &Stream{
		addr:   lsm6dsox.Addr,
		cfg:    lsm6dsox.DefaultConfig(),
		policy: lsm6dsox.PolicyFailFast,
		size:   defaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// open starts dev and closes it again when that fails.
func (s *Stream) open(dev sensor) error {
	err := s.start(dev)
	if err == nil {
		return nil
	}
	if cerr := dev.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func (s *Stream) start(dev sensor) error {
	s.sensor = dev
	s.stats = newWindow(s.size)

	log.WithFields(log.Fields{
		"rate":      s.cfg.DataRate,
		"range":     s.cfg.Range,
		"watermark": s.cfg.Watermark,
		"mode":      s.cfg.Mode,
		"policy":    s.policy,
	}).Info("initializing LSM6DSOX FIFO")

	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("lsm6fifo: invalid sensor config: %w", err)
	}

	err := dev.Configure(s.cfg, s.policy)
	switch {
	case err == nil:
	case s.policy == lsm6dsox.PolicyWarn && errors.Is(err, lsm6dsox.ErrSetup):
		log.WithError(err).Warn("sensor setup incomplete, streaming anyway")
	default:
		return fmt.Errorf("lsm6fifo: could not configure sensor: %w", err)
	}

	log.Info("setup complete")
	return nil
}

// Close closes the device and cleans after itself.
func (s *Stream) Close() error {
	return s.sensor.Close()
}

// Tick reads the FIFO level once and drains that many records. A level of
// zero ends the tick without reading FIFO data. The first failed record read
// aborts the drain; nothing is retried before the next tick. Records that
// arrive during the drain are left for the next tick.
func (s *Stream) Tick(st State) (State, Report) {
	st.Ticks++

	status, err := s.sensor.FIFOStatus()
	if err != nil {
		st.TransportErrors++
		return st, Report{Err: &TransportError{Op: "status", Err: err}}
	}
	st.Level = status.Level

	rep := Report{Status: status}
	if status.Level == 0 {
		return st, rep
	}

	rep.Samples = make([]Sample, 0, status.Level)
	for i := uint16(0); i < status.Level; i++ {
		rec, err := s.sensor.ReadRecord()
		if err != nil {
			st.TransportErrors++
			rep.Err = &TransportError{Op: "drain", Drained: i, Pending: status.Level, Err: err}
			break
		}

		smp := Sample{
			Record: rec,
			Type:   rec.Type(),
			Value:  rec.Physical(s.cfg.Range),
		}
		if smp.Type == lsm6dsox.Accelerometer {
			s.stats.add(smp.Value)
		}
		rep.Samples = append(rep.Samples, smp)
	}
	st.Records += uint64(len(rep.Samples))
	rep.Stats = s.stats.snapshot()

	return st, rep
}

// Run ticks every interval and emits each report to sink until ctx is done.
func (s *Stream) Run(ctx context.Context, sink Sink, interval time.Duration) (State, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	var st State
	for {
		var rep Report
		st, rep = s.Tick(st)
		Emit(sink, rep)

		select {
		case <-ctx.Done():
			log.WithFields(log.Fields{
				"ticks":   st.Ticks,
				"records": st.Records,
				"errors":  st.TransportErrors,
			}).Debug("stream stopped")
			return st, ctx.Err()
		case <-t.C:
		}
	}
}
