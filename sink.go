package lsm6fifo

import (
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/runner1010/lsm6fifo/lsm6dsox"
)

// Sink receives what the stream produces.
type Sink interface {
	// Pending is called once per tick with a non-zero FIFO level.
	Pending(status lsm6dsox.Status)
	Sample(s Sample)
	Error(err error)
	Stats(st Stats)
}

// Emit forwards a report to sink: the pending count, each sample in FIFO
// order, then the error that ended the tick, if any.
func Emit(sink Sink, r Report) {
	if r.Status.Level > 0 {
		sink.Pending(r.Status)
	}
	for _, s := range r.Samples {
		sink.Sample(s)
	}
	if r.Err != nil {
		sink.Error(r.Err)
	}
	if len(r.Samples) > 0 {
		sink.Stats(r.Stats)
	}
}

// TextSink prints console lines, one per event.
type TextSink struct {
	W io.Writer
}

func (t TextSink) Pending(status lsm6dsox.Status) {
	fmt.Fprintf(t.W, "FIFO Samples: %d\n", status.Level)
}

func (t TextSink) Sample(s Sample) {
	label := s.Label() + ":"
	if s.Type == lsm6dsox.Unknown {
		label = s.Label()
	}
	fmt.Fprintf(t.W, "TAG: 0x%X %s X: %.5f g Y: %.5f g Z: %.5f g\n",
		s.Record.Tag, label, s.Value.X, s.Value.Y, s.Value.Z)
}

func (t TextSink) Error(err error) {
	var te *TransportError
	if errors.As(err, &te) && te.Op == "drain" {
		fmt.Fprintln(t.W, "ERROR: Not enough bytes read from FIFO!")
		return
	}
	fmt.Fprintf(t.W, "ERROR: %v\n", err)
}

func (t TextSink) Stats(Stats) {}

// LogSink emits structured log entries. A nil Logger uses the standard
// logrus logger.
type LogSink struct {
	Logger log.FieldLogger
}

func (l LogSink) logger() log.FieldLogger {
	if l.Logger == nil {
		return log.StandardLogger()
	}
	return l.Logger
}

func (l LogSink) Pending(status lsm6dsox.Status) {
	e := l.logger().WithField("pending", status.Level)
	if status.Overrun() {
		e.Warn("FIFO overrun, oldest samples lost")
		return
	}
	if status.Full() {
		e.Warn("FIFO full, next sample overruns")
		return
	}
	e.Info("FIFO samples")
}

func (l LogSink) Sample(s Sample) {
	l.logger().WithFields(log.Fields{
		"tag":  fmt.Sprintf("0x%02X", s.Record.Tag),
		"type": s.Label(),
		"x":    s.Value.X,
		"y":    s.Value.Y,
		"z":    s.Value.Z,
	}).Info("sample")
}

func (l LogSink) Error(err error) {
	l.logger().WithError(err).Warn("FIFO read failed")
}

func (l LogSink) Stats(st Stats) {
	l.logger().WithFields(log.Fields{
		"count":  st.Count,
		"mean_x": st.Mean.X,
		"mean_y": st.Mean.Y,
		"mean_z": st.Mean.Z,
		"span_x": st.Span.X,
		"span_y": st.Span.Y,
		"span_z": st.Span.Z,
	}).Debug("accelerometer window")
}
