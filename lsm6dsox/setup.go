package lsm6dsox

import (
	"errors"
	"fmt"
)

// ErrSetup matches every *SetupError.
var ErrSetup = errors.New("lsm6dsox: setup failed")

// SetupError records a register access that failed during Configure.
type SetupError struct {
	Step string
	Reg  byte
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("lsm6dsox: setup step %q (register %#02x): %v", e.Step, e.Reg, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSetup) hold for any SetupError.
func (e *SetupError) Is(target error) bool { return target == ErrSetup }

// setup runs the configuration sequence and applies the failure policy to
// every access.
type setup struct {
	d      *Device
	policy Policy
	errs   []error
}

func (s *setup) stopped() bool {
	return s.policy == PolicyFailFast && len(s.errs) > 0
}

func (s *setup) fail(step string, reg byte, err error) {
	s.errs = append(s.errs, &SetupError{Step: step, Reg: reg, Err: err})
}

func (s *setup) write(step string, reg, data byte) bool {
	if s.stopped() {
		return false
	}
	if err := s.d.Write(reg, data); err != nil {
		s.fail(step, reg, err)
		return false
	}
	return true
}

// clear reads reg and writes it back with the bits in mask cleared.
func (s *setup) clear(step string, reg, mask byte) bool {
	if s.stopped() {
		return false
	}
	v, err := s.d.Read(reg)
	if err != nil {
		// Without the current value the sibling bits cannot be preserved.
		s.fail(step, reg, err)
		return false
	}
	return s.write(step, reg, v&^mask)
}

func (s *setup) err() error {
	switch {
	case len(s.errs) == 0 || s.policy == PolicyIgnore:
		return nil
	case s.policy == PolicyFailFast:
		return s.errs[0]
	}
	return errors.Join(s.errs...)
}

// Configure resets the device and programs it to stream the accelerometer
// through the FIFO as described by cfg. Nothing is read back except CTRL10_C,
// which is rewritten with TIMESTAMP_EN cleared. A missing device therefore
// only shows up as failed bus transactions, which are handled according to
// policy.
func (d *Device) Configure(cfg Config, policy Policy) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s := &setup{d: d, policy: policy}

	if s.write("reset", Ctrl3C, SoftwareReset) {
		// The reset is not polled; it is assumed complete after the delay.
		d.sleep(cfg.ResetDelay)
	}

	s.write("accelerometer", Ctrl1XL, cfg.Ctrl1XL())
	s.write("gyroscope", Ctrl2G, cfg.Ctrl2G())
	s.clear("timestamp", Ctrl10C, TimestampEna)

	if !cfg.EmbeddedFunctions {
		d.disableEmbedded(s)
	}

	s.write("fifo watermark", FIFOCtrl1, cfg.FIFOCtrl1())
	s.write("fifo decimation", FIFOCtrl2, cfg.FIFOCtrl2())
	s.write("fifo batch rate", FIFOCtrl3, cfg.FIFOCtrl3())
	s.write("fifo mode", FIFOCtrl4, cfg.FIFOCtrl4())

	return s.err()
}

// disableEmbedded switches to the embedded function bank, turns off the step
// counter, tilt and sensor hub, and switches back. The bank writes are only
// issued once access has been granted, otherwise they would land on the main
// bank registers sharing their addresses.
func (d *Device) disableEmbedded(s *setup) {
	if s.stopped() {
		return
	}
	if s.write("embedded access", FuncCfgAccess, EmbeddedAccess) {
		s.write("embedded functions A", EmbFuncEnA, 0x00)
		s.write("embedded functions B", EmbFuncEnB, 0x00)
		s.write("sensor hub", SensorHubEnable, 0x00)
	}
	// Always leave the bank, even when failing fast, so that no later access
	// lands in it.
	if err := d.Write(FuncCfgAccess, 0x00); err != nil {
		s.fail("embedded exit", FuncCfgAccess, err)
	}
}
