package lsm6dsox

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"periph.io/x/periph/conn/physic"
)

// DataRate is an output data rate code as used by ODR_XL, ODR_G and the
// FIFO batch data rate fields. The codes are shared by all three fields.
type DataRate byte

// Output data rates
const (
	DataRatePowerDown DataRate = iota
	DataRate12Hz5
	DataRate26Hz
	DataRate52Hz
	DataRate104Hz
	DataRate208Hz
	DataRate416Hz
	DataRate833Hz
	DataRate1666Hz
	DataRate3332Hz
	DataRate6667Hz
	DataRate1Hz6
)

var dataRateFreq = [...]physic.Frequency{
	DataRatePowerDown: 0,
	DataRate12Hz5:     12500 * physic.MilliHertz,
	DataRate26Hz:      26 * physic.Hertz,
	DataRate52Hz:      52 * physic.Hertz,
	DataRate104Hz:     104 * physic.Hertz,
	DataRate208Hz:     208 * physic.Hertz,
	DataRate416Hz:     416 * physic.Hertz,
	DataRate833Hz:     833 * physic.Hertz,
	DataRate1666Hz:    1666 * physic.Hertz,
	DataRate3332Hz:    3332 * physic.Hertz,
	DataRate6667Hz:    6667 * physic.Hertz,
	DataRate1Hz6:      1600 * physic.MilliHertz,
}

// Frequency returns the sampling frequency selected by the code.
func (r DataRate) Frequency() physic.Frequency {
	if int(r) >= len(dataRateFreq) {
		return 0
	}
	return dataRateFreq[r]
}

func (r DataRate) valid() bool {
	return int(r) < len(dataRateFreq)
}

func (r DataRate) String() string {
	if r == DataRatePowerDown {
		return "power-down"
	}
	if !r.valid() {
		return fmt.Sprintf("DataRate(%d)", byte(r))
	}
	return r.Frequency().String()
}

// ParseDataRate returns the code whose frequency is hz. Zero selects
// DataRatePowerDown.
func ParseDataRate(hz float64) (DataRate, error) {
	f := physic.Frequency(math.Round(hz * float64(physic.Hertz)))
	for i, v := range dataRateFreq {
		if v == f {
			return DataRate(i), nil
		}
	}
	return 0, fmt.Errorf("lsm6dsox: unsupported data rate %gHz", hz)
}

// Range is the accelerometer full-scale selection. The value is the FS_XL
// field of CTRL1_XL; G and Scale derive the conversion from it so the
// register encoding and the raw-to-g factor always agree.
type Range byte

// Accelerometer full-scale ranges
const (
	Range2G  Range = 0b00
	Range16G Range = 0b01
	Range4G  Range = 0b10
	Range8G  Range = 0b11
)

// G returns the full-scale magnitude in g.
func (r Range) G() float64 {
	switch r {
	case Range2G:
		return 2
	case Range4G:
		return 4
	case Range8G:
		return 8
	case Range16G:
		return 16
	}
	return 0
}

// Scale returns the g value of one LSB.
func (r Range) Scale() float64 {
	return r.G() / 32768.0
}

func (r Range) String() string {
	if r.G() == 0 {
		return fmt.Sprintf("Range(%d)", byte(r))
	}
	return fmt.Sprintf("±%gg", r.G())
}

// ParseRange returns the range for a full scale of ±g.
func ParseRange(g int) (Range, error) {
	for _, r := range []Range{Range2G, Range4G, Range8G, Range16G} {
		if r.G() == float64(g) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("lsm6dsox: unsupported full scale ±%dg", g)
}

// FIFOMode is the FIFO_MODE field of FIFO_CTRL4.
type FIFOMode byte

// FIFO operating modes
const (
	ModeBypass             FIFOMode = 0b000
	ModeFIFO               FIFOMode = 0b001
	ModeContinuousToFIFO   FIFOMode = 0b011
	ModeBypassToContinuous FIFOMode = 0b100
	ModeContinuous         FIFOMode = 0b110
	ModeBypassToFIFO       FIFOMode = 0b111
)

var modeNames = map[FIFOMode]string{
	ModeBypass:             "bypass",
	ModeFIFO:               "fifo",
	ModeContinuousToFIFO:   "continuous-to-fifo",
	ModeBypassToContinuous: "bypass-to-continuous",
	ModeContinuous:         "continuous",
	ModeBypassToFIFO:       "bypass-to-fifo",
}

func (m FIFOMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("FIFOMode(%d)", byte(m))
}

// ParseMode parses a mode name as printed by FIFOMode.String.
func ParseMode(name string) (FIFOMode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, s := range modeNames {
		if s == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("lsm6dsox: unknown FIFO mode %q", name)
}

// Config holds everything Configure programs into the device.
type Config struct {
	DataRate  DataRate
	Range     Range
	Watermark uint16
	BatchRate DataRate
	Mode      FIFOMode
	// GyroRate of DataRatePowerDown keeps the gyroscope off.
	GyroRate DataRate
	// EmbeddedFunctions leaves the step counter, tilt and sensor hub
	// untouched when set. Otherwise they are disabled.
	EmbeddedFunctions bool
	ResetDelay        time.Duration
}

// DefaultConfig streams the accelerometer alone at 6667Hz, ±4g, into a
// continuous FIFO with a watermark of 32 records.
func DefaultConfig() Config {
	return Config{
		DataRate:   DataRate6667Hz,
		Range:      Range4G,
		Watermark:  32,
		BatchRate:  DataRate12Hz5,
		Mode:       ModeContinuous,
		GyroRate:   DataRatePowerDown,
		ResetDelay: 100 * time.Millisecond,
	}
}

// Validate reports fields that cannot be encoded in their registers.
func (c Config) Validate() error {
	var errs []error
	if !c.DataRate.valid() {
		errs = append(errs, fmt.Errorf("invalid data rate %d", c.DataRate))
	}
	if !c.GyroRate.valid() || c.GyroRate == DataRate1Hz6 {
		errs = append(errs, fmt.Errorf("invalid gyroscope data rate %d", c.GyroRate))
	}
	if !c.BatchRate.valid() {
		errs = append(errs, fmt.Errorf("invalid batch rate %d", c.BatchRate))
	}
	if c.Range.G() == 0 {
		errs = append(errs, fmt.Errorf("invalid range %d", c.Range))
	}
	if _, ok := modeNames[c.Mode]; !ok {
		errs = append(errs, fmt.Errorf("invalid FIFO mode %d", c.Mode))
	}
	if c.Watermark > MaxWatermark {
		errs = append(errs, fmt.Errorf("watermark %d exceeds %d", c.Watermark, MaxWatermark))
	}
	if c.ResetDelay < 0 {
		errs = append(errs, fmt.Errorf("negative reset delay %v", c.ResetDelay))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("lsm6dsox: invalid config: %w", err)
	}
	return nil
}

// Ctrl1XL packs the data rate into the high nibble and the full scale into
// bits 3..2.
func (c Config) Ctrl1XL() byte {
	return byte(c.DataRate)<<4&odrMask | byte(c.Range)<<2&rangeMask
}

// Ctrl2G selects the gyroscope data rate at its default full scale.
func (c Config) Ctrl2G() byte {
	return byte(c.GyroRate) << 4 & odrMask
}

// FIFOCtrl1 returns the low byte of the watermark.
func (c Config) FIFOCtrl1() byte {
	return byte(c.Watermark)
}

// FIFOCtrl2 returns WTM8 with decimation and compression left off.
func (c Config) FIFOCtrl2() byte {
	return byte(c.Watermark>>8) & wtm8
}

// FIFOCtrl3 batches the accelerometer only.
func (c Config) FIFOCtrl3() byte {
	return byte(c.BatchRate) & 0x0F
}

// FIFOCtrl4 returns the FIFO mode with temperature and timestamp batching off.
func (c Config) FIFOCtrl4() byte {
	return byte(c.Mode) & modeMask
}

// Policy decides how Configure reacts to a failed register access.
type Policy int

// Setup failure policies
const (
	// PolicyFailFast stops at the first failed access and returns it.
	PolicyFailFast Policy = iota
	// PolicyWarn attempts every step and returns all failures joined.
	PolicyWarn
	// PolicyIgnore attempts every step and reports nothing.
	PolicyIgnore
)

var policyNames = [...]string{"fail-fast", "warn", "ignore"}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policyNames[p]
}

// ParsePolicy parses a policy name as printed by Policy.String.
func ParsePolicy(name string) (Policy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, s := range policyNames {
		if s == name {
			return Policy(i), nil
		}
	}
	return 0, fmt.Errorf("lsm6dsox: unknown setup policy %q", name)
}
