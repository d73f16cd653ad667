package lsm6dsox

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortRecord is returned when a FIFO record is not exactly RecordSize
// bytes long.
var ErrShortRecord = errors.New("lsm6dsox: short FIFO record")

// Level returns the number of unread records from FIFO_STATUS1 and the
// DIFF_FIFO[9:8] bits of FIFO_STATUS2.
func Level(status1, status2 byte) uint16 {
	return uint16(status1) | uint16(status2&levelMask)<<8
}

// Status is the decoded content of FIFO_STATUS1 and FIFO_STATUS2.
type Status struct {
	Level uint16
	Flags byte
}

// Watermark reports whether the level reached the configured threshold.
func (s Status) Watermark() bool { return s.Flags&WatermarkReached != 0 }

// Overrun reports whether at least one record was overwritten.
func (s Status) Overrun() bool { return s.Flags&(Overrun|OverrunLatched) != 0 }

// Full reports whether the FIFO will be full at the next sample.
func (s Status) Full() bool { return s.Flags&Full != 0 }

// FIFOStatus reads the FIFO fill level and flags.
func (d *Device) FIFOStatus() (Status, error) {
	s1, err := d.Read(FIFOStatus1)
	if err != nil {
		return Status{}, fmt.Errorf("lsm6dsox: could not read FIFO level: %w", err)
	}
	s2, err := d.Read(FIFOStatus2)
	if err != nil {
		return Status{}, fmt.Errorf("lsm6dsox: could not read FIFO level: %w", err)
	}

	return Status{
		Level: Level(s1, s2),
		Flags: s2 &^ levelMask,
	}, nil
}

// ReadRecord pops one tagged record from the FIFO.
func (d *Device) ReadRecord() (Record, error) {
	b, err := d.ReadBytes(FIFODataOutTag, RecordSize)
	if err != nil {
		return Record{}, err
	}
	return DecodeRecord(b)
}

// SampleType identifies the sensor a FIFO record comes from.
type SampleType byte

// Sample types
const (
	Unknown SampleType = iota
	Accelerometer
	Gyroscope
	Temperature
	Timestamp
	StepCounter
	SensorHub
	ExternalSensor0
	ExternalSensor1
	ExternalSensor2
	ExternalSensor3
	Error
)

// tagTypes maps the low nibble of a tag byte to its sample type.
var tagTypes = [16]SampleType{
	0x1: Accelerometer,
	0x2: Gyroscope,
	0x3: Temperature,
	0x4: Timestamp,
	0x5: StepCounter,
	0x6: SensorHub,
	0x7: ExternalSensor0,
	0x8: ExternalSensor1,
	0x9: ExternalSensor2,
	0xA: ExternalSensor3,
	0xF: Error,
}

var sampleTypeNames = [...]string{
	Unknown:         "UNKNOWN",
	Accelerometer:   "ACCEL",
	Gyroscope:       "GYRO",
	Temperature:     "TEMPERATURE",
	Timestamp:       "TIMESTAMP",
	StepCounter:     "STEP_COUNTER",
	SensorHub:       "SENSOR_HUB",
	ExternalSensor0: "EXT_SENSOR_0",
	ExternalSensor1: "EXT_SENSOR_1",
	ExternalSensor2: "EXT_SENSOR_2",
	ExternalSensor3: "EXT_SENSOR_3",
	Error:           "ERROR",
}

func (t SampleType) String() string {
	if int(t) < len(sampleTypeNames) {
		return sampleTypeNames[t]
	}
	return fmt.Sprintf("SampleType(%d)", byte(t))
}

// Classify returns the sample type encoded in the low nibble of a tag byte.
func Classify(tag byte) SampleType {
	return tagTypes[tag&0x0F]
}

// Record is one FIFO entry. The payload is always read as a signed 3-axis
// triplet whatever the tag says.
type Record struct {
	Tag     byte
	X, Y, Z int16
}

// DecodeRecord decodes a RecordSize byte FIFO entry.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) != RecordSize {
		return Record{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortRecord, len(b), RecordSize)
	}
	return Record{
		Tag: b[0],
		X:   int16(binary.LittleEndian.Uint16(b[1:3])),
		Y:   int16(binary.LittleEndian.Uint16(b[3:5])),
		Z:   int16(binary.LittleEndian.Uint16(b[5:7])),
	}, nil
}

// Type classifies the record by its tag.
func (r Record) Type() SampleType { return Classify(r.Tag) }

// Nibble returns the raw low nibble of the tag.
func (r Record) Nibble() byte { return r.Tag & 0x0F }

// Vector is a 3-axis value in physical units.
type Vector struct {
	X, Y, Z float64
}

// Physical converts the raw triplet with the scale of rng.
func (r Record) Physical(rng Range) Vector {
	scale := rng.Scale()
	return Vector{
		X: float64(r.X) * scale,
		Y: float64(r.Y) * scale,
		Z: float64(r.Z) * scale,
	}
}
