package lsm6dsox

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
	"tinygo.org/x/drivers"
)

var (
	// ErrNotDevice is returned by Probe when WHO_AM_I does not match an
	// LSM6DSOX signature (0x6C).
	ErrNotDevice = errors.New("lsm6dsox: WHO_AM_I does not match (0x6C)")
)

// Device defines an LSM6DSOX device on an I²C bus.
type Device struct {
	bus    drivers.I2C
	addr   uint16
	closer i2c.BusCloser

	sleep func(time.Duration)
}

// New opens an I²C bus on the host and returns an unconfigured device on it.
//
// Argument "busName" can be used to specify the exact bus to use ("/dev/i2c-2", "I2C2", "2").
// Argument "addr" can be used to specify the alternative address (0x6B) when SA0 is pulled high.
// If "busName" argument is specified as an empty string "" the first available bus will be used.
func New(busName string, addr uint16) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("lsm6dsox: could not initialize host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("lsm6dsox: could not open I2C bus: %w", err)
	}

	d := NewI2C(bus, addr)
	d.closer = bus

	return d, nil
}

// NewI2C returns a device on an already opened bus. Any periph.io i2c.Bus
// and any TinyGo machine.I2C can be used. The caller keeps ownership of the
// bus.
func NewI2C(bus drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = Addr
	}
	return &Device{
		bus:   bus,
		addr:  addr,
		sleep: time.Sleep,
	}
}

// Close releases the bus if it was opened by New.
func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Address returns the 7-bit bus address of the device.
func (d *Device) Address() uint16 {
	return d.addr
}

// ID returns the content of WHO_AM_I.
func (d *Device) ID() (byte, error) {
	id, err := d.Read(RegWhoAmI)
	if err != nil {
		return 0, fmt.Errorf("lsm6dsox: could not get WHO_AM_I: %w", err)
	}
	return id, nil
}

// Probe checks that an LSM6DSOX answers on the address.
func (d *Device) Probe() error {
	id, err := d.ID()
	if err != nil {
		return err
	}
	if id != WhoAmI {
		return fmt.Errorf("%w: got %#x", ErrNotDevice, id)
	}
	return nil
}

// Read reads a single byte from a register.
func (d *Device) Read(reg byte) (byte, error) {
	b := make([]byte, 1)
	if err := d.bus.Tx(d.addr, []byte{reg}, b); err != nil {
		return 0, fmt.Errorf("lsm6dsox: could not read %#02x: %w", reg, err)
	}

	return b[0], nil
}

// ReadBytes read n bytes starting at a register.
func (d *Device) ReadBytes(reg byte, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := d.bus.Tx(d.addr, []byte{reg}, b); err != nil {
		return nil, fmt.Errorf("lsm6dsox: could not read %d bytes from %#02x: %w", n, reg, err)
	}

	return b, nil
}

// Write writes a byte to a register.
func (d *Device) Write(reg, data byte) error {
	if err := d.bus.Tx(d.addr, []byte{reg, data}, nil); err != nil {
		return fmt.Errorf("lsm6dsox: could not write %#02x to %#02x: %w", data, reg, err)
	}

	return nil
}
