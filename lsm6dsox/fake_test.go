package lsm6dsox

import (
	"errors"
	"sync"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/physic"
)

var _ i2c.Bus = (*fakeBus)(nil)

var errNack = errors.New("nack")

type access struct {
	reg   byte
	data  byte
	write bool
	ok    bool
}

// fakeBus emulates the register file and FIFO of a device at Addr and logs
// every attempted access.
type fakeBus struct {
	mu        sync.Mutex
	regs      map[byte]byte
	fifo      [][]byte
	failWrite func(reg, data byte) bool
	failRead  func(reg byte) bool
	log       []access
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: make(map[byte]byte)}
}

func (f *fakeBus) String() string                  { return "fake" }
func (f *fakeBus) SetSpeed(physic.Frequency) error { return nil }

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if addr != Addr || len(w) == 0 {
		return errNack
	}
	reg := w[0]

	if len(w) == 2 && len(r) == 0 {
		ok := f.failWrite == nil || !f.failWrite(reg, w[1])
		f.log = append(f.log, access{reg: reg, data: w[1], write: true, ok: ok})
		if !ok {
			return errNack
		}
		f.regs[reg] = w[1]
		return nil
	}

	ok := f.failRead == nil || !f.failRead(reg)
	f.log = append(f.log, access{reg: reg, ok: ok})
	if !ok {
		return errNack
	}
	if reg == FIFODataOutTag {
		if len(f.fifo) == 0 || len(f.fifo[0]) < len(r) {
			return errors.New("short read")
		}
		copy(r, f.fifo[0])
		f.fifo = f.fifo[1:]
		return nil
	}
	for i := range r {
		r[i] = f.regs[reg+byte(i)]
	}
	return nil
}

func (f *fakeBus) writes() []access {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []access
	for _, a := range f.log {
		if a.write {
			out = append(out, a)
		}
	}
	return out
}
