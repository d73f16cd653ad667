package lsm6fifo

import (
	"time"

	"github.com/runner1010/lsm6fifo/lsm6dsox"
)

// DefaultInterval is the pause between two polls of the FIFO level.
const DefaultInterval = 10 * time.Millisecond

const defaultWindow = 64

// An Option configures a stream.
type Option func(s *Stream) Option

// OnBus can be used to specify I²C bus name
// ("/dev/i2c-2", "I2C2", "2"). By default, the bus name is "", which selects
// the first available bus.
func OnBus(name string) Option {
	return func(s *Stream) Option {
		old := s.bus
		s.bus = name
		return OnBus(old)
	}
}

// OnAddr can be used to specify alternative I²C address.
// By default, the address is 0x6A.
func OnAddr(addr uint16) Option {
	return func(s *Stream) Option {
		old := s.addr
		s.addr = addr
		return OnAddr(old)
	}
}

// WithConfig replaces the sensor configuration. By default,
// lsm6dsox.DefaultConfig() is used.
func WithConfig(cfg lsm6dsox.Config) Option {
	return func(s *Stream) Option {
		old := s.cfg
		s.cfg = cfg
		return WithConfig(old)
	}
}

// WithPolicy selects how setup failures are handled. By default, the first
// failure aborts New.
func WithPolicy(p lsm6dsox.Policy) Option {
	return func(s *Stream) Option {
		old := s.policy
		s.policy = p
		return WithPolicy(old)
	}
}

// WithWindow sets how many accelerometer samples the rolling statistics
// cover.
func WithWindow(n int) Option {
	return func(s *Stream) Option {
		old := s.size
		if n > 0 {
			s.size = n
		}
		return WithWindow(old)
	}
}
