package source

import (
	"context"
	"io"

	"go.bug.st/serial"

	"github.com/kbukum/pipecat/errors"
)

// Serial line defaults, matching what most USB serial adapters power up with.
const (
	DefaultBaudRate = 9600
	DefaultDataBits = 8
	DefaultParity   = "none"
	DefaultStopBits = "1"
)

// PortConfig describes the line settings of a serial device.
type PortConfig struct {
	Device   string
	BaudRate int
	DataBits int
	// Parity is one of none, odd, even, mark or space.
	Parity string
	// StopBits is one of 1, 1.5 or 2.
	StopBits string
}

var parities = map[string]serial.Parity{
	"none":  serial.NoParity,
	"odd":   serial.OddParity,
	"even":  serial.EvenParity,
	"mark":  serial.MarkParity,
	"space": serial.SpaceParity,
}

var stopBits = map[string]serial.StopBits{
	"1":   serial.OneStopBit,
	"1.5": serial.OnePointFiveStopBits,
	"2":   serial.TwoStopBits,
}

// Mode converts the settings to a serial.Mode. Zero values take the
// defaults above.
func (c PortConfig) Mode() (*serial.Mode, error) {
	if c.BaudRate < 0 {
		return nil, errors.InvalidInput("baud", "must not be negative")
	}
	mode := &serial.Mode{BaudRate: c.BaudRate, DataBits: c.DataBits}
	if mode.BaudRate == 0 {
		mode.BaudRate = DefaultBaudRate
	}
	if mode.DataBits == 0 {
		mode.DataBits = DefaultDataBits
	}

	name := c.Parity
	if name == "" {
		name = DefaultParity
	}
	parity, ok := parities[name]
	if !ok {
		return nil, errors.InvalidInput("parity", "must be one of none, odd, even, mark, space")
	}
	mode.Parity = parity

	name = c.StopBits
	if name == "" {
		name = DefaultStopBits
	}
	stop, ok := stopBits[name]
	if !ok {
		return nil, errors.InvalidInput("stop_bits", "must be one of 1, 1.5, 2")
	}
	mode.StopBits = stop
	return mode, nil
}

// openSerial is replaced in tests.
var openSerial = func(device string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(device, mode)
}

// OpenPort returns an Opener for Serial that opens cfg.Device with its
// line settings applied on every attempt.
func OpenPort(cfg PortConfig) (Opener, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}
	return func(context.Context) (io.ReadCloser, error) {
		return openSerial(cfg.Device, mode)
	}, nil
}
