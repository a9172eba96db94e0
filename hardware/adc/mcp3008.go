// Package adc talks to MCP3008 8-channel 10-bit ADC over SPI.
package adc

import (
	"sync"

	"github.com/juju/errors"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const (
	MCP3008Channels = 8
	MCP3008Max      = 1023

	DefaultSpiSpeed = 1 * physic.MegaHertz
)

type SpiTxFunc func(send, recv []byte) error

type MCP3008 struct {
	mu   sync.Mutex
	tx   SpiTxFunc
	port spi.PortCloser // only for resource cleanup
}

type Config struct {
	SpiBus   string `hcl:"spi" yaml:"spi"`
	SpiMode  int    `hcl:"spi_mode" yaml:"spi_mode"`
	SpiSpeed string `hcl:"spi_speed" yaml:"spi_speed"`
}

func Open(c Config) (*MCP3008, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph/init")
	}
	port, err := spireg.Open(c.SpiBus)
	if err != nil {
		return nil, errors.Annotatef(err, "SPI Open bus=%s", c.SpiBus)
	}
	speed := DefaultSpiSpeed
	if c.SpiSpeed != "" {
		if err = speed.Set(c.SpiSpeed); err != nil {
			port.Close()
			return nil, errors.Annotate(err, "SPI speed parse")
		}
	}
	conn, err := port.Connect(speed, spi.Mode(c.SpiMode), 8)
	if err != nil {
		port.Close()
		return nil, errors.Annotate(err, "SPI Connect")
	}
	return &MCP3008{tx: conn.Tx, port: port}, nil
}

// New is used with custom transfer function, e.g. in tests.
func New(tx SpiTxFunc) *MCP3008 { return &MCP3008{tx: tx} }

func (m *MCP3008) Max() uint16 { return MCP3008Max }

// Read single-ended channel.
// Frame: start bit, single/diff + channel in high nibble, then 10 bit result.
func (m *MCP3008) Read(ch uint8) (uint16, error) {
	if ch >= MCP3008Channels {
		return 0, errors.NotValidf("MCP3008 channel=%d", ch)
	}
	send := [3]byte{0x01, (0x08 | ch) << 4, 0x00}
	var recv [3]byte
	m.mu.Lock()
	err := m.tx(send[:], recv[:])
	m.mu.Unlock()
	if err != nil {
		return 0, errors.Annotatef(err, "MCP3008 read channel=%d", ch)
	}
	return uint16(recv[1]&0x03)<<8 | uint16(recv[2]), nil
}

func (m *MCP3008) Close() error {
	if m.port == nil {
		return nil
	}
	return m.port.Close()
}
