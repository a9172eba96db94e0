package input

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/gpio-cdev-go"
)

const DefaultGpioChip = "/dev/gpiochip0"

// GpioLines reads input lines wired active-low with pull-up,
// kernel inverts so pressed reads as 1.
type GpioLines struct {
	chip    gpio.Chiper // nil when chip is shared with caller
	lines   gpio.Lineser
	offsets []uint32
}

// OpenGpioLines opens chip device and requests lines for input.
func OpenGpioLines(chipPath, label string, offsets ...uint32) (*GpioLines, error) {
	if chipPath == "" {
		chipPath = DefaultGpioChip
	}
	chip, err := gpio.Open(chipPath, label)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", chipPath)
	}
	g, err := NewGpioLines(chip, label, offsets...)
	if err != nil {
		chip.Close()
		return nil, err
	}
	g.chip = chip
	return g, nil
}

// NewGpioLines requests lines on already open chip.
func NewGpioLines(chip gpio.Chiper, label string, offsets ...uint32) (*GpioLines, error) {
	if len(offsets) == 0 {
		return nil, errors.NotValidf("gpio lines empty")
	}
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_INPUT|gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW, label, offsets...)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open lines=%v", offsets)
	}
	return &GpioLines{lines: lines, offsets: offsets}, nil
}

// Active returns logical value per line in order of offsets.
func (g *GpioLines) Active() ([]bool, error) {
	data, err := g.lines.Read()
	if err != nil {
		return nil, errors.Annotatef(err, "gpio read lines=%v", g.offsets)
	}
	result := make([]bool, len(g.offsets))
	for i := range g.offsets {
		result[i] = data.Values[i] != 0
	}
	return result, nil
}

func (g *GpioLines) String() string { return fmt.Sprintf("gpio%v", g.offsets) }

func (g *GpioLines) Close() error {
	err := g.lines.Close()
	if g.chip != nil {
		if err2 := g.chip.Close(); err == nil {
			err = err2
		}
	}
	return err
}

// GpioButtons is ButtonReader over two GPIO lines: A, B.
type GpioButtons struct{ *GpioLines }

var _ ButtonReader = GpioButtons{}

func (g GpioButtons) ReadButtons() (a, b bool, err error) {
	vs, err := g.Active()
	if err != nil {
		return false, false, err
	}
	return vs[0], vs[1], nil
}

func (g GpioButtons) String() string { return "buttons-" + g.GpioLines.String() }

func NewGpioButtons(chip gpio.Chiper, label string, lineA, lineB uint32) (GpioButtons, error) {
	g, err := NewGpioLines(chip, label, lineA, lineB)
	if err != nil {
		return GpioButtons{}, err
	}
	return GpioButtons{g}, nil
}

func OpenGpioButtons(chipPath, label string, lineA, lineB uint32) (GpioButtons, error) {
	g, err := OpenGpioLines(chipPath, label, lineA, lineB)
	if err != nil {
		return GpioButtons{}, err
	}
	return GpioButtons{g}, nil
}
