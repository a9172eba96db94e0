package input

import (
	"fmt"

	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/juju/errors"
)

// ADC is satisfied by *adc.MCP3008.
type ADC interface {
	Read(ch uint8) (uint16, error)
	Max() uint16
}

// Joystick reads two ADC channels scaled to snapshot axis range
// and optional push button line.
type Joystick struct {
	ADC      ADC
	ChannelX uint8
	ChannelY uint8
	Button   *GpioLines // first line is used, nil reads as released
}

var _ JoystickReader = new(Joystick)

func (j *Joystick) ReadJoystick() (x, y int, pressed bool, err error) {
	if x, err = j.axis(j.ChannelX); err != nil {
		return 0, 0, false, err
	}
	if y, err = j.axis(j.ChannelY); err != nil {
		return 0, 0, false, err
	}
	if j.Button != nil {
		vs, err := j.Button.Active()
		if err != nil {
			return 0, 0, false, errors.Annotate(err, "joystick button")
		}
		pressed = vs[0]
	}
	return x, y, pressed, nil
}

func (j *Joystick) axis(ch uint8) (int, error) {
	raw, err := j.ADC.Read(ch)
	if err != nil {
		return 0, err
	}
	return ScaleAxis(raw, j.ADC.Max()), nil
}

func (j *Joystick) String() string {
	return fmt.Sprintf("joystick(x=%d,y=%d)", j.ChannelX, j.ChannelY)
}

// Close releases button line. ADC may be shared and is closed by its owner.
func (j *Joystick) Close() error {
	if j.Button == nil {
		return nil
	}
	return j.Button.Close()
}

// ScaleAxis maps raw ADC value 0..max to snapshot.AxisMin..AxisMax, truncating.
func ScaleAxis(raw, max uint16) int {
	if max == 0 {
		return snapshot.AxisMin
	}
	if raw > max {
		raw = max
	}
	return snapshot.AxisMin + int(raw)*(snapshot.AxisMax-snapshot.AxisMin)/int(max)
}
