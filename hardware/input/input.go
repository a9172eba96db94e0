// Package input provides sensor sources: buttons, joystick, temperature.
package input

import (
	"strings"
	"sync"

	"github.com/embarcatech/sensorlink/helpers"
	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/juju/errors"
)

// Source produces complete sensor reading vector on demand.
type Source interface {
	Read() (snapshot.Reading, error)
	String() string
	Close() error
}

type ButtonReader interface {
	ReadButtons() (a, b bool, err error)
}

type JoystickReader interface {
	// x, y in snapshot.AxisMin..AxisMax
	ReadJoystick() (x, y int, pressed bool, err error)
}

type TemperatureReader interface {
	ReadTemperature() (float64, error)
}

// Composite merges partial readers into Source. Nil parts read as zero.
type Composite struct {
	Buttons     ButtonReader
	Joystick    JoystickReader
	Temperature TemperatureReader
}

// compile-time interface compliance test
var _ Source = new(Composite)

func (c *Composite) Read() (snapshot.Reading, error) {
	r := snapshot.Reading{}
	var err error
	if c.Buttons != nil {
		if r.ButtonA, r.ButtonB, err = c.Buttons.ReadButtons(); err != nil {
			return snapshot.Reading{}, errors.Annotate(err, "buttons")
		}
	}
	if c.Joystick != nil {
		if r.X, r.Y, r.JoyButton, err = c.Joystick.ReadJoystick(); err != nil {
			return snapshot.Reading{}, errors.Annotate(err, "joystick")
		}
	}
	if c.Temperature != nil {
		if r.Temperature, err = c.Temperature.ReadTemperature(); err != nil {
			return snapshot.Reading{}, errors.Annotate(err, "temperature")
		}
	}
	return r, nil
}

func (c *Composite) String() string {
	parts := make([]string, 0, 3)
	for _, x := range []interface{}{c.Buttons, c.Joystick, c.Temperature} {
		if s, ok := x.(interface{ String() string }); ok {
			parts = append(parts, s.String())
		}
	}
	return "composite(" + strings.Join(parts, ",") + ")"
}

func (c *Composite) Close() error {
	errs := make([]error, 0, 3)
	for _, x := range []interface{}{c.Buttons, c.Joystick, c.Temperature} {
		if cl, ok := x.(interface{ Close() error }); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return helpers.FoldErrors(errs)
}

// StaticIdle is nothing pressed, joystick centered.
var StaticIdle = snapshot.Reading{
	X: (snapshot.AxisMin + snapshot.AxisMax) / 2,
	Y: (snapshot.AxisMin + snapshot.AxisMax) / 2,
}

// Static returns fixed reading, changeable with Set. For dry runs and tests.
type Static struct {
	mu sync.Mutex
	r  snapshot.Reading
}

func NewStatic(r snapshot.Reading) *Static { return &Static{r: r} }

func (s *Static) Read() (snapshot.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r, nil
}

func (s *Static) Set(f func(*snapshot.Reading)) {
	s.mu.Lock()
	f(&s.r)
	s.mu.Unlock()
}

func (s *Static) String() string { return "static" }
func (s *Static) Close() error   { return nil }

type Func func() (snapshot.Reading, error)

func (f Func) Read() (snapshot.Reading, error) { return f() }
func (f Func) String() string                  { return "func" }
func (f Func) Close() error                    { return nil }
