package snapshot

import (
	"fmt"

	"github.com/juju/errors"
)

const (
	AxisMin = 0
	AxisMax = 100
)

// DeadZone is symmetric band around joystick neutral position on 0-100 scale.
// Motion inside band is ignored.
type DeadZone struct {
	Min int `hcl:"min" yaml:"min"`
	Max int `hcl:"max" yaml:"max"`
}

var DefaultDeadZone = DeadZone{Min: 35, Max: 65}

func (dz DeadZone) Validate() error {
	if dz.Min < AxisMin || dz.Max > AxisMax || dz.Min >= dz.Max {
		return errors.NotValidf("dead zone [%d,%d] must satisfy %d <= min < max <= %d", dz.Min, dz.Max, AxisMin, AxisMax)
	}
	return nil
}

func (dz DeadZone) Contains(v int) bool { return v >= dz.Min && v <= dz.Max }

type Direction uint8

const (
	DirUnknown Direction = iota
	DirCenter
	DirNorth
	DirSouth
	DirEast
	DirWest
	DirNorthEast
	DirNorthWest
	DirSouthEast
	DirSouthWest
)

var directionNames = [...]struct{ long, short string }{
	DirUnknown:   {"Unknown", "?"},
	DirCenter:    {"Center", "C"},
	DirNorth:     {"North", "N"},
	DirSouth:     {"South", "S"},
	DirEast:      {"East", "E"},
	DirWest:      {"West", "W"},
	DirNorthEast: {"Northeast", "NE"},
	DirNorthWest: {"Northwest", "NW"},
	DirSouthEast: {"Southeast", "SE"},
	DirSouthWest: {"Southwest", "SW"},
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d].long
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

func (d Direction) Compass() string {
	if int(d) < len(directionNames) {
		return directionNames[d].short
	}
	return "?"
}

// ComputeDirection classifies joystick position against dead zone.
// Y grows to North, X grows to East.
// Coordinates outside 0-100 are Unknown.
func ComputeDirection(x, y int, dz DeadZone) Direction {
	if x < AxisMin || x > AxisMax || y < AxisMin || y > AxisMax {
		return DirUnknown
	}
	if dz.Contains(x) && dz.Contains(y) {
		return DirCenter
	}
	east, west := x > dz.Max, x < dz.Min
	switch {
	case y > dz.Max:
		switch {
		case west:
			return DirNorthWest
		case east:
			return DirNorthEast
		}
		return DirNorth
	case y < dz.Min:
		switch {
		case west:
			return DirSouthWest
		case east:
			return DirSouthEast
		}
		return DirSouth
	case east:
		return DirEast
	case west:
		return DirWest
	}
	return DirUnknown
}
