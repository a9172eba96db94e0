// Package snapshot defines immutable captured state of monitored inputs
// and change detection between consecutive captures.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
)

// Schema selects payload shape and change trigger set.
type Schema uint8

const (
	SchemaButtons Schema = iota
	SchemaJoystick
)

func (s Schema) String() string {
	switch s {
	case SchemaButtons:
		return "buttons"
	case SchemaJoystick:
		return "joystick"
	}
	return fmt.Sprintf("Schema(%d)", uint8(s))
}

func ParseSchema(s string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "buttons":
		return SchemaButtons, nil
	case "joystick":
		return SchemaJoystick, nil
	}
	return 0, errors.NotValidf("schema=%q", s)
}

// Reading is raw vector from sensor source.
// Zero value is a valid "nothing pressed" reading.
type Reading struct {
	ButtonA     bool
	ButtonB     bool
	X           int
	Y           int
	JoyButton   bool
	Temperature float64
}

// Snapshot is passed by value and never mutated after New.
type Snapshot struct {
	Reading
	Direction Direction
	Time      time.Time
}

func New(r Reading, dz DeadZone, t time.Time) Snapshot {
	return Snapshot{
		Reading:   r,
		Direction: ComputeDirection(r.X, r.Y, dz),
		Time:      t,
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("a=%d b=%d x=%d y=%d btn=%d dir=%s temp=%.2f",
		b2i(s.ButtonA), b2i(s.ButtonB), s.X, s.Y, b2i(s.JoyButton), s.Direction.Compass(), s.Temperature)
}

// Changed compares trigger set of schema with exact equality.
// Temperature is never a trigger, it rides along with other changes.
func Changed(prev, cur Snapshot, schema Schema) bool {
	switch schema {
	case SchemaJoystick:
		return prev.X != cur.X || prev.Y != cur.Y ||
			prev.JoyButton != cur.JoyButton || prev.Direction != cur.Direction
	default:
		return prev.ButtonA != cur.ButtonA || prev.ButtonB != cur.ButtonB
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
