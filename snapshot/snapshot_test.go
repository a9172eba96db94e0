package snapshot

import (
	"fmt"
	"testing"
	"time"

	"github.com/embarcatech/sensorlink/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadZoneValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dz    DeadZone
		valid bool
	}{
		{DefaultDeadZone, true},
		{DeadZone{0, 100}, true},
		{DeadZone{0, 1}, true},
		{DeadZone{50, 50}, false},
		{DeadZone{65, 35}, false},
		{DeadZone{-1, 65}, false},
		{DeadZone{35, 101}, false},
	}
	for _, c := range cases {
		c := c
		t.Run(fmt.Sprintf("%d-%d", c.dz.Min, c.dz.Max), func(t *testing.T) {
			err := c.dz.Validate()
			if c.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDirectionScenario(t *testing.T) {
	t.Parallel()

	cases := []struct {
		x, y   int
		expect Direction
	}{
		{50, 90, DirNorth},
		{90, 90, DirNorthEast},
		{50, 50, DirCenter},
		{10, 90, DirNorthWest},
		{50, 10, DirSouth},
		{90, 10, DirSouthEast},
		{10, 10, DirSouthWest},
		{90, 50, DirEast},
		{10, 50, DirWest},
		{35, 65, DirCenter},
		{34, 65, DirWest},
		{35, 66, DirNorth},
		{-1, 50, DirUnknown},
		{50, 101, DirUnknown},
	}
	for _, c := range cases {
		c := c
		t.Run(fmt.Sprintf("%d,%d", c.x, c.y), func(t *testing.T) {
			assert.Equal(t, c.expect, ComputeDirection(c.x, c.y, DefaultDeadZone))
		})
	}
	assert.Equal(t, "Northeast", DirNorthEast.String())
	assert.Equal(t, "NE", DirNorthEast.Compass())
}

// Every point of the plane gets exactly one classification:
// Center iff both axes are inside band, otherwise one of 8 compass
// directions consistent with axis signs.
func TestDirectionPartition(t *testing.T) {
	t.Parallel()

	zones := []DeadZone{DefaultDeadZone, {0, 1}, {10, 20}, {0, 100}, {49, 51}}
	for _, dz := range zones {
		counts := make(map[Direction]int)
		for x := AxisMin; x <= AxisMax; x++ {
			for y := AxisMin; y <= AxisMax; y++ {
				d := ComputeDirection(x, y, dz)
				counts[d]++
				inX, inY := dz.Contains(x), dz.Contains(y)
				require.NotEqual(t, DirUnknown, d, "x=%d y=%d dz=%v", x, y, dz)
				require.Equal(t, inX && inY, d == DirCenter, "x=%d y=%d dz=%v", x, y, dz)

				north, south := y > dz.Max, y < dz.Min
				east, west := x > dz.Max, x < dz.Min
				var expect Direction
				switch {
				case inX && inY:
					expect = DirCenter
				case north && east:
					expect = DirNorthEast
				case north && west:
					expect = DirNorthWest
				case south && east:
					expect = DirSouthEast
				case south && west:
					expect = DirSouthWest
				case north:
					expect = DirNorth
				case south:
					expect = DirSouth
				case east:
					expect = DirEast
				case west:
					expect = DirWest
				}
				require.Equal(t, expect, d, "x=%d y=%d dz=%v", x, y, dz)
			}
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		assert.Equal(t, (AxisMax-AxisMin+1)*(AxisMax-AxisMin+1), total)
		center := (dz.Max - dz.Min + 1) * (dz.Max - dz.Min + 1)
		assert.Equal(t, center, counts[DirCenter], "dz=%v", dz)
	}
}

func TestParseSchema(t *testing.T) {
	t.Parallel()

	s, err := ParseSchema("joystick")
	require.NoError(t, err)
	assert.Equal(t, SchemaJoystick, s)
	s, err = ParseSchema("")
	require.NoError(t, err)
	assert.Equal(t, SchemaButtons, s)
	_, err = ParseSchema("keyboard")
	assert.Error(t, err)
}

func randomReading(rnd interface{ Intn(int) int }) Reading {
	return Reading{
		ButtonA:     rnd.Intn(2) == 1,
		ButtonB:     rnd.Intn(2) == 1,
		X:           rnd.Intn(101),
		Y:           rnd.Intn(101),
		JoyButton:   rnd.Intn(2) == 1,
		Temperature: float64(rnd.Intn(5000)) / 100,
	}
}

// Emission happens only when at least one trigger field differs,
// temperature excluded.
func TestChangedProperty(t *testing.T) {
	t.Parallel()

	rnd := helpers.RandUnix()
	base := time.Unix(1000, 0)
	for _, schema := range []Schema{SchemaButtons, SchemaJoystick} {
		d := Detector{Schema: schema}
		prev := New(randomReading(rnd), DefaultDeadZone, base)
		d.Offer(prev)
		for i := 1; i <= 10000; i++ {
			r := randomReading(rnd)
			// bias toward small changes so both outcomes are frequent
			if rnd.Intn(3) > 0 {
				r = prev.Reading
				r.Temperature = float64(rnd.Intn(5000)) / 100
				if rnd.Intn(2) == 0 {
					r.ButtonA = !r.ButtonA
				}
			}
			cur := New(r, DefaultDeadZone, base.Add(time.Duration(i)*50*time.Millisecond))
			var expect bool
			if schema == SchemaButtons {
				expect = prev.ButtonA != cur.ButtonA || prev.ButtonB != cur.ButtonB
			} else {
				expect = prev.X != cur.X || prev.Y != cur.Y || prev.JoyButton != cur.JoyButton || prev.Direction != cur.Direction
			}
			require.Equal(t, expect, d.Offer(cur), "schema=%s prev=%s cur=%s", schema, prev, cur)
			if expect {
				prev = cur
			}
			last, ok := d.Last()
			require.True(t, ok)
			require.Equal(t, prev, last)
		}
	}
}

func TestDetectorTemperatureNotTrigger(t *testing.T) {
	t.Parallel()

	d := Detector{Schema: SchemaButtons}
	now := time.Unix(1000, 0)
	assert.False(t, d.Offer(New(Reading{Temperature: 20}, DefaultDeadZone, now)), "baseline")
	assert.False(t, d.Offer(New(Reading{Temperature: 31.5}, DefaultDeadZone, now.Add(50*time.Millisecond))))
	cur := New(Reading{ButtonA: true, Temperature: 32}, DefaultDeadZone, now.Add(100*time.Millisecond))
	assert.True(t, d.Offer(cur))
	last, _ := d.Last()
	assert.Equal(t, 32.0, last.Temperature, "temperature attached to change")
}

func TestDetectorInitial(t *testing.T) {
	t.Parallel()

	d := Detector{Schema: SchemaJoystick, EmitInitial: true}
	assert.True(t, d.Offer(New(Reading{X: 50, Y: 50}, DefaultDeadZone, time.Now())))
	assert.False(t, d.Offer(New(Reading{X: 50, Y: 50}, DefaultDeadZone, time.Now())))
	d.Reset()
	_, ok := d.Last()
	assert.False(t, ok)
	assert.True(t, d.EmitInitial)
}

func TestDetectorDebounce(t *testing.T) {
	t.Parallel()

	d := Detector{Schema: SchemaButtons, Debounce: 20 * time.Millisecond}
	t0 := time.Unix(1000, 0)
	at := func(ms int, a bool) Snapshot {
		return New(Reading{ButtonA: a}, DefaultDeadZone, t0.Add(time.Duration(ms)*time.Millisecond))
	}
	assert.False(t, d.Offer(at(0, false)))
	// bounce: pressed for 10ms only
	assert.False(t, d.Offer(at(10, true)))
	assert.False(t, d.Offer(at(20, false)))
	// stable press
	assert.False(t, d.Offer(at(30, true)))
	assert.False(t, d.Offer(at(40, true)))
	assert.True(t, d.Offer(at(50, true)))
	assert.False(t, d.Offer(at(60, true)))
	last, _ := d.Last()
	assert.True(t, last.ButtonA)
	assert.Equal(t, t0.Add(50*time.Millisecond), last.Time)
}
