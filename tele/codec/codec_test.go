package codec

import (
	"math"
	"testing"
	"time"

	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBody(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		schema snapshot.Schema
		r      snapshot.Reading
		expect string
	}{
		{"buttons/a", snapshot.SchemaButtons, snapshot.Reading{ButtonA: true, Temperature: 27.345},
			`{"button_a": 1, "button_b": 0, "temperature": 27.34}`},
		{"buttons/none", snapshot.SchemaButtons, snapshot.Reading{Temperature: -3},
			`{"button_a": 0, "button_b": 0, "temperature": -3.00}`},
		{"buttons/both", snapshot.SchemaButtons, snapshot.Reading{ButtonA: true, ButtonB: true, Temperature: 21.999},
			`{"button_a": 1, "button_b": 1, "temperature": 22.00}`},
		{"joystick", snapshot.SchemaJoystick, snapshot.Reading{X: 50, Y: 90, JoyButton: true, ButtonA: true},
			`{"x_position": 50, "y_position": 90, "button_pressed": 1}`},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			codec := Codec{Schema: c.schema, Host: "collector"}
			b, err := codec.Body(snapshot.New(c.r, snapshot.DefaultDeadZone, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, c.expect, string(b))
		})
	}
}

func TestBodyInvalid(t *testing.T) {
	t.Parallel()

	c := Codec{Schema: snapshot.SchemaButtons, Host: "collector"}
	_, err := c.Body(snapshot.Snapshot{Reading: snapshot.Reading{Temperature: math.NaN()}})
	assert.Error(t, err)
	_, err = c.Request(snapshot.Snapshot{Reading: snapshot.Reading{Temperature: math.Inf(1)}})
	assert.Error(t, err)
	_, err = Codec{Schema: snapshot.Schema(9), Host: "x"}.Body(snapshot.Snapshot{})
	assert.Error(t, err)
	_, err = Codec{}.Request(snapshot.Snapshot{})
	assert.Error(t, err)
}

func TestRequest(t *testing.T) {
	t.Parallel()

	c := Codec{Schema: snapshot.SchemaButtons, Host: "crossover.proxy.rlwy.net"}
	s := snapshot.New(snapshot.Reading{ButtonA: true, Temperature: 24.5}, snapshot.DefaultDeadZone, time.Now())
	b, err := c.Request(s)
	require.NoError(t, err)
	expect := "POST /dados HTTP/1.1\r\n" +
		"Host: crossover.proxy.rlwy.net\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 52\r\n" +
		"Connection: close\r\n" +
		"\r\n" +
		`{"button_a": 1, "button_b": 0, "temperature": 24.50}`
	assert.Equal(t, expect, string(b))
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	r, err := ParseResponse([]byte("HTTP/1.1 201 Created\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok"))
	require.NoError(t, err)
	assert.Equal(t, 201, r.StatusCode)
	assert.True(t, r.OK())
	assert.Equal(t, "ok", string(r.Body))

	r, err = ParseResponse([]byte("HTTP/1.1 400 Bad Request\r\nConnection: close\r\n\r\nbad json"))
	require.NoError(t, err)
	assert.False(t, r.OK())
	assert.Equal(t, "bad json", string(r.Body))

	_, err = ParseResponse(nil)
	assert.Error(t, err)
	_, err = ParseResponse([]byte("garbage"))
	assert.Error(t, err)
}
