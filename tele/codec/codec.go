// Package codec serializes snapshots to collector wire format.
// Body is JSON with fixed field order and spacing, framed as HTTP/1.1 POST
// with `Connection: close` so collector terminates stream after response.
package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"strconv"

	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/juju/errors"
)

const DefaultPath = "/dados"

type Codec struct {
	Schema snapshot.Schema
	Host   string // Host header value
	Path   string
}

// Body returns JSON payload for schema.
//
//	buttons:  {"button_a": 0, "button_b": 1, "temperature": 27.34}
//	joystick: {"x_position": 50, "y_position": 90, "button_pressed": 0}
func (c Codec) Body(s snapshot.Snapshot) ([]byte, error) {
	switch c.Schema {
	case snapshot.SchemaButtons:
		if math.IsNaN(s.Temperature) || math.IsInf(s.Temperature, 0) {
			return nil, errors.NotValidf("temperature=%v", s.Temperature)
		}
		return []byte(fmt.Sprintf(`{"button_a": %d, "button_b": %d, "temperature": %.2f}`,
			b2i(s.ButtonA), b2i(s.ButtonB), s.Temperature)), nil
	case snapshot.SchemaJoystick:
		return []byte(fmt.Sprintf(`{"x_position": %d, "y_position": %d, "button_pressed": %d}`,
			s.X, s.Y, b2i(s.JoyButton))), nil
	}
	return nil, errors.NotValidf("schema=%s", c.Schema)
}

// Request returns complete HTTP/1.1 request bytes.
func (c Codec) Request(s snapshot.Snapshot) ([]byte, error) {
	if c.Host == "" {
		return nil, errors.NotValidf("empty Host")
	}
	body, err := c.Body(s)
	if err != nil {
		return nil, errors.Annotate(err, "codec body")
	}
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	buf := bytes.NewBuffer(make([]byte, 0, 160+len(body)))
	buf.WriteString("POST " + path + " HTTP/1.1\r\n")
	buf.WriteString("Host: " + c.Host + "\r\n")
	buf.WriteString("Content-Type: application/json\r\n")
	buf.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	buf.WriteString("Connection: close\r\n")
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

type Response struct {
	Status     string
	StatusCode int
	Body       []byte
}

func (r Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// ParseResponse decodes fully buffered response.
// Truncated body is returned with error.
func ParseResponse(b []byte) (Response, error) {
	if len(b) == 0 {
		return Response{}, errors.NotFoundf("response")
	}
	hr, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return Response{}, errors.Annotate(err, "parse response")
	}
	defer hr.Body.Close()
	r := Response{Status: hr.Status, StatusCode: hr.StatusCode}
	r.Body, err = ioutil.ReadAll(hr.Body)
	if err != nil {
		return r, errors.Annotate(err, "response body")
	}
	return r, nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
