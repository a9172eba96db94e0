package state

import (
	"sync"

	"github.com/embarcatech/sensorlink/hardware/adc"
	"github.com/embarcatech/sensorlink/hardware/input"
	"github.com/embarcatech/sensorlink/helpers"
	"github.com/juju/errors"
)

const gpioConsumer = "sensorlink"

// AdcDevice is shared analog converter, satisfied by *adc.MCP3008.
type AdcDevice interface {
	input.ADC
	Close() error
}

type Hardware struct {
	// Source may be set before Init, e.g. by tests.
	Source input.Source

	adcOnce sync.Once
	adc     AdcDevice
	adcErr  error
	openAdc func(adc.Config) (AdcDevice, error) // test override
}

// Adc opens shared MCP3008 once, used by joystick and temperature.
// Hardware owns it, sources only borrow.
func (g *Global) Adc() (AdcDevice, error) {
	h := &g.Hardware
	h.adcOnce.Do(func() {
		open := h.openAdc
		if open == nil {
			open = openMCP3008
		}
		h.adc, h.adcErr = open(g.Config.Hardware.Adc)
		if h.adcErr != nil {
			h.adcErr = errors.Annotatef(h.adcErr, "config: hardware.adc=%#v", g.Config.Hardware.Adc)
		}
	})
	return h.adc, h.adcErr
}

// Close releases sensor source, then shared ADC.
func (h *Hardware) Close() error {
	errs := make([]error, 0, 2)
	if h.Source != nil {
		errs = append(errs, errors.Annotate(h.Source.Close(), "source"))
	}
	errs = append(errs, errors.Annotate(h.closeAdc(), "adc"))
	return helpers.FoldErrors(errs)
}

func (h *Hardware) closeAdc() error {
	if h.adc == nil {
		return nil
	}
	err := h.adc.Close()
	h.adc = nil
	return err
}

func openMCP3008(c adc.Config) (AdcDevice, error) {
	m, err := adc.Open(c)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (g *Global) initSource() (input.Source, error) {
	hw := &g.Config.Hardware
	if hw.Static {
		g.Log.Infof("input=static")
		return input.NewStatic(input.StaticIdle), nil
	}

	src := &input.Composite{}
	var err error
	if src.Buttons, err = g.initButtons(); err != nil {
		return nil, err
	}
	if src.Joystick, err = g.initJoystick(); err != nil {
		g.closePartial(src)
		return nil, err
	}
	if src.Temperature, err = g.initTemperature(); err != nil {
		g.closePartial(src)
		return nil, err
	}
	return src, nil
}

func (g *Global) closePartial(src *input.Composite) {
	if err := src.Close(); err != nil {
		g.Error(err, "hardware cleanup source")
	}
	if err := g.Hardware.closeAdc(); err != nil {
		g.Error(err, "hardware cleanup adc")
	}
}

func (g *Global) initButtons() (input.ButtonReader, error) {
	c := &g.Config.Hardware.Buttons
	switch c.Driver {
	case "":
		g.Log.Infof("input=buttons disabled")
		return nil, nil
	case "gpio":
		b, err := input.OpenGpioButtons(c.Chip, gpioConsumer, uint32(c.LineA), uint32(c.LineB))
		return b, errors.Annotate(err, "input=buttons")
	case "input_event":
		b, err := input.OpenEventButtons(c.Device, uint16(c.KeyA), uint16(c.KeyB))
		return b, errors.Annotatef(err, "input=%s", input.DevInputEventTag)
	}
	return nil, errors.NotValidf("hardware.buttons.driver=%s", c.Driver)
}

func (g *Global) initJoystick() (input.JoystickReader, error) {
	c := &g.Config.Hardware.Joystick
	if !c.Enable {
		return nil, nil
	}
	a, err := g.Adc()
	if err != nil {
		return nil, errors.Annotate(err, "input=joystick")
	}
	j := &input.Joystick{ADC: a, ChannelX: uint8(c.ChannelX), ChannelY: uint8(c.ChannelY)}
	if c.Button {
		if j.Button, err = input.OpenGpioLines(c.ButtonChip, gpioConsumer, uint32(c.ButtonLine)); err != nil {
			return nil, errors.Annotate(err, "input=joystick button")
		}
	}
	return j, nil
}

func (g *Global) initTemperature() (input.TemperatureReader, error) {
	c := &g.Config.Hardware.Temperature
	var r input.TemperatureReader
	switch c.Driver {
	case "":
		return nil, nil
	case "sysfs":
		path := c.Path
		if path == "" {
			path = input.DefaultThermalZone
		}
		r = input.SysfsThermal{Path: path}
	case "adc":
		a, err := g.Adc()
		if err != nil {
			return nil, errors.Annotate(err, "input=temperature")
		}
		r = &input.AdcThermal{ADC: a, Channel: uint8(c.Channel), Vref: c.Vref, Reference: c.Reference}
	default:
		return nil, errors.NotValidf("hardware.temperature.driver=%s", c.Driver)
	}
	return input.NewCachedTemperature(r, helpers.IntMillisecondDefault(c.CacheMs, 0)), nil
}
