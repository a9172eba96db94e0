package input

import (
	"fmt"
	"io/ioutil"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/embarcatech/sensorlink/helpers/cacheval"
	"github.com/juju/errors"
)

const (
	DefaultThermalZone   = "/sys/class/thermal/thermal_zone0/temp"
	DefaultVref          = 3.3
	DefaultTempReference = 21.0
	// on-die sensor: 0.706 V at reference, slope -1.721 mV/°C
	sensorVoltRef   = 0.706
	sensorVoltSlope = 0.001721
)

// SysfsThermal reads millidegree integer file, e.g. thermal_zone temp.
type SysfsThermal struct {
	Path string
}

var _ TemperatureReader = SysfsThermal{}

func (s SysfsThermal) ReadTemperature() (float64, error) {
	b, err := ioutil.ReadFile(s.Path)
	if err != nil {
		return 0, errors.Annotatef(err, "thermal read path=%s", s.Path)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0, errors.Annotatef(err, "thermal parse path=%s", s.Path)
	}
	return float64(milli) / 1000, nil
}

func (s SysfsThermal) String() string { return "sysfs(" + s.Path + ")" }

// AdcThermal converts raw ADC reading of analog temperature sensor.
//
//	V = raw/max*Vref
//	T = Reference - (V-0.706)/0.001721
type AdcThermal struct {
	ADC       ADC
	Channel   uint8
	Vref      float64 // default 3.3
	Reference float64 // default 21.0
}

var _ TemperatureReader = new(AdcThermal)

func (a *AdcThermal) ReadTemperature() (float64, error) {
	raw, err := a.ADC.Read(a.Channel)
	if err != nil {
		return 0, errors.Annotate(err, "thermal adc")
	}
	vref, ref := a.Vref, a.Reference
	if vref == 0 {
		vref = DefaultVref
	}
	if ref == 0 {
		ref = DefaultTempReference
	}
	return ConvertTemperature(raw, a.ADC.Max(), vref, ref), nil
}

func (a *AdcThermal) String() string { return fmt.Sprintf("adc-thermal(ch=%d)", a.Channel) }

func ConvertTemperature(raw, max uint16, vref, reference float64) float64 {
	v := float64(raw) / float64(max) * vref
	return reference - (v-sensorVoltRef)/sensorVoltSlope
}

// CachedTemperature limits sensor access rate.
// After first success, read errors return last known value.
type CachedTemperature struct {
	TemperatureReader
	cache cacheval.Int32
	ok    uint32
}

func NewCachedTemperature(r TemperatureReader, valid time.Duration) *CachedTemperature {
	c := &CachedTemperature{TemperatureReader: r}
	c.cache.Init(valid)
	return c
}

func (c *CachedTemperature) ReadTemperature() (float64, error) {
	milli, err := c.cache.GetOrUpdate(func() (int32, error) {
		t, err := c.TemperatureReader.ReadTemperature()
		if err != nil {
			return 0, err
		}
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, errors.NotValidf("temperature=%v", t)
		}
		return int32(math.Round(t * 1000)), nil
	})
	if err == nil {
		atomic.StoreUint32(&c.ok, 1)
	} else if atomic.LoadUint32(&c.ok) == 0 {
		return 0, err
	}
	return float64(milli) / 1000, nil
}

func (c *CachedTemperature) String() string {
	if s, ok := c.TemperatureReader.(fmt.Stringer); ok {
		return "cached-" + s.String()
	}
	return "cached-temperature"
}
