package state

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/embarcatech/sensorlink/hardware/adc"
	"github.com/embarcatech/sensorlink/helpers"
	"github.com/embarcatech/sensorlink/log2"
	"github.com/embarcatech/sensorlink/snapshot"
	tele_config "github.com/embarcatech/sensorlink/tele/config"
	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include" yaml:"include"`

	Hardware struct {
		// Static source with nothing pressed, for dry runs without sensors.
		Static bool `hcl:"static" yaml:"static"`

		Buttons struct {
			// gpio | input_event, empty = disabled
			Driver string `hcl:"driver" yaml:"driver"`
			Chip   string `hcl:"chip" yaml:"chip"`
			LineA  int    `hcl:"line_a" yaml:"line_a"`
			LineB  int    `hcl:"line_b" yaml:"line_b"`
			Device string `hcl:"device" yaml:"device"`
			KeyA   int    `hcl:"key_a" yaml:"key_a"`
			KeyB   int    `hcl:"key_b" yaml:"key_b"`
		} `hcl:"buttons" yaml:"buttons"`

		Joystick struct {
			Enable     bool   `hcl:"enable" yaml:"enable"`
			ChannelX   int    `hcl:"channel_x" yaml:"channel_x"`
			ChannelY   int    `hcl:"channel_y" yaml:"channel_y"`
			Button     bool   `hcl:"button" yaml:"button"`
			ButtonChip string `hcl:"button_chip" yaml:"button_chip"`
			ButtonLine int    `hcl:"button_line" yaml:"button_line"`
		} `hcl:"joystick" yaml:"joystick"`

		Temperature struct {
			// sysfs | adc, empty = disabled
			Driver    string  `hcl:"driver" yaml:"driver"`
			Path      string  `hcl:"path" yaml:"path"`
			Channel   int     `hcl:"channel" yaml:"channel"`
			Vref      float64 `hcl:"vref" yaml:"vref"`
			Reference float64 `hcl:"reference" yaml:"reference"`
			CacheMs   int     `hcl:"cache_ms" yaml:"cache_ms"`
		} `hcl:"temperature" yaml:"temperature"`

		Adc adc.Config `hcl:"adc" yaml:"adc"`
	} `hcl:"hardware" yaml:"hardware"`

	Metrics struct {
		Listen string `hcl:"listen" yaml:"listen"`
	} `hcl:"metrics" yaml:"metrics"`

	Tele tele_config.Config `hcl:"tele" yaml:"tele"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key" yaml:"name"`
	Optional bool   `hcl:"optional" yaml:"optional"`
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 4)
	if err := c.Tele.Validate(); err != nil {
		errs = append(errs, errors.Annotate(err, "tele"))
	}
	hw := &c.Hardware
	switch hw.Buttons.Driver {
	case "", "gpio":
	case "input_event":
		if hw.Buttons.Device == "" {
			errs = append(errs, errors.NotValidf("hardware.buttons.device empty"))
		}
	default:
		errs = append(errs, errors.NotValidf("hardware.buttons.driver=%s valid: gpio, input_event", hw.Buttons.Driver))
	}
	switch hw.Temperature.Driver {
	case "", "sysfs", "adc":
	default:
		errs = append(errs, errors.NotValidf("hardware.temperature.driver=%s valid: sysfs, adc", hw.Temperature.Driver))
	}
	if hw.Joystick.Enable && (!validChannel(hw.Joystick.ChannelX) || !validChannel(hw.Joystick.ChannelY)) {
		errs = append(errs, errors.NotValidf("hardware.joystick channel_x=%d channel_y=%d", hw.Joystick.ChannelX, hw.Joystick.ChannelY))
	}
	if hw.Temperature.Driver == "adc" && !validChannel(hw.Temperature.Channel) {
		errs = append(errs, errors.NotValidf("hardware.temperature.channel=%d", hw.Temperature.Channel))
	}
	if hw.Temperature.CacheMs < 0 {
		errs = append(errs, errors.NotValidf("hardware.temperature.cache_ms=%d", hw.Temperature.CacheMs))
	}
	if schema, _ := c.Tele.Schema(); schema == snapshot.SchemaJoystick && !hw.Joystick.Enable && !hw.Static {
		errs = append(errs, errors.NotValidf("schema=joystick requires hardware.joystick.enable"))
	}
	return helpers.FoldErrors(errs)
}

func validChannel(ch int) bool { return ch >= 0 && ch < adc.MCP3008Channels }

func isYaml(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if isYaml(source.Name) {
		err = yaml.Unmarshal(bs, c)
	} else {
		err = hcl.Unmarshal(bs, c)
	}
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s", source.Name)
		*errs = append(*errs, err)
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig reads sources in order, later values overwrite earlier.
// Names ending with .yaml or .yml are parsed as YAML, others as HCL.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.Errorf("code error ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
