// Separate package is workaround to import cycles.
package tele_config

import (
	"time"

	"github.com/embarcatech/sensorlink/helpers"
	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/juju/errors"
)

const (
	DefaultPath             = "/dados"
	DefaultPort             = 80
	DefaultSamplePeriod     = 50 * time.Millisecond
	DefaultQueueCapacity    = 5
	DefaultPushTimeout      = 10 * time.Millisecond
	DefaultPopTimeout       = 100 * time.Millisecond
	DefaultMinInterval      = 1000 * time.Millisecond
	DefaultPhaseTimeout     = 5 * time.Second
	DefaultReadLimit        = 16 << 10
	DefaultFailureThreshold = 3
	DefaultLinkTimeout      = 10 * time.Second
	DefaultCooldown         = 10 * time.Second
	DefaultCheckInterval    = 1 * time.Second
)

type Config struct { //nolint:maligned
	LogDebug bool `hcl:"log_debug" yaml:"log_debug"`

	Collector struct {
		Host string `hcl:"host" yaml:"host"`
		Port int    `hcl:"port" yaml:"port"`
		Path string `hcl:"path" yaml:"path"`
	} `hcl:"collector" yaml:"collector"`

	Sampler struct {
		Schema      string            `hcl:"schema" yaml:"schema"`
		PeriodMs    int               `hcl:"period_ms" yaml:"period_ms"`
		DebounceMs  int               `hcl:"debounce_ms" yaml:"debounce_ms"`
		EmitInitial *bool             `hcl:"emit_initial" yaml:"emit_initial"`
		DeadZone    snapshot.DeadZone `hcl:"dead_zone" yaml:"dead_zone"`
	} `hcl:"sampler" yaml:"sampler"`

	Queue struct {
		Capacity      int `hcl:"capacity" yaml:"capacity"`
		PushTimeoutMs int `hcl:"push_timeout_ms" yaml:"push_timeout_ms"`
		PopTimeoutMs  int `hcl:"pop_timeout_ms" yaml:"pop_timeout_ms"`
	} `hcl:"queue" yaml:"queue"`

	Delivery struct {
		MinIntervalMs        int   `hcl:"min_interval_ms" yaml:"min_interval_ms"`
		ResolveTimeoutMs     int   `hcl:"resolve_timeout_ms" yaml:"resolve_timeout_ms"`
		ConnectTimeoutMs     int   `hcl:"connect_timeout_ms" yaml:"connect_timeout_ms"`
		SendTimeoutMs        int   `hcl:"send_timeout_ms" yaml:"send_timeout_ms"`
		RecvTimeoutMs        int   `hcl:"recv_timeout_ms" yaml:"recv_timeout_ms"`
		ResolveCacheSec      int   `hcl:"resolve_cache_sec" yaml:"resolve_cache_sec"`
		ReadLimit            int   `hcl:"read_limit" yaml:"read_limit"`
		LinkFailureThreshold int   `hcl:"link_failure_threshold" yaml:"link_failure_threshold"`
		LogResponse          *bool `hcl:"log_response" yaml:"log_response"`
	} `hcl:"delivery" yaml:"delivery"`

	Link struct {
		Driver            string   `hcl:"driver" yaml:"driver"`
		Iface             string   `hcl:"iface" yaml:"iface"`
		SSID              string   `hcl:"ssid" yaml:"ssid"`
		Password          string   `hcl:"password" yaml:"password"` // secret
		ConnectCommand    []string `hcl:"connect_command" yaml:"connect_command"`
		ConnectTimeoutSec int      `hcl:"connect_timeout_sec" yaml:"connect_timeout_sec"`
		CooldownSec       int      `hcl:"cooldown_sec" yaml:"cooldown_sec"`
		CooldownMaxSec    int      `hcl:"cooldown_max_sec" yaml:"cooldown_max_sec"`
		BackoffK          float32  `hcl:"backoff_k" yaml:"backoff_k"`
		CheckIntervalMs   int      `hcl:"check_interval_ms" yaml:"check_interval_ms"`
	} `hcl:"link" yaml:"link"`
}

func (c *Config) Schema() (snapshot.Schema, error) { return snapshot.ParseSchema(c.Sampler.Schema) }

// Joystick variant reports initial position, buttons variant takes it as silent baseline.
func (c *Config) EmitInitial() bool {
	if c.Sampler.EmitInitial != nil {
		return *c.Sampler.EmitInitial
	}
	s, _ := c.Schema()
	return s == snapshot.SchemaJoystick
}

func (c *Config) DeadZone() snapshot.DeadZone {
	if c.Sampler.DeadZone == (snapshot.DeadZone{}) {
		return snapshot.DefaultDeadZone
	}
	return c.Sampler.DeadZone
}

func (c *Config) CollectorPort() int {
	if c.Collector.Port == 0 {
		return DefaultPort
	}
	return c.Collector.Port
}

func (c *Config) CollectorPath() string {
	if c.Collector.Path == "" {
		return DefaultPath
	}
	return c.Collector.Path
}

func (c *Config) SamplePeriod() time.Duration {
	return helpers.IntMillisecondDefault(c.Sampler.PeriodMs, DefaultSamplePeriod)
}
func (c *Config) Debounce() time.Duration {
	return helpers.IntMillisecondDefault(c.Sampler.DebounceMs, 0)
}

func (c *Config) QueueCapacity() int {
	if c.Queue.Capacity == 0 {
		return DefaultQueueCapacity
	}
	return c.Queue.Capacity
}
func (c *Config) PushTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Queue.PushTimeoutMs, DefaultPushTimeout)
}
func (c *Config) PopTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Queue.PopTimeoutMs, DefaultPopTimeout)
}

func (c *Config) MinInterval() time.Duration {
	return helpers.IntMillisecondDefault(c.Delivery.MinIntervalMs, DefaultMinInterval)
}
func (c *Config) ResolveTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Delivery.ResolveTimeoutMs, DefaultPhaseTimeout)
}
func (c *Config) ConnectTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Delivery.ConnectTimeoutMs, DefaultPhaseTimeout)
}
func (c *Config) SendTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Delivery.SendTimeoutMs, DefaultPhaseTimeout)
}
func (c *Config) RecvTimeout() time.Duration {
	return helpers.IntMillisecondDefault(c.Delivery.RecvTimeoutMs, DefaultPhaseTimeout)
}

// 0 = resolved address is trusted for whole run.
func (c *Config) ResolveCache() time.Duration {
	return helpers.IntSecondDefault(c.Delivery.ResolveCacheSec, 0)
}

func (c *Config) ReadLimit() int {
	if c.Delivery.ReadLimit == 0 {
		return DefaultReadLimit
	}
	return c.Delivery.ReadLimit
}

func (c *Config) LinkFailureThreshold() int {
	if c.Delivery.LinkFailureThreshold == 0 {
		return DefaultFailureThreshold
	}
	return c.Delivery.LinkFailureThreshold
}

func (c *Config) LogResponse() bool {
	return c.Delivery.LogResponse == nil || *c.Delivery.LogResponse
}

func (c *Config) LinkTimeout() time.Duration {
	return helpers.IntSecondDefault(c.Link.ConnectTimeoutSec, DefaultLinkTimeout)
}
func (c *Config) Cooldown() time.Duration {
	return helpers.IntSecondDefault(c.Link.CooldownSec, DefaultCooldown)
}
func (c *Config) CooldownMax() time.Duration {
	return helpers.IntSecondDefault(c.Link.CooldownMaxSec, c.Cooldown())
}
func (c *Config) CheckInterval() time.Duration {
	return helpers.IntMillisecondDefault(c.Link.CheckIntervalMs, DefaultCheckInterval)
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 8)
	if c.Collector.Host == "" {
		errs = append(errs, errors.NotValidf("collector.host empty"))
	}
	if p := c.CollectorPort(); p < 1 || p > 65535 {
		errs = append(errs, errors.NotValidf("collector.port=%d", p))
	}
	if _, err := c.Schema(); err != nil {
		errs = append(errs, errors.Annotate(err, "sampler.schema"))
	}
	if err := c.DeadZone().Validate(); err != nil {
		errs = append(errs, errors.Annotate(err, "sampler.dead_zone"))
	}
	for _, x := range []struct {
		name string
		v    int
	}{
		{"sampler.period_ms", c.Sampler.PeriodMs},
		{"sampler.debounce_ms", c.Sampler.DebounceMs},
		{"queue.capacity", c.Queue.Capacity},
		{"queue.push_timeout_ms", c.Queue.PushTimeoutMs},
		{"queue.pop_timeout_ms", c.Queue.PopTimeoutMs},
		{"delivery.min_interval_ms", c.Delivery.MinIntervalMs},
		{"delivery.resolve_timeout_ms", c.Delivery.ResolveTimeoutMs},
		{"delivery.connect_timeout_ms", c.Delivery.ConnectTimeoutMs},
		{"delivery.send_timeout_ms", c.Delivery.SendTimeoutMs},
		{"delivery.recv_timeout_ms", c.Delivery.RecvTimeoutMs},
		{"delivery.read_limit", c.Delivery.ReadLimit},
		{"link.connect_timeout_sec", c.Link.ConnectTimeoutSec},
		{"link.cooldown_sec", c.Link.CooldownSec},
	} {
		// zero means default
		if x.v < 0 {
			errs = append(errs, errors.NotValidf("%s=%d negative", x.name, x.v))
		}
	}
	if c.CooldownMax() < c.Cooldown() {
		errs = append(errs, errors.NotValidf("link.cooldown_max_sec < cooldown_sec"))
	}
	switch c.Link.Driver {
	case "", "static", "iface":
	default:
		errs = append(errs, errors.NotValidf("link.driver=%q", c.Link.Driver))
	}
	return helpers.FoldErrors(errs)
}
