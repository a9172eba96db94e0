// Package tele wires sampling-to-delivery pipeline:
// sampler -> queue -> delivery engine -> collector, gated by link monitor.
//
// Contract:
// - sampler runs in its own goroutine, never waits for network
// - delivery loop holds only latest pending snapshot, older ones are superseded
// - delivery starts only when link is up, rate limiter allows and no attempt is in flight
// - failed snapshot is not retried, next change will be reported
// - Stop waits for in-flight attempt, bounded by phase timeouts
package tele

import (
	"context"
	"expvar"
	"net"
	"sync/atomic"
	"time"

	"github.com/embarcatech/sensorlink/log2"
	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/embarcatech/sensorlink/tele/codec"
	tele_config "github.com/embarcatech/sensorlink/tele/config"
	"github.com/embarcatech/sensorlink/tele/delivery"
	"github.com/embarcatech/sensorlink/tele/link"
	"github.com/embarcatech/sensorlink/tele/queue"
	"github.com/embarcatech/sensorlink/tele/sampler"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

// Deps are external collaborators. Nil transport fields mean stdlib net defaults.
type Deps struct {
	Source     sampler.Reader
	Associator link.Associator
	Resolver   delivery.Resolver
	Dialer     delivery.Dialer
	Now        func() time.Time
}

type Tele struct { //nolint:maligned
	inflight   int32
	superseded expvar.Int

	config  tele_config.Config
	log     *log2.Log
	now     func() time.Time
	Queue   *queue.Queue
	Sampler *sampler.Sampler
	Limiter *delivery.RateLimiter
	Engine  *delivery.Engine
	Link    *link.Monitor

	pending    snapshot.Snapshot
	hasPending bool
	results    chan delivery.Outcome
	observe    func(delivery.Outcome)
}

func New(log *log2.Log, config tele_config.Config, deps Deps) (*Tele, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Annotate(err, "tele config")
	}
	if deps.Source == nil {
		return nil, errors.NotValidf("code error tele Source=nil")
	}
	if config.LogDebug {
		log.SetLevel(log2.LDebug)
	}
	if deps.Associator == nil {
		deps.Associator = &link.Static{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	schema, _ := config.Schema()

	self := &Tele{
		config:  config,
		log:     log,
		now:     deps.Now,
		Queue:   queue.New(config.QueueCapacity()),
		Limiter: delivery.NewRateLimiter(config.MinInterval()),
		results: make(chan delivery.Outcome, 1),
	}
	var err error
	self.Sampler, err = sampler.New(log, sampler.Options{
		Source:      deps.Source,
		Queue:       self.Queue,
		Schema:      schema,
		DeadZone:    config.DeadZone(),
		Period:      config.SamplePeriod(),
		PushTimeout: config.PushTimeout(),
		Debounce:    config.Debounce(),
		EmitInitial: config.EmitInitial(),
	})
	if err != nil {
		return nil, errors.Annotate(err, "tele sampler")
	}
	self.Link, err = link.NewMonitor(log, link.Options{
		Associator:       deps.Associator,
		ConnectTimeout:   config.LinkTimeout(),
		Cooldown:         config.Cooldown(),
		CooldownMax:      config.CooldownMax(),
		BackoffK:         config.Link.BackoffK,
		FailureThreshold: config.LinkFailureThreshold(),
		CheckInterval:    config.CheckInterval(),
		Now:              deps.Now,
	})
	if err != nil {
		return nil, errors.Annotate(err, "tele link")
	}
	if deps.Dialer == nil {
		deps.Dialer = &net.Dialer{}
	}
	self.Engine, err = delivery.New(log, delivery.Options{
		Host: config.Collector.Host,
		Port: config.CollectorPort(),
		Codec: codec.Codec{
			Schema: schema,
			Host:   config.Collector.Host,
			Path:   config.CollectorPath(),
		},
		Resolver:       deps.Resolver,
		Dialer:         deps.Dialer,
		Limiter:        self.Limiter,
		Link:           self.Link,
		ResolveTimeout: config.ResolveTimeout(),
		ConnectTimeout: config.ConnectTimeout(),
		SendTimeout:    config.SendTimeout(),
		RecvTimeout:    config.RecvTimeout(),
		ResolveCache:   config.ResolveCache(),
		ReadLimit:      config.ReadLimit(),
		LogResponse:    config.LogResponse(),
		OnResult:       func(o delivery.Outcome) { self.Link.ReportResult(o.Err) },
		Now:            deps.Now,
	})
	if err != nil {
		return nil, errors.Annotate(err, "tele delivery")
	}
	return self, nil
}

// Run blocks until a is stopped. Sampler and link monitor run in separate goroutines.
func (self *Tele) Run(a *alive.Alive) {
	if !a.Add(1) {
		return
	}
	defer a.Done()
	go self.Sampler.Run(a)
	go self.Link.Run(a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-a.StopChan()
		cancel()
	}()
	for a.IsRunning() {
		self.Step(ctx, a)
	}
	self.log.Debugf("tele stopping, pending=%v", self.hasPending)
}

// Step is one iteration of delivery loop:
// wait for queue up to pop timeout, keep latest snapshot, start attempt when allowed.
func (self *Tele) Step(ctx context.Context, a *alive.Alive) {
	if s, ok := self.Queue.Pop(ctx, self.config.PopTimeout()); ok {
		self.hold(s)
		// drain, latest wins
		for {
			s, ok = self.Queue.Pop(ctx, 0)
			if !ok {
				break
			}
			self.hold(s)
		}
	}
	self.TryDeliver(a)
}

// TryDeliver starts attempt for pending snapshot in separate goroutine.
// Returns false when there is nothing to send or attempt is not allowed now.
func (self *Tele) TryDeliver(a *alive.Alive) bool {
	if !self.hasPending || atomic.LoadInt32(&self.inflight) != 0 {
		return false
	}
	if !self.Link.IsUp() {
		return false
	}
	if !self.Limiter.Allow(self.now()) {
		return false
	}
	if !a.Add(1) {
		return false
	}
	s := self.pending
	self.hasPending = false
	atomic.StoreInt32(&self.inflight, 1)
	go func() {
		defer a.Done()
		// in-flight attempt is not cancelled on stop, phase timeouts bound it
		o := self.Engine.Deliver(context.Background(), s)
		atomic.StoreInt32(&self.inflight, 0)
		if self.observe != nil {
			self.observe(o)
		}
		select {
		case self.results <- o:
		default:
		}
	}()
	return true
}

// SetObserver registers outcome hook, e.g. metrics. Call before Run.
func (self *Tele) SetObserver(f func(delivery.Outcome)) { self.observe = f }

// Results delivers recent attempt outcomes, slow reader misses some.
func (self *Tele) Results() <-chan delivery.Outcome { return self.results }

func (self *Tele) Stat() Stat {
	return Stat{
		Sampler:       self.Sampler.Stat(),
		Queue:         self.Queue.Stat(),
		Delivery:      self.Engine.Stat(),
		DeliveryState: self.Engine.State(),
		Link:          self.Link.Stat(),
		LinkState:     self.Link.State(),
		Superseded:    self.superseded.Value(),
	}
}

func (self *Tele) hold(s snapshot.Snapshot) {
	if self.hasPending {
		self.superseded.Add(1)
		self.log.Debugf("tele superseded %s", self.pending)
	}
	self.pending, self.hasPending = s, true
}
