// Package link tracks connectivity state and drives reconnection with cool-down.
// State is single-writer (Monitor) and read atomically by delivery.
package link

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embarcatech/sensorlink/helpers"
	"github.com/embarcatech/sensorlink/log2"
	"github.com/embarcatech/sensorlink/tele/delivery"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

type State int32

const (
	Down State = iota
	Connecting
	Up
)

func (s State) String() string {
	switch s {
	case Down:
		return "down"
	case Connecting:
		return "connecting"
	case Up:
		return "up"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultCooldown         = 10 * time.Second
	DefaultCheckInterval    = time.Second
	DefaultFailureThreshold = 3
)

type Options struct {
	Associator       Associator
	ConnectTimeout   time.Duration
	Cooldown         time.Duration
	CooldownMax      time.Duration
	BackoffK         float32
	FailureThreshold int
	CheckInterval    time.Duration
	Now              func() time.Time
}

type Stat struct {
	Attempts  expvar.Int
	Successes expvar.Int
	Failures  expvar.Int
	Drops     expvar.Int
}

type Monitor struct {
	state       int32 // atomic State
	consecutive int32
	mu          sync.Mutex // serializes association attempts
	opt         Options
	log         *log2.Log
	backoff     helpers.Backoff
	stat        Stat
}

func NewMonitor(log *log2.Log, opt Options) (*Monitor, error) {
	if opt.Associator == nil {
		return nil, errors.NotValidf("code error link Associator=nil")
	}
	if opt.ConnectTimeout == 0 {
		opt.ConnectTimeout = DefaultConnectTimeout
	}
	if opt.Cooldown == 0 {
		opt.Cooldown = DefaultCooldown
	}
	if opt.CooldownMax < opt.Cooldown {
		opt.CooldownMax = opt.Cooldown
	}
	if opt.FailureThreshold == 0 {
		opt.FailureThreshold = DefaultFailureThreshold
	}
	if opt.CheckInterval == 0 {
		opt.CheckInterval = DefaultCheckInterval
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	m := &Monitor{opt: opt, log: log}
	m.backoff = helpers.Backoff{
		Min: opt.Cooldown,
		Max: opt.CooldownMax,
		K:   opt.BackoffK,
		Res: time.Millisecond,
		Now: func() int64 { return m.opt.Now().UnixNano() },
	}
	return m, nil
}

func (m *Monitor) State() State { return State(atomic.LoadInt32(&m.state)) }
func (m *Monitor) IsUp() bool   { return m.State() == Up }
func (m *Monitor) Stat() *Stat  { return &m.stat }

// NextAttempt returns remaining cool-down before reconnection is allowed.
func (m *Monitor) NextAttempt() time.Duration { return m.backoff.DelayBefore() }

// AttemptConnect runs one bounded association attempt: Down -> Connecting -> Up|Down.
// Called once at startup and by Run timer after cool-down.
func (m *Monitor) AttemptConnect(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() == Up && m.opt.Associator.Associated() {
		return Up
	}

	m.backoff.Begin()
	m.stat.Attempts.Add(1)
	m.setState(Connecting)
	ctx, cancel := context.WithTimeout(ctx, m.opt.ConnectTimeout)
	defer cancel()
	err := m.opt.Associator.Associate(ctx)
	if err == nil && !m.opt.Associator.Associated() {
		err = errors.Errorf("link %s not associated after connect", m.opt.Associator)
	}
	if err != nil {
		m.backoff.Failure()
		m.stat.Failures.Add(1)
		m.setState(Down)
		m.log.Errorf("link connect %s err=%v next attempt in %s", m.opt.Associator, err, m.NextAttempt())
		return Down
	}
	m.backoff.Reset()
	m.stat.Successes.Add(1)
	atomic.StoreInt32(&m.consecutive, 0)
	m.setState(Up)
	m.log.Infof("link %s up", m.opt.Associator)
	return Up
}

// ReportResult receives delivery outcome.
// Link-level failure drops link immediately, consecutive network failures
// drop it after threshold, success resets counter.
func (m *Monitor) ReportResult(err error) {
	if err == nil {
		atomic.StoreInt32(&m.consecutive, 0)
		return
	}
	switch delivery.ReasonOf(err) {
	case delivery.LinkDown:
		m.markDown("delivery link failure")
	case delivery.DnsFailure, delivery.ConnectFailure:
		n := atomic.AddInt32(&m.consecutive, 1)
		if int(n) >= m.opt.FailureThreshold {
			atomic.StoreInt32(&m.consecutive, 0)
			m.markDown(fmt.Sprintf("consecutive network failures=%d", n))
		}
	}
}

// Tick is one iteration of Run loop.
// Up and disassociated -> Down. Down and cool-down elapsed -> AttemptConnect.
func (m *Monitor) Tick(ctx context.Context) {
	switch m.State() {
	case Up:
		if !m.opt.Associator.Associated() {
			m.markDown("disassociated")
		}
	case Down:
		if delay := m.NextAttempt(); delay > 0 {
			m.log.Debugf("link down, reconnect in %s", delay)
			return
		}
		m.AttemptConnect(ctx)
	}
}

func (m *Monitor) Run(a *alive.Alive) {
	if !a.Add(1) {
		return
	}
	defer a.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-a.StopChan()
		cancel()
	}()

	m.AttemptConnect(ctx)
	tmr := time.NewTicker(m.opt.CheckInterval)
	defer tmr.Stop()
	for {
		select {
		case <-a.StopChan():
			return
		case <-tmr.C:
			m.Tick(ctx)
		}
	}
}

func (m *Monitor) markDown(why string) {
	if atomic.CompareAndSwapInt32(&m.state, int32(Up), int32(Down)) {
		m.stat.Drops.Add(1)
		m.log.Errorf("link %s down: %s", m.opt.Associator, why)
	}
}

func (m *Monitor) setState(s State) {
	old := State(atomic.SwapInt32(&m.state, int32(s)))
	if old != s {
		m.log.Debugf("link state %s -> %s", old, s)
	}
}
