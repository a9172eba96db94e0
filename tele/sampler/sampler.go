// Package sampler reads sensor source on fixed cadence and pushes changed
// snapshots into event queue. Network latency never extends sampling period,
// producer waits at most PushTimeout on full queue.
package sampler

import (
	"expvar"
	"sync"
	"time"

	"github.com/embarcatech/sensorlink/log2"
	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/embarcatech/sensorlink/tele/queue"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
)

// Reader is sensor source, satisfied by input.Source.
type Reader interface {
	Read() (snapshot.Reading, error)
}

type Options struct {
	Source      Reader
	Queue       *queue.Queue
	Schema      snapshot.Schema
	DeadZone    snapshot.DeadZone
	Period      time.Duration
	PushTimeout time.Duration
	Debounce    time.Duration
	EmitInitial bool
}

type Stat struct {
	Ticks      expvar.Int
	Changes    expvar.Int
	Dropped    expvar.Int
	ReadErrors expvar.Int
}

type Sampler struct {
	opt    Options
	log    *log2.Log
	mu     sync.Mutex // guards detect
	detect snapshot.Detector
	stat   Stat
}

func New(log *log2.Log, opt Options) (*Sampler, error) {
	if opt.Source == nil || opt.Queue == nil {
		return nil, errors.NotValidf("code error sampler Source or Queue nil")
	}
	if opt.DeadZone == (snapshot.DeadZone{}) {
		opt.DeadZone = snapshot.DefaultDeadZone
	}
	if err := opt.DeadZone.Validate(); err != nil {
		return nil, errors.Annotate(err, "sampler")
	}
	if opt.Period <= 0 {
		return nil, errors.NotValidf("sampler period=%s", opt.Period)
	}
	return &Sampler{
		opt: opt,
		log: log,
		detect: snapshot.Detector{
			Schema:      opt.Schema,
			Debounce:    opt.Debounce,
			EmitInitial: opt.EmitInitial,
		},
	}, nil
}

func (s *Sampler) Stat() *Stat { return &s.stat }

// Last returns previously accepted snapshot. Safe to call while Run is active.
func (s *Sampler) Last() (snapshot.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detect.Last()
}

// Tick samples once. Returns true when snapshot was accepted into queue.
func (s *Sampler) Tick(now time.Time) bool {
	s.stat.Ticks.Add(1)
	r, err := s.opt.Source.Read()
	if err != nil {
		s.stat.ReadErrors.Add(1)
		s.log.Errorf("sampler read err=%v", err)
		return false
	}
	snap := snapshot.New(r, s.opt.DeadZone, now)
	s.mu.Lock()
	accepted := s.detect.Offer(snap)
	s.mu.Unlock()
	if !accepted {
		return false
	}
	s.stat.Changes.Add(1)
	s.log.Debugf("sampler change %s", snap)
	if !s.opt.Queue.Push(snap, s.opt.PushTimeout) {
		s.stat.Dropped.Add(1)
		s.log.Debugf("sampler queue full, dropped %s", snap)
		return false
	}
	return true
}

func (s *Sampler) Run(a *alive.Alive) {
	if !a.Add(1) {
		return
	}
	defer a.Done()
	tmr := time.NewTicker(s.opt.Period)
	defer tmr.Stop()
	s.log.Debugf("sampler schema=%s period=%s", s.opt.Schema, s.opt.Period)
	for {
		select {
		case <-a.StopChan():
			return
		case now := <-tmr.C:
			s.Tick(now)
		}
	}
}
