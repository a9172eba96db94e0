// Package delivery drives one telemetry report through
// resolve, connect, send, receive and close phases.
//
// Contract:
// - single-flight: at most one attempt at a time, concurrent Deliver gets ErrBusy
// - every phase is bounded by its timeout
// - connection is closed exactly once on every exit path
// - failures stay local to attempt, reported via Outcome and OnResult
// - rate limiter is updated with attempt start time on success
package delivery

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/embarcatech/sensorlink/helpers"
	"github.com/embarcatech/sensorlink/helpers/cacheval"
	"github.com/embarcatech/sensorlink/log2"
	"github.com/embarcatech/sensorlink/snapshot"
	"github.com/embarcatech/sensorlink/tele/codec"
	"github.com/juju/errors"
)

const (
	DefaultPhaseTimeout = 5 * time.Second
	DefaultReadLimit    = 16 << 10
)

// Resolver is satisfied by *net.Resolver.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type LinkGate interface {
	IsUp() bool
}

type Options struct {
	Host  string
	Port  int
	Codec codec.Codec

	Resolver Resolver
	Dialer   Dialer
	Limiter  *RateLimiter
	Link     LinkGate // optional

	ResolveTimeout time.Duration
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	RecvTimeout    time.Duration
	// 0 = resolved address is valid for whole run
	ResolveCache time.Duration
	ReadLimit    int
	LogResponse  bool

	// Called after connection is closed, before engine becomes idle.
	OnResult func(Outcome)
	// Clock for attempt start and rate limiter, deadlines use wall clock.
	Now func() time.Time
}

type Outcome struct {
	Snapshot snapshot.Snapshot
	Start    time.Time
	Duration time.Duration
	Addr     string
	// Response is valid when Parsed
	Response codec.Response
	Parsed   bool
	Err      error
}

func (o Outcome) Reason() Reason { return ReasonOf(o.Err) }

// Success means request was written and collector answered or closed stream.
// Status code does not affect success.
func (o Outcome) Success() bool { return o.Err == nil }

// Rejected means success at transport level with non-2xx status.
func (o Outcome) Rejected() bool { return o.Err == nil && o.Parsed && !o.Response.OK() }

type Engine struct {
	state int32 // atomic State
	busy  int32
	opt   Options
	log   *log2.Log
	addr  cacheval.Addr
	stat  Stat
}

func New(log *log2.Log, opt Options) (*Engine, error) {
	if opt.Host == "" {
		return nil, errors.NotValidf("delivery Host empty")
	}
	if opt.Port <= 0 || opt.Port > 65535 {
		return nil, errors.NotValidf("delivery Port=%d", opt.Port)
	}
	if opt.Limiter == nil {
		return nil, errors.NotValidf("code error delivery Limiter=nil")
	}
	if opt.Resolver == nil {
		opt.Resolver = net.DefaultResolver
	}
	if opt.Dialer == nil {
		opt.Dialer = &net.Dialer{}
	}
	if opt.ResolveTimeout == 0 {
		opt.ResolveTimeout = DefaultPhaseTimeout
	}
	if opt.ConnectTimeout == 0 {
		opt.ConnectTimeout = DefaultPhaseTimeout
	}
	if opt.SendTimeout == 0 {
		opt.SendTimeout = DefaultPhaseTimeout
	}
	if opt.RecvTimeout == 0 {
		opt.RecvTimeout = DefaultPhaseTimeout
	}
	if opt.ReadLimit == 0 {
		opt.ReadLimit = DefaultReadLimit
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.Codec.Host == "" {
		opt.Codec.Host = opt.Host
	}
	e := &Engine{opt: opt, log: log}
	e.addr.Init(opt.ResolveCache, func() int64 { return e.opt.Now().UnixNano() })
	return e, nil
}

func (e *Engine) State() State { return State(atomic.LoadInt32(&e.state)) }
func (e *Engine) Busy() bool   { return atomic.LoadInt32(&e.busy) != 0 }
func (e *Engine) Stat() *Stat  { return &e.stat }

// Deliver runs one attempt for s.
// Returns immediately with ErrBusy, ErrLinkDown or ErrRateLimited when attempt may not start.
// Snapshot is owned by value for whole attempt.
func (e *Engine) Deliver(ctx context.Context, s snapshot.Snapshot) Outcome {
	if !atomic.CompareAndSwapInt32(&e.busy, 0, 1) {
		e.stat.Busy.Add(1)
		return Outcome{Snapshot: s, Err: ErrBusy}
	}
	defer atomic.StoreInt32(&e.busy, 0)

	start := e.opt.Now()
	if e.opt.Link != nil && !e.opt.Link.IsUp() {
		e.stat.addFailure(LinkDown)
		return Outcome{Snapshot: s, Start: start, Err: ErrLinkDown}
	}
	if !e.opt.Limiter.Allow(start) {
		e.stat.RateLimited.Add(1)
		return Outcome{Snapshot: s, Start: start, Err: ErrRateLimited}
	}

	e.stat.Attempts.Add(1)
	o := e.attempt(ctx, s, start)
	o.Duration = e.opt.Now().Sub(start)
	e.setState(Idle)

	if o.Err == nil {
		e.opt.Limiter.Record(start)
		e.stat.Success.Add(1)
		switch {
		case o.Rejected():
			e.stat.Rejected.Add(1)
			e.log.Errorf("delivery rejected status=%s duration=%s", o.Response.Status, o.Duration)
		case o.Parsed:
			e.log.Debugf("delivery success status=%s duration=%s", o.Response.Status, o.Duration)
		default:
			e.log.Debugf("delivery success without response duration=%s", o.Duration)
		}
	} else {
		e.stat.addFailure(o.Reason())
		e.log.Errorf("%v duration=%s", o.Err, o.Duration)
	}
	if e.opt.OnResult != nil {
		e.opt.OnResult(o)
	}
	return o
}

func (e *Engine) attempt(ctx context.Context, s snapshot.Snapshot, start time.Time) Outcome {
	o := Outcome{Snapshot: s, Start: start}

	// bad payload must not touch transport
	payload, err := e.opt.Codec.Request(s)
	if err != nil {
		o.Err = &AttemptError{Reason: SendFailure, Phase: Idle, Err: errors.Annotate(err, "encode")}
		return o
	}

	e.setState(Resolving)
	ip, err := e.resolve(ctx)
	if err != nil {
		o.Err = &AttemptError{Reason: DnsFailure, Phase: Resolving, Err: err}
		return o
	}
	o.Addr = net.JoinHostPort(ip, strconv.Itoa(e.opt.Port))

	e.setState(Connecting)
	conn, err := e.connect(ctx, o.Addr)
	if err != nil {
		e.addr.Invalidate()
		reason := ConnectFailure
		if isLinkError(err) {
			reason = LinkDown
		}
		o.Err = &AttemptError{Reason: reason, Phase: Connecting, Err: err}
		return o
	}
	release := &onceCloser{c: conn}
	defer func() {
		e.setState(Closing)
		if err := release.Close(); err != nil {
			e.log.Debugf("delivery close addr=%s err=%v", o.Addr, err)
		}
	}()
	sc := helpers.NewStatConn(conn, &e.stat.BytesRecv, &e.stat.BytesSent)

	e.setState(Sending)
	if err = e.send(sc, payload); err != nil {
		reason := SendFailure
		if isLinkError(err) {
			reason = LinkDown
		}
		o.Err = &AttemptError{Reason: reason, Phase: Sending, Err: err}
		return o
	}

	e.setState(AwaitingResponse)
	raw, err := e.recv(sc)
	if err != nil {
		reason := RecvFailure
		if isTimeout(err) {
			reason = RecvTimeout
		}
		o.Err = &AttemptError{Reason: reason, Phase: AwaitingResponse, Err: err}
		return o
	}
	if len(raw) > 0 {
		if e.opt.LogResponse {
			e.log.Infof("delivery response addr=%s\n%s", o.Addr, raw)
		}
		if o.Response, err = codec.ParseResponse(raw); err == nil {
			o.Parsed = true
		} else {
			e.log.Debugf("delivery response addr=%s parse err=%v", o.Addr, err)
		}
	}
	return o
}

func (e *Engine) resolve(ctx context.Context) (string, error) {
	if ip := net.ParseIP(e.opt.Host); ip != nil {
		return e.opt.Host, nil
	}
	if addr, ok := e.addr.GetFresh(); ok {
		e.stat.CacheHits.Add(1)
		e.log.Debugf("delivery resolve host=%s cached=%s", e.opt.Host, addr)
		return addr, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.opt.ResolveTimeout)
	defer cancel()
	addrs, err := e.opt.Resolver.LookupHost(ctx, e.opt.Host)
	if err != nil {
		return "", errors.Annotatef(err, "resolve host=%s", e.opt.Host)
	}
	if len(addrs) == 0 {
		return "", errors.NotFoundf("address for host=%s", e.opt.Host)
	}
	addr := addrs[0]
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			addr = a
			break
		}
	}
	e.addr.Set(addr)
	e.log.Debugf("delivery resolve host=%s addr=%s", e.opt.Host, addr)
	return addr, nil
}

func (e *Engine) connect(ctx context.Context, addr string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opt.ConnectTimeout)
	defer cancel()
	conn, err := e.opt.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Annotatef(err, "connect addr=%s", addr)
	}
	return conn, nil
}

func (e *Engine) send(conn net.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(e.opt.SendTimeout)); err != nil {
		return errors.Annotate(err, "set write deadline")
	}
	if err := helpers.WriteAll(conn, payload); err != nil {
		return errors.Annotatef(err, "write len=%d", len(payload))
	}
	e.log.Debugf("delivery sent len=%d", len(payload))
	return nil
}

// recv reads until peer closes stream, read limit, or timeout.
// Timeout or error after some bytes received is not a failure.
func (e *Engine) recv(conn net.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(e.opt.RecvTimeout)); err != nil {
		return nil, errors.Annotate(err, "set read deadline")
	}
	buf := make([]byte, 0, 512)
	chunk := make([]byte, 512)
	for len(buf) < e.opt.ReadLimit {
		n, err := conn.Read(chunk)
		if n > 0 {
			if rest := e.opt.ReadLimit - len(buf); n > rest {
				n = rest
			}
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			if len(buf) > 0 {
				e.log.Debugf("delivery recv stop after len=%d err=%v", len(buf), err)
				return buf, nil
			}
			return nil, err
		}
	}
	return buf, nil
}

func (e *Engine) setState(s State) {
	old := State(atomic.SwapInt32(&e.state, int32(s)))
	if old != s {
		e.log.Debugf("delivery state %s -> %s", old, s)
	}
}

type onceCloser struct {
	once sync.Once
	c    io.Closer
	err  error
}

func (oc *onceCloser) Close() error {
	oc.once.Do(func() { oc.err = oc.c.Close() })
	return oc.err
}

func isTimeout(err error) bool {
	if ne, ok := errors.Cause(err).(net.Error); ok && ne.Timeout() {
		return true
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

// Unreachable network means radio lost association rather than collector issue.
func isLinkError(err error) bool {
	err = errors.Cause(err)
	return stderrors.Is(err, syscall.ENETUNREACH) ||
		stderrors.Is(err, syscall.ENETDOWN) ||
		stderrors.Is(err, syscall.EHOSTUNREACH)
}
