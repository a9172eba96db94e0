package state

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/embarcatech/sensorlink/helpers"
	"github.com/embarcatech/sensorlink/log2"
	"github.com/embarcatech/sensorlink/tele"
	"github.com/embarcatech/sensorlink/tele/link"
	"github.com/embarcatech/sensorlink/tele/metrics"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/temoto/alive/v2"
)

const metricsShutdownTimeout = 3 * time.Second

type Global struct {
	Alive    *alive.Alive
	Config   *Config
	Hardware Hardware
	Log      *log2.Log
	Tele     *tele.Tele
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	// Deps override transport and link layer, Source is taken from Hardware.
	Deps tele.Deps

	metricsAddr net.Addr
}

func NewGlobal(log *log2.Log) *Global {
	if log == nil {
		panic("code error NewGlobal() log=nil")
	}
	return &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(cfg *Config) error {
	g.Config = cfg
	if err := cfg.Validate(); err != nil {
		return errors.Annotate(err, "config")
	}

	if g.Hardware.Source == nil {
		src, err := g.initSource()
		if err != nil {
			return errors.Annotate(err, "hardware")
		}
		g.Hardware.Source = src
	}
	g.Log.Infof("sensor source=%s", g.Hardware.Source.String())

	deps := g.Deps
	deps.Source = g.Hardware.Source
	if deps.Associator == nil {
		deps.Associator = g.associator()
	}
	var err error
	g.Tele, err = tele.New(g.Log, cfg.Tele, deps)
	if err != nil {
		return errors.Annotate(err, "tele init")
	}

	g.Registry = prometheus.NewRegistry()
	g.Metrics, err = metrics.Register(g.Registry, g.Tele)
	if err != nil {
		return errors.Annotate(err, "metrics")
	}
	g.Tele.SetObserver(g.Metrics.Observe)
	return nil
}

func (g *Global) MustInit(cfg *Config) {
	if err := g.Init(cfg); err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

// Start runs pipeline and optional metrics server in background.
func (g *Global) Start() error {
	if listen := g.Config.Metrics.Listen; listen != "" {
		if err := g.serveMetrics(listen); err != nil {
			return err
		}
	}
	go g.Tele.Run(g.Alive)
	return nil
}

// Stop is safe to call many times. Use Alive.Wait() to wait for in-flight work.
func (g *Global) Stop() {
	g.Alive.Stop()
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Errorf(errors.ErrorStack(err))
	}
}

// MetricsAddr returns actual listen address, useful with port 0.
func (g *Global) MetricsAddr() net.Addr { return g.metricsAddr }

func (g *Global) associator() link.Associator {
	lc := &g.Config.Tele.Link
	switch lc.Driver {
	case "iface":
		return &link.Interface{
			Name:     lc.Iface,
			SSID:     lc.SSID,
			Password: lc.Password,
			Command:  lc.ConnectCommand,
		}
	default:
		return &link.Static{}
	}
}

func (g *Global) serveMetrics(listen string) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.Annotatef(err, "metrics listen=%s", listen)
	}
	g.metricsAddr = ln.Addr()
	srv := &http.Server{Handler: metrics.Handler(g.Registry)}
	if !g.Alive.Add(1) {
		ln.Close()
		return errors.Errorf("metrics server start after stop")
	}
	sub := alive.NewAlive()
	go helpers.AliveSub(g.Alive, sub)
	go func() {
		<-sub.StopChan()
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	go func() {
		defer g.Alive.Done()
		g.Log.Infof("metrics listen=%s", g.metricsAddr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.Error(err, "metrics serve")
		}
		sub.Stop()
	}()
	return nil
}
