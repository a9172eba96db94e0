// Package metrics exposes pipeline counters to Prometheus.
// Counters are read from component stats at scrape time.
package metrics

import (
	"net/http"

	"github.com/embarcatech/sensorlink/tele"
	"github.com/embarcatech/sensorlink/tele/delivery"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorlink"

type Metrics struct {
	latency *prometheus.HistogramVec
}

func Register(reg prometheus.Registerer, t *tele.Tele) (*Metrics, error) {
	st := t.Stat()
	counter := func(subsystem, name, help string, f func() float64, labels prometheus.Labels) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: labels,
		}, f)
	}
	gauge := func(subsystem, name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, f)
	}

	cs := []prometheus.Collector{
		counter("sampler", "ticks_total", "Sensor source reads.", func() float64 { return float64(st.Sampler.Ticks.Value()) }, nil),
		counter("sampler", "changes_total", "Accepted input changes.", func() float64 { return float64(st.Sampler.Changes.Value()) }, nil),
		counter("sampler", "dropped_total", "Changes dropped on full queue.", func() float64 { return float64(st.Sampler.Dropped.Value()) }, nil),
		counter("sampler", "read_errors_total", "Failed sensor reads.", func() float64 { return float64(st.Sampler.ReadErrors.Value()) }, nil),
		gauge("queue", "length", "Snapshots waiting in event queue.", func() float64 { return float64(t.Queue.Len()) }),
		counter("queue", "superseded_total", "Pending snapshots replaced by newer ones.", func() float64 { return float64(t.Stat().Superseded) }, nil),
		counter("delivery", "attempts_total", "Started delivery attempts.", func() float64 { return float64(st.Delivery.Attempts.Value()) }, nil),
		counter("delivery", "success_total", "Delivered reports.", func() float64 { return float64(st.Delivery.Success.Value()) }, nil),
		counter("delivery", "rejected_total", "Delivered reports answered with non-2xx status.", func() float64 { return float64(st.Delivery.Rejected.Value()) }, nil),
		counter("delivery", "busy_total", "Deliver calls rejected while attempt in flight.", func() float64 { return float64(st.Delivery.Busy.Value()) }, nil),
		counter("delivery", "sent_bytes_total", "Bytes written to collector.", func() float64 { return float64(st.Delivery.BytesSent.Value()) }, nil),
		counter("delivery", "received_bytes_total", "Bytes read from collector.", func() float64 { return float64(st.Delivery.BytesRecv.Value()) }, nil),
		gauge("delivery", "state", "Delivery engine state, 0=idle.", func() float64 { return float64(t.Engine.State()) }),
		gauge("link", "up", "1 when link is up.", func() float64 {
			if t.Link.IsUp() {
				return 1
			}
			return 0
		}),
		counter("link", "attempts_total", "Link association attempts.", func() float64 { return float64(st.Link.Attempts.Value()) }, nil),
		counter("link", "drops_total", "Link up to down transitions.", func() float64 { return float64(st.Link.Drops.Value()) }, nil),
	}
	for _, r := range delivery.Reasons() {
		r := r
		f := func() float64 { return float64(st.Delivery.Failure(r)) }
		if r == delivery.QueueFull {
			// absorbed by sampler, never reaches delivery engine
			f = func() float64 { return float64(st.Sampler.Dropped.Value()) }
		}
		cs = append(cs, counter("delivery", "failures_total", "Failed reports by reason.",
			f, prometheus.Labels{"reason": r.String()}))
	}

	m := &Metrics{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "duration_seconds",
			Help:      "Delivery attempt duration from start to close.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"result"}),
	}
	cs = append(cs, m.latency)
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, errors.Annotate(err, "metrics register")
		}
	}
	return m, nil
}

// Observe records finished attempt, use as tele observer.
func (m *Metrics) Observe(o delivery.Outcome) {
	if o.Start.IsZero() || o.Duration == 0 {
		// rejected before start
		return
	}
	result := "success"
	if o.Err != nil {
		result = delivery.ReasonOf(o.Err).String()
	}
	m.latency.WithLabelValues(result).Observe(o.Duration.Seconds())
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
