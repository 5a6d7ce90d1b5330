// Package metrics exports engine, queue and tracker statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleettrack/internal/gps"
	"fleettrack/internal/tracker"
)

type EngineSource interface {
	Counters() gps.Counters
}

type QueueSource interface {
	Len() int
	Dropped() uint64
}

type TrackerSource interface {
	Stats() tracker.Stats
}

const namespace = "fleettrack"

// Collector reads its sources on every scrape. Nil sources are skipped.
type Collector struct {
	engine  EngineSource
	queue   QueueSource
	tracker TrackerSource

	samples       *prometheus.Desc
	restarts      *prometheus.Desc
	lastValid     *prometheus.Desc
	queued        *prometheus.Desc
	dropped       *prometheus.Desc
	fixes         *prometheus.Desc
	odometer      *prometheus.Desc
	inMotion      *prometheus.Desc
	dormantEvents *prometheus.Desc
}

func NewCollector(engine EngineSource, queue QueueSource, tr TrackerSource) *Collector {
	return &Collector{
		engine:  engine,
		queue:   queue,
		tracker: tr,

		samples: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "gps", "samples_total"),
			"Sentences and submitted fixes seen by the acquisition engine.",
			[]string{"result"}, nil),
		restarts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "gps", "restarts_total"),
			"Device restarts triggered by the watchdog.",
			nil, nil),
		lastValid: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "gps", "last_valid_timestamp_seconds"),
			"Unix time of the last valid sample.",
			nil, nil),
		queued: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "queued"),
			"Events waiting in the priority queue.",
			nil, nil),
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "events", "dropped_total"),
			"Events dropped because the queue was full.",
			nil, nil),
		fixes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "tracker", "fixes_total"),
			"Accepted fixes handled by the tracker.",
			[]string{"result"}, nil),
		odometer: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "tracker", "odometer_meters"),
			"Accumulated odometer distance.",
			nil, nil),
		inMotion: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "tracker", "in_motion"),
			"1 while the vehicle is in motion.",
			nil, nil),
		dormantEvents: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "tracker", "dormant_events"),
			"Dormant events emitted in the current stop.",
			nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.samples
	ch <- c.restarts
	ch <- c.lastValid
	ch <- c.queued
	ch <- c.dropped
	ch <- c.fixes
	ch <- c.odometer
	ch <- c.inMotion
	ch <- c.dormantEvents
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.engine != nil {
		n := c.engine.Counters()
		ch <- prometheus.MustNewConstMetric(c.samples, prometheus.CounterValue, float64(n.Valid), "valid")
		ch <- prometheus.MustNewConstMetric(c.samples, prometheus.CounterValue, float64(n.Invalid), "invalid")
		ch <- prometheus.MustNewConstMetric(c.restarts, prometheus.CounterValue, float64(n.Restarts))
		last := 0.0
		if !n.LastValid.IsZero() {
			last = float64(n.LastValid.Unix())
		}
		ch <- prometheus.MustNewConstMetric(c.lastValid, prometheus.GaugeValue, last)
	}
	if c.queue != nil {
		ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(c.queue.Len()))
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.queue.Dropped()))
	}
	if c.tracker != nil {
		s := c.tracker.Stats()
		ch <- prometheus.MustNewConstMetric(c.fixes, prometheus.CounterValue, float64(s.Processed), "processed")
		ch <- prometheus.MustNewConstMetric(c.fixes, prometheus.CounterValue, float64(s.Gated), "gated")
		ch <- prometheus.MustNewConstMetric(c.odometer, prometheus.GaugeValue, s.Odometer.Meters)
		moving := 0.0
		if s.Motion.InMotion {
			moving = 1
		}
		ch <- prometheus.MustNewConstMetric(c.inMotion, prometheus.GaugeValue, moving)
		ch <- prometheus.MustNewConstMetric(c.dormantEvents, prometheus.GaugeValue, float64(s.Motion.DormantCount))
	}
}

// Handler serves c plus the Go runtime collectors on a private registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
