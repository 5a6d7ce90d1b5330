package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"fleettrack/internal/config"
	"fleettrack/internal/event"
	"fleettrack/internal/gps"
	"fleettrack/internal/metrics"
	"fleettrack/internal/props"
	"fleettrack/internal/tracker"
	"fleettrack/internal/web"
)

// runtime wires the engine, tracker, event queue and the HTTP endpoints.
type runtime struct {
	cfg config.Config

	store   *props.File
	engine  *gps.Engine
	queue   *event.MemoryQueue
	sink    event.Sink
	fwd     *event.Forwarder
	tracker *tracker.Tracker

	logs   *web.LogBuffer
	status *web.Status

	httpSrv *http.Server
	httpLn  net.Listener

	closeSink func()
}

// newSinkFn is swapped out by tests.
var newSinkFn = newSink

func newSink(cfg config.Config) (event.Sink, func(), error) {
	switch cfg.Events.Sink {
	case "udp":
		s, err := event.NewUDPSink(cfg.UDP.Dest, cfg.DeviceID)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "mqtt":
	default:
		return event.LogSink{}, func() {}, nil
	}
	s, err := event.NewMQTTSink(event.MQTTConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Topic:    cfg.MQTT.Topic,
		QoS:      byte(cfg.MQTT.QoS),
		Retained: cfg.MQTT.Retained,
		DeviceID: cfg.DeviceID,
		Timeout:  cfg.MQTT.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// newRuntime builds every component and starts the engine. logs backs
// /api/logs; nil gets an empty buffer.
func newRuntime(ctx context.Context, cfg config.Config, logs *web.LogBuffer) (*runtime, error) {
	if logs == nil {
		logs = web.NewLogBuffer(cfg.HTTP.LogLines)
	}

	store, err := props.Open(cfg.Props.Path)
	if err != nil {
		return nil, fmt.Errorf("props open: %w", err)
	}
	seeded := 0
	for k, v := range cfg.Props.Defaults {
		if !store.Has(k) {
			store.SetString(k, v)
			seeded++
		}
	}
	if seeded > 0 {
		if err := store.Save(); err != nil {
			return nil, fmt.Errorf("props save: %w", err)
		}
	}
	log.Printf("props loaded path=%s seeded=%d", store.Path(), seeded)

	sink, closeSink, err := newSinkFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("event sink: %w", err)
	}

	queue := event.NewMemoryQueue(cfg.Events.QueueSize)
	engine := gps.New(gps.Config{
		Enable:           cfg.GPS.Enable,
		Source:           cfg.GPS.Source,
		Device:           cfg.GPS.Device,
		Baud:             cfg.GPS.Baud,
		Addr:             cfg.GPS.Addr,
		Provider:         cfg.GPS.Provider,
		ReadTimeout:      cfg.GPS.ReadTimeout,
		WatchdogTimeout:  cfg.GPS.WatchdogTimeout,
		WatchdogInterval: cfg.GPS.WatchdogInterval,
		ErrorDelay:       cfg.GPS.ErrorDelay,
		OpenDelay:        cfg.GPS.OpenDelay,
		RestartDelay:     cfg.GPS.RestartDelay,
		Sim:              cfg.GPS.Sim,
		SimRoute:         cfg.GPS.SimRoute,
		ReplayPath:       cfg.GPS.Replay.Path,
		ReplaySpeed:      cfg.GPS.Replay.Speed,
		RecordPath:       cfg.GPS.Record,
	})

	tr, err := tracker.New(tracker.Config{
		PollInterval:     cfg.Tracker.PollInterval,
		LocationInterval: cfg.Tracker.LocationInterval,
		ElapsedLimit:     cfg.Tracker.ElapsedLimit,
	}, engine, store, queue)
	if err != nil {
		closeSink()
		return nil, err
	}

	r := &runtime{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		queue:   queue,
		sink:    sink,
		tracker: tr,
		fwd: &event.Forwarder{
			Queue:          queue,
			Sink:           sink,
			BackoffInitial: cfg.Events.BackoffInitial,
			BackoffMax:     cfg.Events.BackoffMax,
		},
		closeSink: closeSink,
		logs:      logs,
	}
	r.status = web.NewStatus(cfg.DeviceID)
	r.status.GPS = engine
	r.status.Tracker = tr
	r.status.Queue = queue

	if cfg.HTTP.Addr != "" {
		ln, err := net.Listen("tcp", cfg.HTTP.Addr)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("http listen %s: %w", cfg.HTTP.Addr, err)
		}
		r.httpLn = ln
		r.httpSrv = web.NewServer(web.Handler(web.Options{
			Status:  r.status,
			Logs:    logs,
			Props:   store,
			Metrics: metrics.Handler(metrics.NewCollector(engine, queue, tr)),
		}))
		log.Printf("http listening addr=%s", ln.Addr())
	}

	if err := engine.Start(ctx); err != nil {
		// Keep running without a receiver; SubmitFix sources still work.
		log.Printf("gps init failed: %v", err)
	}
	return r, nil
}

// Run blocks until ctx ends or a component fails.
func (r *runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errc := make(chan error, 3)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := r.tracker.Run(ctx); err != nil {
			errc <- fmt.Errorf("tracker: %w", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := r.fwd.Run(ctx); err != nil {
			errc <- fmt.Errorf("forwarder: %w", err)
			cancel()
		}
	}()
	if r.httpSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.httpSrv.Serve(r.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("http: %w", err)
				cancel()
			}
		}()
	}

	status := time.NewTicker(time.Minute)
	defer status.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-status.C:
			r.logStatus()
		}
	}

	if r.httpSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		_ = r.httpSrv.Shutdown(shutdownCtx)
		done()
	}
	wg.Wait()
	close(errc)
	return <-errc
}

func (r *runtime) logStatus() {
	snap := r.engine.Snapshot()
	st := r.tracker.Stats()
	log.Printf("status gps_state=%s valid=%v sats=%d samples=%s/%s odometer=%s in_motion=%v queued=%d dropped=%d",
		snap.State, snap.Valid, snap.Satellites,
		humanize.Comma(int64(snap.Counters.Valid)), humanize.Comma(int64(snap.Counters.Invalid)),
		humanizeMeters(st.Odometer.Meters), st.Motion.InMotion, r.queue.Len(), r.queue.Dropped())
}

func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.engine != nil {
		r.engine.Close()
		r.engine = nil
	}
	if r.httpLn != nil {
		_ = r.httpLn.Close()
		r.httpLn = nil
	}
	if r.store != nil {
		if err := r.store.Save(); err != nil {
			log.Printf("props save failed: %v", err)
		}
	}
	if r.closeSink != nil {
		r.closeSink()
		r.closeSink = nil
	}
}

func humanizeMeters(m float64) string {
	if m >= 1000 {
		return humanize.CommafWithDigits(m/1000, 1) + " km"
	}
	return humanize.CommafWithDigits(m, 0) + " m"
}
