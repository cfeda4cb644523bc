package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"coinfolio/internal/application/stream"
)

const namespace = "coinfolio"

var allStates = []stream.ConnState{
	stream.StateClosed,
	stream.StateConnecting,
	stream.StateOpen,
	stream.StateReconnecting,
	stream.StateShutDown,
}

// Metrics 私有 registry 上的行情流与 REST 指标
type Metrics struct {
	reg *prometheus.Registry

	streamState     *prometheus.GaugeVec
	subscribers     prometheus.Gauge
	frames          prometheus.Counter
	framesDropped   *prometheus.CounterVec
	recordsAccepted prometheus.Counter
	recordsDropped  *prometheus.CounterVec
	reconnects      prometheus.Counter

	restRequests *prometheus.CounterVec
	restLatency  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		streamState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "state",
			Help: "1 for the current connection state of the ticker stream.",
		}, []string{"state"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "stream", Name: "subscribers",
			Help: "Number of active stream subscribers.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "frames_total",
			Help: "Frames received from the exchange stream.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "frames_dropped_total",
			Help: "Frames dropped before fan-out, by reason.",
		}, []string{"reason"}),
		recordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "records_accepted_total",
			Help: "Ticker records delivered to subscribers.",
		}),
		recordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "records_dropped_total",
			Help: "Ticker records filtered out, by reason.",
		}, []string{"reason"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "reconnects_total",
			Help: "Reconnect attempts scheduled after an unexpected close.",
		}),
		restRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rest", Name: "requests_total",
			Help: "REST requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		restLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "rest", Name: "request_seconds",
			Help:    "REST request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	m.reg.MustRegister(
		m.streamState, m.subscribers, m.frames, m.framesDropped,
		m.recordsAccepted, m.recordsDropped, m.reconnects,
		m.restRequests, m.restLatency,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) StateChanged(s stream.ConnState) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.streamState.WithLabelValues(st.String()).Set(v)
	}
}

func (m *Metrics) SubscribersChanged(n int) { m.subscribers.Set(float64(n)) }
func (m *Metrics) FrameReceived()           { m.frames.Inc() }
func (m *Metrics) FrameDropped(reason string) {
	m.framesDropped.WithLabelValues(reason).Inc()
}
func (m *Metrics) RecordsAccepted(n int) { m.recordsAccepted.Add(float64(n)) }
func (m *Metrics) RecordsDropped(reason string, n int) {
	m.recordsDropped.WithLabelValues(reason).Add(float64(n))
}
func (m *Metrics) ReconnectScheduled() { m.reconnects.Inc() }

// ObserveREST 作为 binance.RestOptions.Observe 使用
func (m *Metrics) ObserveREST(endpoint string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.restRequests.WithLabelValues(endpoint, outcome).Inc()
	m.restLatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

// Serve 在 addr 上暴露 /metrics，ctx 结束时关闭
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ stream.Observer = (*Metrics)(nil)
