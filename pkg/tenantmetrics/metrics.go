// Package tenantmetrics tracks tenant-resolution outcomes. Prometheus
// counters feed dashboards; a short in-memory rolling window backs the
// on-demand summary and the resolution health check.
package tenantmetrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rheckart/rescue-ranger/pkg/tenant"
)

// DefaultWindow is the rolling-window length for summaries.
const DefaultWindow = 5 * time.Minute

// Health thresholds for the resolution pipeline.
const (
	minSuccessRate = 95.0
	maxAvgDuration = 100 * time.Millisecond
)

type sample struct {
	at       time.Time
	method   tenant.Method
	success  bool
	duration time.Duration
}

// Summary is a point-in-time view over the rolling window.
type Summary struct {
	Total       int                   `json:"total"`
	SuccessRate float64               `json:"success_rate"`
	AvgDuration time.Duration         `json:"avg_duration"`
	MinDuration time.Duration         `json:"min_duration"`
	MaxDuration time.Duration         `json:"max_duration"`
	PerMethod   map[tenant.Method]int `json:"per_method"`
}

// Recorder implements tenant.MetricsRecorder.
type Recorder struct {
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge

	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	samples []sample

	stopOnce sync.Once
	stop     chan struct{}
}

type Option func(*Recorder)

// WithWindow overrides the rolling-window length.
func WithWindow(d time.Duration) Option {
	return func(r *Recorder) { r.window = d }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder registers the prometheus collectors and starts the
// window purge ticker. Call Close on shutdown.
func NewRecorder(reg prometheus.Registerer, opts ...Option) *Recorder {
	factory := promauto.With(reg)
	r := &Recorder{
		success: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_resolution_success_total",
			Help: "Successful tenant resolutions by method.",
		}, []string{"method"}),
		failure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_resolution_failure_total",
			Help: "Failed tenant resolutions by method and reason.",
		}, []string{"method", "reason"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenant_resolution_duration_seconds",
			Help:    "Tenant resolution latency by method.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tenant_active_total",
			Help: "Number of active tenants.",
		}),
		window: DefaultWindow,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.purgeLoop()
	return r
}

// RecordResolution records one resolution outcome.
func (r *Recorder) RecordResolution(method tenant.Method, success bool, reason string, duration time.Duration) {
	if success {
		r.success.WithLabelValues(string(method)).Inc()
	} else {
		r.failure.WithLabelValues(string(method), reason).Inc()
	}
	r.duration.WithLabelValues(string(method)).Observe(duration.Seconds())

	r.mu.Lock()
	r.samples = append(r.samples, sample{
		at:       r.now(),
		method:   method,
		success:  success,
		duration: duration,
	})
	r.mu.Unlock()
}

// SetActiveTenants updates the active-tenant gauge.
func (r *Recorder) SetActiveTenants(n int) {
	r.active.Set(float64(n))
}

// RefreshActiveTenants polls count and keeps the active-tenant gauge
// current. It updates once immediately, then on every interval tick,
// and blocks until the context is cancelled or the recorder is closed.
// Run it in its own goroutine.
func (r *Recorder) RefreshActiveTenants(ctx context.Context, interval time.Duration, count func(context.Context) (int, error)) {
	if interval <= 0 {
		interval = time.Minute
	}

	refresh := func() {
		n, err := count(ctx)
		if err != nil {
			return
		}
		r.SetActiveTenants(n)
	}
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		}
	}
}

// Summary aggregates the current rolling window.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked()

	s := Summary{PerMethod: make(map[tenant.Method]int)}
	if len(r.samples) == 0 {
		return s
	}

	var total time.Duration
	s.MinDuration = r.samples[0].duration
	successes := 0
	for _, smp := range r.samples {
		s.Total++
		s.PerMethod[smp.method]++
		if smp.success {
			successes++
		}
		total += smp.duration
		if smp.duration < s.MinDuration {
			s.MinDuration = smp.duration
		}
		if smp.duration > s.MaxDuration {
			s.MaxDuration = smp.duration
		}
	}
	s.SuccessRate = float64(successes) / float64(s.Total) * 100
	s.AvgDuration = total / time.Duration(s.Total)
	return s
}

// Healthcheck degrades when the window's success rate drops below 95%
// or the average resolution takes longer than 100ms. An empty window
// is healthy.
func (r *Recorder) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		s := r.Summary()
		if s.Total == 0 {
			return nil
		}
		if s.SuccessRate < minSuccessRate {
			return fmt.Errorf("tenant resolution success rate %.1f%% below %.0f%%", s.SuccessRate, minSuccessRate)
		}
		if s.AvgDuration > maxAvgDuration {
			return fmt.Errorf("tenant resolution average duration %s above %s", s.AvgDuration, maxAvgDuration)
		}
		return nil
	}
}

// Close stops the purge ticker.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Recorder) purgeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			r.purgeLocked()
			r.mu.Unlock()
		case <-r.stop:
			return
		}
	}
}

// purgeLocked drops samples older than the window. Callers hold r.mu.
func (r *Recorder) purgeLocked() {
	cutoff := r.now().Add(-r.window)
	i := 0
	for ; i < len(r.samples); i++ {
		if r.samples[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		r.samples = append(r.samples[:0], r.samples[i:]...)
	}
}
