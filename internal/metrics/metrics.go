// Package metrics exports bot activity to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adminbot"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	dispatchOutcomes *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	passThrough      prometheus.Counter
	supportQueries   *prometheus.CounterVec
	supportSends     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	updates          *prometheus.CounterVec
	rateLimited      prometheus.Counter
	duplicates       prometheus.Counter
	senderJobs       *prometheus.CounterVec
}

// New registers the collectors with reg (the default registerer when nil).
// Collectors already registered by an earlier call are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		dispatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Handled pending intents by target and outcome.",
		}, []string{"target", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "handler_duration_seconds",
			Help:      "Time spent in intent handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		passThrough: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "pass_through_total",
			Help:      "Text events with no matching pending intent.",
		}),
		supportQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "support",
			Name:      "queries_total",
			Help:      "Support query lifecycle events.",
		}, []string{"event"}),
		supportSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "support",
			Name:      "fanout_sends_total",
			Help:      "Per-admin fan-out sends by result.",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "TTL cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Inbound updates by kind.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "duplicate_updates_total",
			Help:      "Updates skipped because their id was already processed.",
		}),
		senderJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "sender_jobs_total",
			Help:      "Outbound jobs finished by the async sender.",
		}, []string{"action", "status"}),
	}

	var err error
	m.dispatchOutcomes, err = register(reg, m.dispatchOutcomes)
	if err != nil {
		return nil, err
	}
	if m.dispatchDuration, err = register(reg, m.dispatchDuration); err != nil {
		return nil, err
	}
	if m.passThrough, err = register(reg, m.passThrough); err != nil {
		return nil, err
	}
	if m.supportQueries, err = register(reg, m.supportQueries); err != nil {
		return nil, err
	}
	if m.supportSends, err = register(reg, m.supportSends); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = register(reg, m.cacheLookups); err != nil {
		return nil, err
	}
	if m.updates, err = register(reg, m.updates); err != nil {
		return nil, err
	}
	if m.rateLimited, err = register(reg, m.rateLimited); err != nil {
		return nil, err
	}
	if m.duplicates, err = register(reg, m.duplicates); err != nil {
		return nil, err
	}
	if m.senderJobs, err = register(reg, m.senderJobs); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// DispatchOutcome counts one handled intent.
func (m *Metrics) DispatchOutcome(target, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.dispatchOutcomes.WithLabelValues(target, outcome).Inc()
	m.dispatchDuration.WithLabelValues(target).Observe(took.Seconds())
}

// DispatchPassThrough counts a text event no intent claimed.
func (m *Metrics) DispatchPassThrough() {
	if m == nil {
		return
	}
	m.passThrough.Inc()
}

// SupportQuery counts a relay event: submitted, rejected, undelivered, resolved.
func (m *Metrics) SupportQuery(event string) {
	if m == nil {
		return
	}
	m.supportQueries.WithLabelValues(event).Inc()
}

// SupportSend counts one fan-out send.
func (m *Metrics) SupportSend(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.supportSends.WithLabelValues(result).Inc()
}

// CacheObserver returns a hit/miss callback for the named cache.
func (m *Metrics) CacheObserver(name string) func(hit bool) {
	if m == nil {
		return nil
	}
	return func(hit bool) {
		result := "miss"
		if hit {
			result = "hit"
		}
		m.cacheLookups.WithLabelValues(name, result).Inc()
	}
}

// Update counts an inbound update.
func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// RateLimited counts a dropped update.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// Duplicate counts a skipped duplicate update.
func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// SenderResult counts a finished outbound job.
func (m *Metrics) SenderResult(action string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "fail"
	}
	m.senderJobs.WithLabelValues(action, status).Inc()
}
