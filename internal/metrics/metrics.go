// Package metrics exposes livestore counters to prometheus.
//
// Every method is safe on a nil *Metrics, so components take an optional
// *Metrics and never check it.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "livestore"

const (
	MetricScopes       = "scopes_total"
	MetricTransactions = "transactions_total"
	MetricAsyncJobs    = "async_jobs_total"
	MetricEmissions    = "emissions_total"
	MetricBindings     = "bindings"
	MetricEvictions    = "cache_evictions_total"
)

// Metrics holds the livestore collectors.
type Metrics struct {
	scopes       *prometheus.CounterVec
	transactions *prometheus.CounterVec
	asyncJobs    *prometheus.CounterVec
	emissions    *prometheus.CounterVec
	bindings     prometheus.Gauge
	evictions    *prometheus.CounterVec
}

// New builds the collectors and registers them on reg. A collector that
// is already registered (a second DB on the same registry) is reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		scopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricScopes,
			Help:      "Scopes opened, by kind.",
		}, []string{"kind"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricTransactions,
			Help:      "Scope transactions, by outcome.",
		}, []string{"outcome"}),
		asyncJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricAsyncJobs,
			Help:      "Async handles settled, by outcome.",
		}, []string{"outcome"}),
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricEmissions,
			Help:      "Observable snapshots emitted or suppressed by their diff policy.",
		}, []string{"outcome"}),
		bindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricBindings,
			Help:      "Live bindings held by the binding loop.",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricEvictions,
			Help:      "Cache pool entries evicted by capacity, by pool.",
		}, []string{"pool"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	m.scopes, err = register(reg, m.scopes)
	if err != nil {
		return nil, err
	}
	m.transactions, err = register(reg, m.transactions)
	if err != nil {
		return nil, err
	}
	m.asyncJobs, err = register(reg, m.asyncJobs)
	if err != nil {
		return nil, err
	}
	m.emissions, err = register(reg, m.emissions)
	if err != nil {
		return nil, err
	}
	m.bindings, err = register(reg, m.bindings)
	if err != nil {
		return nil, err
	}
	m.evictions, err = register(reg, m.evictions)
	if err != nil {
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
		return c, err
	}
	return c, nil
}

// ScopeOpened counts a scope of the given kind (read, write, readwrite).
func (m *Metrics) ScopeOpened(kind string) {
	if m == nil {
		return
	}
	m.scopes.WithLabelValues(kind).Inc()
}

// Transaction counts a transaction that was committed or canceled.
func (m *Metrics) Transaction(outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

// AsyncJob counts a settled async handle.
func (m *Metrics) AsyncJob(outcome string) {
	if m == nil {
		return
	}
	m.asyncJobs.WithLabelValues(outcome).Inc()
}

// Emission counts a snapshot that reached subscribers, or one that the
// diff policy held back.
func (m *Metrics) Emission(emitted bool) {
	if m == nil {
		return
	}
	outcome := "suppressed"
	if emitted {
		outcome = "emitted"
	}
	m.emissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BindingAdded() {
	if m == nil {
		return
	}
	m.bindings.Inc()
}

func (m *Metrics) BindingRemoved() {
	if m == nil {
		return
	}
	m.bindings.Dec()
}

// Evicted counts a cache pool eviction.
func (m *Metrics) Evicted(pool string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(pool).Inc()
}
