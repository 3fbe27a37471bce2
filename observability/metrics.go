// Package observability содержит метрики Prometheus для синхронизации коллекций и дашборда
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics набор метрик сервиса. Методы безопасны для nil-получателя,
// поэтому компоненты работают и без метрик
type Metrics struct {
	registry *prometheus.Registry

	syncFetchesTotal  *prometheus.CounterVec
	syncFetchDuration *prometheus.HistogramVec
	syncEventsTotal   *prometheus.CounterVec
	syncWritesTotal   *prometheus.CounterVec
	syncSubscriptions *prometheus.GaugeVec

	dashboardComputeTotal    *prometheus.CounterVec
	dashboardComputeDuration *prometheus.HistogramVec

	notificationsTotal *prometheus.CounterVec
}

// NewMetrics создает метрики в собственном реестре
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}
	m.initMetrics()

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.syncFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_sync_fetches_total",
			Help: "Total number of full collection reloads",
		},
		[]string{"collection", "status"}, // status: success, error, stale
	)
	m.syncFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldops_sync_fetch_duration_seconds",
			Help:    "Time taken to reload a collection",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)
	m.syncEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_sync_events_total",
			Help: "Total number of change notifications received",
		},
		[]string{"collection", "kind"},
	)
	m.syncWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_sync_writes_total",
			Help: "Total number of collection writes",
		},
		[]string{"collection", "operation", "status"},
	)
	m.syncSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldops_sync_active_subscriptions",
			Help: "Number of open change subscriptions",
		},
		[]string{"collection"},
	)
	m.dashboardComputeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_dashboard_computations_total",
			Help: "Total number of dashboard statistic computations",
		},
		[]string{"scope", "status"}, // scope: admin, engineer; status: success, error, cached
	)
	m.dashboardComputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldops_dashboard_compute_duration_seconds",
			Help:    "Time taken to compute dashboard statistics",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)
	m.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldops_notifications_total",
			Help: "Total number of outgoing notifications",
		},
		[]string{"kind", "status"},
	)
}

func (m *Metrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.syncFetchesTotal,
		m.syncFetchDuration,
		m.syncEventsTotal,
		m.syncWritesTotal,
		m.syncSubscriptions,
		m.dashboardComputeTotal,
		m.dashboardComputeDuration,
		m.notificationsTotal,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// Registry возвращает реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP-обработчик для /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFetch учитывает перезагрузку коллекции
func (m *Metrics) RecordFetch(collection, status string, seconds float64) {
	if m == nil {
		return
	}
	m.syncFetchesTotal.WithLabelValues(collection, status).Inc()
	m.syncFetchDuration.WithLabelValues(collection).Observe(seconds)
}

// RecordEvent учитывает полученное уведомление
func (m *Metrics) RecordEvent(collection, kind string) {
	if m == nil {
		return
	}
	m.syncEventsTotal.WithLabelValues(collection, kind).Inc()
}

// RecordWrite учитывает запись в коллекцию
func (m *Metrics) RecordWrite(collection, operation, status string) {
	if m == nil {
		return
	}
	m.syncWritesTotal.WithLabelValues(collection, operation, status).Inc()
}

// SubscriptionOpened увеличивает число открытых подписок
func (m *Metrics) SubscriptionOpened(collection string) {
	if m == nil {
		return
	}
	m.syncSubscriptions.WithLabelValues(collection).Inc()
}

// SubscriptionClosed уменьшает число открытых подписок
func (m *Metrics) SubscriptionClosed(collection string) {
	if m == nil {
		return
	}
	m.syncSubscriptions.WithLabelValues(collection).Dec()
}

// RecordDashboard учитывает расчет статистики дашборда
func (m *Metrics) RecordDashboard(scope, status string, seconds float64) {
	if m == nil {
		return
	}
	m.dashboardComputeTotal.WithLabelValues(scope, status).Inc()
	m.dashboardComputeDuration.WithLabelValues(scope).Observe(seconds)
}

// RecordNotification учитывает исходящее уведомление
func (m *Metrics) RecordNotification(kind, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}
