package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fieldops_backend/backend"
	"fieldops_backend/models"
	"fieldops_backend/observability"

	"github.com/shopspring/decimal"
)

// Области расчета статистики
const (
	ScopeAdmin    = "admin"
	ScopeEngineer = "engineer"
)

// CachePrefix префикс ключей кэша статистики
const CachePrefix = "dashboard:"

// AggregationError ошибка чтения при расчете статистики
type AggregationError struct {
	Scope string
	Step  string
	Err   error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("статистика %s: %s: %v", e.Scope, e.Step, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// StatsCache кэш готовой статистики
type StatsCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) bool
	SetJSON(ctx context.Context, key string, value interface{})
}

// Aggregator считает статистику дашборда по данным бэкенда
type Aggregator struct {
	querier  backend.Querier
	now      func() time.Time
	location *time.Location
	logger   *log.Logger
	metrics  *observability.Metrics
	cache    StatsCache
}

// Option настройка Aggregator
type Option func(*Aggregator)

// WithClock задает источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLocation задает часовой пояс окон дат
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) { a.location = loc }
}

// WithLogger задает логгер
func WithLogger(logger *log.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithMetrics задает метрики
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithCache включает кэширование результатов
func WithCache(cache StatsCache) Option {
	return func(a *Aggregator) { a.cache = cache }
}

// NewAggregator создает новый экземпляр Aggregator
func NewAggregator(q backend.Querier, opts ...Option) *Aggregator {
	a := &Aggregator{
		querier:  q,
		now:      time.Now,
		location: time.UTC,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ComputeStats считает статистику администратора. При любой ошибке чтения
// возвращает нулевую статистику
func (a *Aggregator) ComputeStats(ctx context.Context, filter Filter) Stats {
	return a.computeOrEmpty(ctx, ScopeAdmin, filter)
}

// ComputeEngineerStats считает статистику по собственным отчетам и инцидентам инженера
func (a *Aggregator) ComputeEngineerStats(ctx context.Context, engineerID string, filter Filter) Stats {
	filter.EngineerID = engineerID
	return a.computeOrEmpty(ctx, ScopeEngineer, filter)
}

// Compute считает статистику и возвращает ошибку вместо нулевого результата
func (a *Aggregator) Compute(ctx context.Context, scope string, filter Filter) (Stats, error) {
	start := time.Now()
	window, err := ResolveWindow(filter.TimeFrame, filter.DateRange, a.now(), a.location)
	if err != nil {
		return EmptyStats(), &AggregationError{Scope: scope, Step: "window", Err: err}
	}

	key := a.cacheKey(scope, filter, window)
	if a.cache != nil {
		var cached Stats
		if a.cache.GetJSON(ctx, key, &cached) {
			a.metrics.RecordDashboard(scope, "cached", time.Since(start).Seconds())
			return cached, nil
		}
	}

	stats, err := a.compute(ctx, scope, filter, window)
	if err != nil {
		a.metrics.RecordDashboard(scope, "error", time.Since(start).Seconds())
		return EmptyStats(), err
	}

	a.metrics.RecordDashboard(scope, "success", time.Since(start).Seconds())
	if a.cache != nil {
		a.cache.SetJSON(ctx, key, stats)
	}
	return stats, nil
}

func (a *Aggregator) computeOrEmpty(ctx context.Context, scope string, filter Filter) Stats {
	stats, err := a.Compute(ctx, scope, filter)
	if err != nil {
		a.logger.Printf("❌ Ошибка расчета статистики дашборда: %v", err)
		return EmptyStats()
	}
	return stats
}

func (a *Aggregator) compute(ctx context.Context, scope string, filter Filter, window Window) (Stats, error) {
	fail := func(step string, err error) (Stats, error) {
		return EmptyStats(), &AggregationError{Scope: scope, Step: step, Err: err}
	}

	activity := activityPredicates(filter, window)
	registry := regionPredicates(filter)

	var reports []models.Report
	if err := a.read(ctx, backend.Query{
		Collection: models.CollectionReports,
		Where:      activity,
		OrderBy:    "date",
		Descending: true,
	}, &reports); err != nil {
		return fail("reports", err)
	}

	var incidents []models.Incident
	if err := a.read(ctx, backend.Query{
		Collection: models.CollectionIncidents,
		Where:      activity,
		OrderBy:    "date",
		Descending: true,
	}, &incidents); err != nil {
		return fail("incidents", err)
	}

	var workers []models.Worker
	if err := a.read(ctx, backend.Query{Collection: models.CollectionWorkers, Where: registry}, &workers); err != nil {
		return fail("workers", err)
	}

	var equipment []models.Equipment
	if err := a.read(ctx, backend.Query{Collection: models.CollectionEquipment, Where: registry}, &equipment); err != nil {
		return fail("equipment", err)
	}

	fuelByType, err := a.fuelByType(ctx, reports)
	if err != nil {
		return fail("fuel", err)
	}

	stats := EmptyStats()
	stats.Window = window
	stats.WorkerCount = len(workers)
	stats.EquipmentCount = len(equipment)
	stats.OperatorCount = countOperators(equipment)
	stats.ReportCount = len(reports)
	stats.IncidentCount = len(incidents)
	stats.FuelByType = fuelByType
	stats.IncidentsByType = incidentsByType(incidents)

	totalFuel, totalSalary := decimal.Zero, decimal.Zero
	for _, r := range reports {
		totalFuel = totalFuel.Add(decimal.NewFromFloat(r.TotalFuel))
		totalSalary = totalSalary.Add(decimal.NewFromFloat(r.TotalWorkerSalary))
	}
	stats.TotalFuel = totalFuel.InexactFloat64()
	stats.TotalWorkerSalary = totalSalary.InexactFloat64()

	stats.RecentReports = append(stats.RecentReports, reports[:min(RecentLimit, len(reports))]...)
	stats.RecentIncidents = append(stats.RecentIncidents, incidents[:min(RecentLimit, len(incidents))]...)
	return stats, nil
}

// fuelByType раскладывает расход топлива по строкам техники отчетов на типы топлива.
// Техника без известного типа попадает в "Unknown"
func (a *Aggregator) fuelByType(ctx context.Context, reports []models.Report) ([]FuelBucket, error) {
	if len(reports) == 0 {
		return []FuelBucket{}, nil
	}

	reportIDs := make([]string, 0, len(reports))
	for _, r := range reports {
		reportIDs = append(reportIDs, r.ID)
	}

	var usage []models.ReportEquipment
	if err := a.read(ctx, backend.Query{
		Collection: models.CollectionReportEquipment,
		Where:      []backend.Predicate{backend.In("report_id", reportIDs)},
	}, &usage); err != nil {
		return nil, err
	}
	if len(usage) == 0 {
		return []FuelBucket{}, nil
	}

	seen := make(map[string]struct{}, len(usage))
	equipmentIDs := make([]string, 0, len(usage))
	for _, u := range usage {
		if _, ok := seen[u.EquipmentID]; !ok {
			seen[u.EquipmentID] = struct{}{}
			equipmentIDs = append(equipmentIDs, u.EquipmentID)
		}
	}

	var equipment []models.Equipment
	if err := a.read(ctx, backend.Query{
		Collection: models.CollectionEquipment,
		Where:      []backend.Predicate{backend.In("id", equipmentIDs)},
	}, &equipment); err != nil {
		return nil, err
	}
	fuelTypes := make(map[string]string, len(equipment))
	for _, e := range equipment {
		fuelTypes[e.ID] = e.FuelType
	}

	amounts := make(map[string]decimal.Decimal)
	for _, u := range usage {
		fuelType := fuelTypes[u.EquipmentID]
		if fuelType == "" {
			fuelType = models.FuelTypeUnknown
		}
		amounts[fuelType] = amounts[fuelType].Add(decimal.NewFromFloat(u.FuelAmount))
	}

	buckets := make([]FuelBucket, 0, len(amounts))
	for fuelType, amount := range amounts {
		buckets = append(buckets, FuelBucket{Type: fuelType, Amount: amount.InexactFloat64()})
	}
	sortFuelBuckets(buckets)
	return buckets, nil
}

func (a *Aggregator) read(ctx context.Context, q backend.Query, out interface{}) error {
	rows, err := a.querier.Select(ctx, q)
	if err != nil {
		return err
	}
	return backend.DecodeRows(rows, out)
}

func (a *Aggregator) cacheKey(scope string, filter Filter, window Window) string {
	// Окна до now округляются до минуты, иначе ключ менялся бы при каждом запросе
	round := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		r := t.Truncate(time.Minute)
		return &r
	}
	payload, _ := json.Marshal(struct {
		Scope  string `json:"s"`
		Filter Filter `json:"f"`
		From   *time.Time
		To     *time.Time
	}{scope, filter, round(window.From), round(window.To)})
	return CachePrefix + string(payload)
}

func activityPredicates(filter Filter, window Window) []backend.Predicate {
	var where []backend.Predicate
	if window.From != nil {
		where = append(where, backend.Gte("date", *window.From))
	}
	if window.To != nil {
		where = append(where, backend.Lte("date", *window.To))
	}
	if filter.EngineerID != "" {
		where = append(where, backend.Eq("engineer_id", filter.EngineerID))
	}
	return append(where, regionPredicates(filter)...)
}

func regionPredicates(filter Filter) []backend.Predicate {
	var where []backend.Predicate
	if filter.RegionID != "" {
		where = append(where, backend.Eq("region_id", filter.RegionID))
	}
	if filter.RegionIDs != nil {
		where = append(where, backend.In("region_id", filter.RegionIDs))
	}
	return where
}

func countOperators(equipment []models.Equipment) int {
	operators := make(map[string]struct{})
	for _, e := range equipment {
		if e.OperatorID != "" {
			operators[e.OperatorID] = struct{}{}
		}
	}
	return len(operators)
}

func incidentsByType(incidents []models.Incident) []IncidentBucket {
	counts := make(map[string]int)
	for _, inc := range incidents {
		t := string(inc.Type)
		if t == "" {
			t = string(models.IncidentTypeUnknown)
		}
		counts[t]++
	}

	buckets := make([]IncidentBucket, 0, len(counts))
	for t, n := range counts {
		buckets = append(buckets, IncidentBucket{Type: t, Count: n})
	}
	sortIncidentBuckets(buckets)
	return buckets
}
