package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"fieldops_backend/backend"
	"fieldops_backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func newTestAggregator(q backend.Querier, opts ...Option) (*Aggregator, *bytes.Buffer) {
	var logs bytes.Buffer
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
		WithLogger(log.New(&logs, "", 0)),
	}, opts...)
	return NewAggregator(q, opts...), &logs
}

// seedFuelScenario 3 дизельные единицы с расходом [10, 5, 0] и 1 бензиновая с 20 в двух отчетах
func seedFuelScenario(m *backend.Memory) {
	m.Seed(models.CollectionRegions, backend.Row{"id": "north", "name": "North"})
	m.Seed(models.CollectionEquipment,
		backend.Row{"id": "e1", "fuel_type": "diesel", "operator_id": "op1", "region_id": "north"},
		backend.Row{"id": "e2", "fuel_type": "diesel", "operator_id": "op1", "region_id": "north"},
		backend.Row{"id": "e3", "fuel_type": "diesel", "operator_id": "op2", "region_id": "north"},
		backend.Row{"id": "e4", "fuel_type": "gasoline", "operator_id": "", "region_id": "north"},
	)
	m.Seed(models.CollectionWorkers,
		backend.Row{"id": "w1", "full_name": "A", "region_id": "north"},
		backend.Row{"id": "w2", "full_name": "B", "region_id": "north"},
	)
	m.Seed(models.CollectionReports,
		backend.Row{"id": "r1", "date": fixedNow.Add(-2 * time.Hour), "region_id": "north", "engineer_id": "eng1", "total_fuel": 15.0, "total_worker_salary": 100.0},
		backend.Row{"id": "r2", "date": fixedNow.Add(-1 * time.Hour), "region_id": "north", "engineer_id": "eng2", "total_fuel": 20.0},
	)
	m.Seed(models.CollectionReportEquipment,
		backend.Row{"id": "u1", "report_id": "r1", "equipment_id": "e1", "fuel_amount": 10.0},
		backend.Row{"id": "u2", "report_id": "r1", "equipment_id": "e2", "fuel_amount": 5.0},
		backend.Row{"id": "u3", "report_id": "r2", "equipment_id": "e3", "fuel_amount": 0.0},
		backend.Row{"id": "u4", "report_id": "r2", "equipment_id": "e4", "fuel_amount": 20.0},
	)
}

func TestComputeStats_FuelByType(t *testing.T) {
	m := backend.NewMemory()
	seedFuelScenario(m)
	agg, _ := newTestAggregator(m)

	stats := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameDay})

	assert.ElementsMatch(t, []FuelBucket{
		{Type: "diesel", Amount: 15},
		{Type: "gasoline", Amount: 20},
	}, stats.FuelByType)
	assert.Equal(t, 35.0, stats.TotalFuel)
	assert.Equal(t, 100.0, stats.TotalWorkerSalary)
	assert.Equal(t, 2, stats.ReportCount)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 4, stats.EquipmentCount)
	assert.Equal(t, 2, stats.OperatorCount)
	require.NotNil(t, stats.Window.From)
}

func TestComputeStats_UnknownFuelBucketIsExhaustive(t *testing.T) {
	m := backend.NewMemory()
	seedFuelScenario(m)
	m.Seed(models.CollectionEquipment, backend.Row{"id": "e5", "fuel_type": ""})
	m.Seed(models.CollectionReportEquipment,
		backend.Row{"id": "u5", "report_id": "r1", "equipment_id": "e5", "fuel_amount": 3.5},
		backend.Row{"id": "u6", "report_id": "r2", "equipment_id": "deleted", "fuel_amount": 1.25},
		backend.Row{"id": "u7", "report_id": "outside", "equipment_id": "e1", "fuel_amount": 99.0},
	)
	agg, _ := newTestAggregator(m)

	stats := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll})

	byType := map[string]float64{}
	var sum float64
	for _, b := range stats.FuelByType {
		byType[b.Type] = b.Amount
		sum += b.Amount
	}
	assert.Equal(t, 4.75, byType[models.FuelTypeUnknown])
	assert.Equal(t, 10.0+5+0+20+3.5+1.25, sum)
	assert.Equal(t, models.FuelTypeUnknown, stats.FuelByType[len(stats.FuelByType)-1].Type)
}

func TestComputeStats_IncidentsByType(t *testing.T) {
	m := backend.NewMemory()
	for i, typ := range []string{"Cut", "Cut", "Damage", "Other"} {
		m.Seed(models.CollectionIncidents, backend.Row{
			"id": fmt.Sprintf("i%d", i), "date": fixedNow.Add(-time.Duration(i) * time.Minute), "type": typ,
		})
	}
	agg, _ := newTestAggregator(m)

	stats := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameDay})

	assert.Equal(t, []IncidentBucket{
		{Type: "Cut", Count: 2},
		{Type: "Damage", Count: 1},
		{Type: "Other", Count: 1},
	}, stats.IncidentsByType)
	assert.Equal(t, 4, stats.IncidentCount)
}

func TestComputeStats_IncidentPartition(t *testing.T) {
	m := backend.NewMemory()
	m.Seed(models.CollectionRegions, backend.Row{"id": "north"}, backend.Row{"id": "south"})
	types := []string{"Cut", "Parallel", "", "Hydrant", "Cut", "Chamber", "Node", ""}
	for i, typ := range types {
		region := "north"
		if i%2 == 1 {
			region = "south"
		}
		m.Seed(models.CollectionIncidents, backend.Row{
			"id":          fmt.Sprintf("i%d", i),
			"date":        fixedNow.AddDate(0, 0, -i*10),
			"type":        typ,
			"region_id":   region,
			"engineer_id": fmt.Sprintf("eng%d", i%3),
		})
	}
	agg, _ := newTestAggregator(m)

	filters := []Filter{
		{TimeFrame: TimeFrameAll},
		{TimeFrame: TimeFrameMonth},
		{TimeFrame: TimeFrameYear, RegionID: "north"},
		{TimeFrame: TimeFrameAll, EngineerID: "eng1"},
		{TimeFrame: TimeFrameAll, RegionIDs: []string{"south"}},
		{TimeFrame: TimeFrameWeek, RegionID: "south", EngineerID: "eng0"},
	}
	for _, f := range filters {
		stats := agg.ComputeStats(context.Background(), f)
		total := 0
		for _, b := range stats.IncidentsByType {
			total += b.Count
		}
		assert.Equal(t, stats.IncidentCount, total, "%+v", f)
	}

	stats := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll})
	assert.Equal(t, IncidentBucket{Type: string(models.IncidentTypeUnknown), Count: 2}, stats.IncidentsByType[len(stats.IncidentsByType)-1])
}

func TestComputeStats_EmptyRegion(t *testing.T) {
	m := backend.NewMemory()
	seedFuelScenario(m)
	agg, _ := newTestAggregator(m)

	stats := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll, RegionID: "empty"})

	assert.Equal(t, []models.Report{}, stats.RecentReports)
	assert.Equal(t, []models.Incident{}, stats.RecentIncidents)
	assert.Equal(t, []FuelBucket{}, stats.FuelByType)
	assert.Equal(t, []IncidentBucket{}, stats.IncidentsByType)
	assert.Zero(t, stats.WorkerCount)
	assert.Zero(t, stats.EquipmentCount)
	assert.Zero(t, stats.OperatorCount)
	assert.Zero(t, stats.ReportCount)
	assert.Zero(t, stats.IncidentCount)
	assert.Zero(t, stats.TotalFuel)

	payload, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"recentReports":[]`)
	assert.Contains(t, string(payload), `"fuelByType":[]`)
}

func TestComputeStats_ReadFailureReturnsZeroed(t *testing.T) {
	for _, collection := range []string{
		models.CollectionReports,
		models.CollectionIncidents,
		models.CollectionWorkers,
		models.CollectionEquipment,
		models.CollectionReportEquipment,
	} {
		t.Run(collection, func(t *testing.T) {
			m := backend.NewMemory()
			seedFuelScenario(m)
			m.FailOn(backend.OperationSelect, collection, errors.New("timeout"))
			agg, logs := newTestAggregator(m)

			var stats Stats
			require.NotPanics(t, func() {
				stats = agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll})
			})
			assert.Equal(t, EmptyStats(), stats)
			assert.Contains(t, logs.String(), "timeout")

			_, err := agg.Compute(context.Background(), ScopeAdmin, Filter{TimeFrame: TimeFrameAll})
			var aggErr *AggregationError
			require.True(t, errors.As(err, &aggErr))
		})
	}
}

func TestComputeStats_InvalidWindowReturnsZeroed(t *testing.T) {
	agg, _ := newTestAggregator(backend.NewMemory())
	stats := agg.ComputeStats(context.Background(), Filter{TimeFrame: "decade"})
	assert.Equal(t, EmptyStats(), stats)
}

func TestComputeStats_RecentAreFiveNewest(t *testing.T) {
	m := backend.NewMemory()
	for i := 0; i < 7; i++ {
		m.Seed(models.CollectionReports, backend.Row{"id": fmt.Sprintf("r%d", i), "date": fixedNow.AddDate(0, 0, -i)})
	}
	agg, _ := newTestAggregator(m)

	stats := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll})

	require.Len(t, stats.RecentReports, RecentLimit)
	for i, r := range stats.RecentReports {
		assert.Equal(t, fmt.Sprintf("r%d", i), r.ID)
	}
	assert.Equal(t, 7, stats.ReportCount)
}

func TestComputeStats_WindowExcludesOldRows(t *testing.T) {
	m := backend.NewMemory()
	m.Seed(models.CollectionReports,
		backend.Row{"id": "today", "date": fixedNow.Add(-time.Hour), "total_fuel": 5.0},
		backend.Row{"id": "yesterday", "date": fixedNow.AddDate(0, 0, -1), "total_fuel": 7.0},
		backend.Row{"id": "last-year", "date": fixedNow.AddDate(-2, 0, 0), "total_fuel": 11.0},
	)
	agg, _ := newTestAggregator(m)

	day := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameDay})
	assert.Equal(t, 1, day.ReportCount)
	assert.Equal(t, 5.0, day.TotalFuel)

	year := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameYear})
	assert.Equal(t, 2, year.ReportCount)

	all := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll})
	assert.Equal(t, 3, all.ReportCount)
	assert.Equal(t, 23.0, all.TotalFuel)
}

func TestComputeEngineerStats_OwnDataOnly(t *testing.T) {
	m := backend.NewMemory()
	seedFuelScenario(m)
	m.Seed(models.CollectionIncidents,
		backend.Row{"id": "i1", "date": fixedNow, "engineer_id": "eng1", "type": "Cut"},
		backend.Row{"id": "i2", "date": fixedNow, "engineer_id": "eng2", "type": "Node"},
	)
	agg, _ := newTestAggregator(m)

	stats := agg.ComputeEngineerStats(context.Background(), "eng1", Filter{TimeFrame: TimeFrameAll, EngineerID: "eng2"})

	assert.Equal(t, 1, stats.ReportCount)
	assert.Equal(t, "r1", stats.RecentReports[0].ID)
	assert.Equal(t, 1, stats.IncidentCount)
	assert.ElementsMatch(t, []FuelBucket{{Type: "diesel", Amount: 15}}, stats.FuelByType)
}

func TestComputeStats_EmptyRegionScope(t *testing.T) {
	m := backend.NewMemory()
	seedFuelScenario(m)
	agg, _ := newTestAggregator(m)

	stats := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll, RegionIDs: []string{}})
	assert.Zero(t, stats.ReportCount)
	assert.Zero(t, stats.WorkerCount)

	stats = agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll, RegionIDs: []string{"north"}})
	assert.Equal(t, 2, stats.ReportCount)
	assert.Equal(t, 2, stats.WorkerCount)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) GetJSON(_ context.Context, key string, dest interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.data[key]
	return ok && json.Unmarshal(payload, dest) == nil
}

func (c *mapCache) SetJSON(_ context.Context, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, _ := json.Marshal(value)
	c.data[key] = payload
}

func TestComputeStats_Cache(t *testing.T) {
	m := backend.NewMemory()
	seedFuelScenario(m)
	cache := &mapCache{data: map[string][]byte{}}
	agg, _ := newTestAggregator(m, WithCache(cache))

	first := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll})
	reads := m.SelectCount(models.CollectionReports)

	second := agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll})
	assert.Equal(t, reads, m.SelectCount(models.CollectionReports))
	assert.Equal(t, first.ReportCount, second.ReportCount)
	assert.ElementsMatch(t, first.FuelByType, second.FuelByType)

	agg.ComputeStats(context.Background(), Filter{TimeFrame: TimeFrameAll, RegionID: "north"})
	assert.Equal(t, reads+1, m.SelectCount(models.CollectionReports))
}
