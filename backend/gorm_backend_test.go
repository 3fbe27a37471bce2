package backend_test

import (
	"context"
	"testing"
	"time"

	"fieldops_backend/backend"
	"fieldops_backend/database"
	"fieldops_backend/models"
	"fieldops_backend/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGormBackend(t *testing.T) (*backend.GormBackend, *backend.Broker) {
	t.Helper()
	db := testutils.SetupTestDB(t)
	broker := backend.NewBroker()
	t.Cleanup(broker.Close)
	return backend.NewGormBackend(db, backend.GormOptions{
		Collections: database.CollectionSpecs(),
		Feed:        broker,
		Publisher:   broker,
	}), broker
}

func TestGormBackend_CRUD(t *testing.T) {
	gb, broker := newGormBackend(t)
	ctx := context.Background()

	sub, err := gb.Subscribe(ctx, models.CollectionRegions)
	require.NoError(t, err)
	defer sub.Close()

	created, err := gb.Insert(ctx, models.CollectionRegions, backend.Row{"name": "North"})
	require.NoError(t, err)
	id := created.ID()
	require.NotEmpty(t, id)
	assert.Equal(t, "North", created["name"])
	assert.Equal(t, 1, broker.SubscriberCount(models.CollectionRegions))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, backend.ChangeEvent{Kind: backend.ChangeInsert, Collection: models.CollectionRegions, ID: id}, ev)
	case <-time.After(time.Second):
		t.Fatal("no insert event")
	}

	updated, err := gb.Update(ctx, models.CollectionRegions, id, backend.Row{"name": "North-East"})
	require.NoError(t, err)
	assert.Equal(t, "North-East", updated["name"])

	rows, err := gb.Select(ctx, backend.Query{Collection: models.CollectionRegions})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, gb.Delete(ctx, models.CollectionRegions, id))
	assert.True(t, backend.IsNotFound(gb.Delete(ctx, models.CollectionRegions, id)))

	_, err = gb.Update(ctx, models.CollectionRegions, id, backend.Row{"name": "Gone"})
	assert.True(t, backend.IsNotFound(err))
}

func TestGormBackend_DeleteReferencedRegionFails(t *testing.T) {
	gb, _ := newGormBackend(t)
	db := gb.DB()
	ctx := context.Background()

	region := testutils.CreateTestRegion(t, db, "North")
	testutils.CreateTestReport(t, db, time.Now(), &region.ID, "eng-1", nil)

	err := gb.Delete(ctx, models.CollectionRegions, region.ID)
	require.Error(t, err)
	assert.True(t, backend.IsForeignKey(err))

	rows, err := gb.Select(ctx, backend.Query{Collection: models.CollectionRegions})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestGormBackend_InsertWithMissingParentFails(t *testing.T) {
	gb, _ := newGormBackend(t)

	_, err := gb.Insert(context.Background(), models.CollectionWorkers, backend.Row{
		"full_name":   "Jane",
		"personal_id": "P1",
		"region_id":   "missing",
	})
	require.Error(t, err)
	assert.True(t, backend.IsForeignKey(err))
}

func TestGormBackend_UniqueViolation(t *testing.T) {
	gb, _ := newGormBackend(t)
	ctx := context.Background()

	_, err := gb.Insert(ctx, models.CollectionRegions, backend.Row{"name": "North"})
	require.NoError(t, err)
	_, err = gb.Insert(ctx, models.CollectionRegions, backend.Row{"name": "North"})
	assert.Equal(t, backend.CodeUniqueViolation, backend.CodeOf(err))
}

func TestGormBackend_SelectPredicates(t *testing.T) {
	gb, _ := newGormBackend(t)
	db := gb.DB()
	ctx := context.Background()

	north := testutils.CreateTestRegion(t, db, "North")
	south := testutils.CreateTestRegion(t, db, "South")
	base := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	r1 := testutils.CreateTestReport(t, db, base, &north.ID, "eng-1", nil)
	r2 := testutils.CreateTestReport(t, db, base.AddDate(0, 0, 1), &south.ID, "eng-2", nil)
	r3 := testutils.CreateTestReport(t, db, base.AddDate(0, 0, 2), &north.ID, "eng-1", nil)

	rows, err := gb.Select(ctx, backend.Query{
		Collection: models.CollectionReports,
		Where:      []backend.Predicate{backend.Eq("region_id", north.ID)},
		OrderBy:    "date",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, r3.ID, rows[0].ID())
	assert.Equal(t, r1.ID, rows[1].ID())

	rows, err = gb.Select(ctx, backend.Query{
		Collection: models.CollectionReports,
		Where: []backend.Predicate{
			backend.Gte("date", base.Add(time.Hour)),
			backend.Lte("date", base.AddDate(0, 0, 1).Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, r2.ID, rows[0].ID())

	rows, err = gb.Select(ctx, backend.Query{
		Collection: models.CollectionReports,
		Where:      []backend.Predicate{backend.In("region_id", []string{south.ID})},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = gb.Select(ctx, backend.Query{
		Collection: models.CollectionReports,
		Where:      []backend.Predicate{backend.In("region_id", []string{})},
	})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = gb.Select(ctx, backend.Query{Collection: models.CollectionReports, OrderBy: "date", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGormBackend_RejectsUnknownNames(t *testing.T) {
	gb, _ := newGormBackend(t)
	ctx := context.Background()

	_, err := gb.Select(ctx, backend.Query{Collection: "users"})
	assert.Equal(t, backend.CodeUnknownCollection, backend.CodeOf(err))

	_, err = gb.Select(ctx, backend.Query{
		Collection: models.CollectionRegions,
		Where:      []backend.Predicate{backend.Eq("name; DROP TABLE regions", "x")},
	})
	assert.Equal(t, backend.CodeInvalidArgument, backend.CodeOf(err))

	_, err = gb.Insert(ctx, models.CollectionRegions, backend.Row{"fullName": "x"})
	assert.Equal(t, backend.CodeInvalidArgument, backend.CodeOf(err))
}

func TestGormBackend_SubscribeWithoutFeed(t *testing.T) {
	db := testutils.SetupTestDB(t)
	gb := backend.NewGormBackend(db, backend.GormOptions{Collections: database.CollectionSpecs()})

	_, err := gb.Subscribe(context.Background(), models.CollectionWorkers)
	assert.Equal(t, backend.CodeUnavailable, backend.CodeOf(err))
}

func TestGormBackend_DateOnlyValuesStoredAsMidnight(t *testing.T) {
	db := testutils.SetupTestDB(t)
	almaty := time.FixedZone("UTC+5", 5*60*60)
	gb := backend.NewGormBackend(db, backend.GormOptions{
		Collections: database.CollectionSpecs(),
		Location:    almaty,
	})
	ctx := context.Background()

	created, err := gb.Insert(ctx, models.CollectionIncidents, backend.Row{"date": "2024-06-15", "type": "Cut", "description": "2024-06-15"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", created["description"])

	dayStart := time.Date(2024, 6, 15, 0, 0, 0, 0, almaty)
	rows, err := gb.Select(ctx, backend.Query{
		Collection: models.CollectionIncidents,
		Where: []backend.Predicate{
			backend.Gte("date", dayStart),
			backend.Lte("date", dayStart.Add(24*time.Hour-time.Millisecond)),
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = gb.Select(ctx, backend.Query{
		Collection: models.CollectionIncidents,
		Where:      []backend.Predicate{backend.Lte("date", dayStart.Add(-time.Millisecond))},
	})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = gb.Update(ctx, models.CollectionIncidents, created.ID(), backend.Row{"date": "2024-06-14"})
	require.NoError(t, err)
	rows, err = gb.Select(ctx, backend.Query{
		Collection: models.CollectionIncidents,
		Where:      []backend.Predicate{backend.Lte("date", dayStart.Add(-time.Millisecond))},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
