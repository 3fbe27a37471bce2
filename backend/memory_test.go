package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SelectFiltersOrdersAndLimits(t *testing.T) {
	m := NewMemory()
	day := func(d int) time.Time { return time.Date(2024, 6, d, 12, 0, 0, 0, time.UTC) }
	m.Seed("reports",
		Row{"id": "r1", "region_id": "north", "date": day(1)},
		Row{"id": "r2", "region_id": "south", "date": day(2)},
		Row{"id": "r3", "region_id": "north", "date": day(3)},
		Row{"id": "r4", "region_id": nil, "date": day(4)},
	)

	rows, err := m.Select(context.Background(), Query{
		Collection: "reports",
		Where:      []Predicate{Eq("region_id", "north")},
		OrderBy:    "date",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "r3", rows[0].ID())
	assert.Equal(t, "r1", rows[1].ID())

	rows, err = m.Select(context.Background(), Query{
		Collection: "reports",
		Where:      []Predicate{Gte("date", day(2)), Lte("date", day(3))},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = m.Select(context.Background(), Query{
		Collection: "reports",
		Where:      []Predicate{In("region_id", []string{"south", "north"})},
		OrderBy:    "date",
		Limit:      1,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r1", rows[0].ID())

	rows, err = m.Select(context.Background(), Query{
		Collection: "reports",
		Where:      []Predicate{In("region_id", nil)},
	})
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.Equal(t, 4, m.SelectCount("reports"))
}

func TestMemory_InsertUpdatePublish(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	sub, err := m.Subscribe(context.Background(), "workers")
	require.NoError(t, err)

	created, err := m.Insert(context.Background(), "workers", Row{"full_name": "Jane"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID())
	ev := receive(t, sub)
	assert.Equal(t, ChangeInsert, ev.Kind)
	assert.Equal(t, created.ID(), ev.ID)

	updated, err := m.Update(context.Background(), "workers", created.ID(), Row{"id": "ignored", "daily_salary": 70.0})
	require.NoError(t, err)
	assert.Equal(t, created.ID(), updated.ID())
	assert.Equal(t, "Jane", updated["full_name"])
	assert.Equal(t, 70.0, updated["daily_salary"])
	assert.Equal(t, ChangeUpdate, receive(t, sub).Kind)

	_, err = m.Insert(context.Background(), "workers", Row{"id": created.ID()})
	assert.Equal(t, CodeUniqueViolation, CodeOf(err))

	_, err = m.Update(context.Background(), "workers", "missing", Row{"full_name": "X"})
	assert.True(t, IsNotFound(err))
}

func TestMemory_ReferentialProtection(t *testing.T) {
	m := NewMemory()
	m.AddReference("regions", "reports", "region_id")
	m.Seed("regions", Row{"id": "north", "name": "North"})
	m.Seed("reports", Row{"id": "r1", "region_id": "north"})

	err := m.Delete(context.Background(), "regions", "north")
	require.Error(t, err)
	assert.True(t, IsForeignKey(err))

	rows, err := m.Select(context.Background(), Query{Collection: "regions"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = m.Insert(context.Background(), "reports", Row{"region_id": "nowhere"})
	assert.True(t, IsForeignKey(err))

	require.NoError(t, m.Delete(context.Background(), "reports", "r1"))
	require.NoError(t, m.Delete(context.Background(), "regions", "north"))
	assert.True(t, IsNotFound(m.Delete(context.Background(), "regions", "north")))
}

func TestMemory_FailureInjection(t *testing.T) {
	m := NewMemory()
	boom := errors.New("network down")

	m.FailOn(OperationSelect, "workers", boom)
	_, err := m.Select(context.Background(), Query{Collection: "workers"})
	assert.ErrorIs(t, err, boom)

	m.FailOn(OperationSelect, "workers", nil)
	_, err = m.Select(context.Background(), Query{Collection: "workers"})
	assert.NoError(t, err)

	m.FailOn(OperationInsert, "workers", boom)
	_, err = m.Insert(context.Background(), "workers", Row{"full_name": "X"})
	assert.ErrorIs(t, err, boom)
}

func TestRow_ID(t *testing.T) {
	assert.Equal(t, "a", Row{"id": "a"}.ID())
	assert.Equal(t, "7", Row{"id": 7}.ID())
	assert.Equal(t, "", Row{}.ID())
}
