package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day, hour, min, sec, msec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, msec*int(time.Millisecond), time.UTC)
}

func TestResolveWindow(t *testing.T) {
	now := at(2024, 6, 15, 14, 30, 0, 0) // суббота

	tests := []struct {
		name string
		tf   TimeFrame
		from time.Time
		to   time.Time
	}{
		{"day", TimeFrameDay, at(2024, 6, 15, 0, 0, 0, 0), at(2024, 6, 15, 23, 59, 59, 999)},
		{"week starts monday", TimeFrameWeek, at(2024, 6, 10, 0, 0, 0, 0), at(2024, 6, 16, 23, 59, 59, 999)},
		{"month", TimeFrameMonth, at(2024, 6, 1, 0, 0, 0, 0), at(2024, 6, 30, 23, 59, 59, 999)},
		{"year is rolling", TimeFrameYear, at(2023, 6, 15, 14, 30, 0, 0), now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ResolveWindow(tt.tf, nil, now, time.UTC)
			require.NoError(t, err)
			require.NotNil(t, w.From)
			require.NotNil(t, w.To)
			assert.True(t, tt.from.Equal(*w.From), "from: got %s", w.From)
			assert.True(t, tt.to.Equal(*w.To), "to: got %s", w.To)
		})
	}
}

func TestResolveWindow_WeekOnSundayAndMonday(t *testing.T) {
	sunday := at(2024, 6, 16, 23, 0, 0, 0)
	w, err := ResolveWindow(TimeFrameWeek, nil, sunday, time.UTC)
	require.NoError(t, err)
	assert.True(t, at(2024, 6, 10, 0, 0, 0, 0).Equal(*w.From))

	monday := at(2024, 6, 17, 0, 0, 0, 0)
	w, err = ResolveWindow(TimeFrameWeek, nil, monday, time.UTC)
	require.NoError(t, err)
	assert.True(t, monday.Equal(*w.From))
	assert.True(t, at(2024, 6, 23, 23, 59, 59, 999).Equal(*w.To))
}

func TestResolveWindow_Unbounded(t *testing.T) {
	now := at(2024, 6, 15, 14, 30, 0, 0)

	for _, tf := range []TimeFrame{TimeFrameAll, TimeFrameCustom, ""} {
		w, err := ResolveWindow(tf, nil, now, time.UTC)
		require.NoError(t, err)
		assert.False(t, w.Bounded(), string(tf))
	}
}

func TestResolveWindow_Custom(t *testing.T) {
	now := at(2024, 6, 15, 14, 30, 0, 0)

	w, err := ResolveWindow(TimeFrameCustom, &DateRange{
		From: at(2024, 5, 1, 10, 0, 0, 0),
		To:   at(2024, 5, 3, 8, 0, 0, 0),
	}, now, time.UTC)
	require.NoError(t, err)
	assert.True(t, at(2024, 5, 1, 0, 0, 0, 0).Equal(*w.From))
	assert.True(t, at(2024, 5, 3, 23, 59, 59, 999).Equal(*w.To))

	w, err = ResolveWindow(TimeFrameCustom, &DateRange{From: at(2024, 5, 1, 0, 0, 0, 0)}, now, time.UTC)
	require.NoError(t, err)
	assert.NotNil(t, w.From)
	assert.Nil(t, w.To)

	_, err = ResolveWindow(TimeFrameCustom, &DateRange{
		From: at(2024, 5, 3, 0, 0, 0, 0),
		To:   at(2024, 5, 1, 0, 0, 0, 0),
	}, now, time.UTC)
	assert.Error(t, err)
}

func TestResolveWindow_Location(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:30 UTC это уже 01:30 следующего дня по UTC+3
	now := at(2024, 6, 15, 22, 30, 0, 0)

	w, err := ResolveWindow(TimeFrameDay, nil, now, loc)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 6, 16, 0, 0, 0, 0, loc).Equal(*w.From))
}

func TestResolveWindow_Idempotent(t *testing.T) {
	now := at(2024, 6, 15, 14, 30, 0, 0)
	for _, tf := range []TimeFrame{TimeFrameDay, TimeFrameWeek, TimeFrameMonth, TimeFrameYear, TimeFrameAll, TimeFrameCustom} {
		first, err := ResolveWindow(tf, nil, now, time.UTC)
		require.NoError(t, err)
		second, err := ResolveWindow(tf, nil, now, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, first, second, string(tf))
	}
}

func TestParseTimeFrame(t *testing.T) {
	tf, err := ParseTimeFrame("")
	require.NoError(t, err)
	assert.Equal(t, TimeFrameAll, tf)

	tf, err = ParseTimeFrame("week")
	require.NoError(t, err)
	assert.Equal(t, TimeFrameWeek, tf)

	_, err = ParseTimeFrame("decade")
	assert.Error(t, err)

	_, err = ResolveWindow("decade", nil, time.Now(), time.UTC)
	assert.Error(t, err)
}
