package casing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCamel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"id", "id"},
		{"full_name", "fullName"},
		{"daily_salary", "dailySalary"},
		{"image_url", "imageUrl"},
		{"total_worker_salary", "totalWorkerSalary"},
		{"line_2", "line_2"},
		{"trailing_", "trailing_"},
		{"_private", "Private"},
		{"double__under", "double_Under"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToCamel(tt.in))
		})
	}
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "full_name", ToSnake("fullName"))
	assert.Equal(t, "image_url", ToSnake("imageUrl"))
	assert.Equal(t, "region_id", ToSnake("regionId"))
	assert.Equal(t, "id", ToSnake("id"))
}

func TestRoundTripStorageNames(t *testing.T) {
	names := []string{
		"id", "created_at", "full_name", "personal_id", "daily_salary", "region_id",
		"license_plate", "operator_name", "operator_id", "fuel_type", "engineer_id",
		"materials_used", "materials_received", "total_fuel", "total_worker_salary",
		"fuel_amount", "hours_worked", "image_url", "line_2", "_x", "a__b", "end_",
	}

	for _, name := range names {
		assert.Equal(t, name, ToSnake(ToCamel(name)), "round trip for %q", name)
	}
}

func TestRoundTripRecord(t *testing.T) {
	date := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	record := map[string]interface{}{
		"id":          "r1",
		"date":        date,
		"regionId":    "reg-1",
		"totalFuel":   35.5,
		"description": "прокладка трубы",
		"workers": []interface{}{
			map[string]interface{}{"workerId": "w1", "hoursWorked": 8.0},
		},
		"equipment": []map[string]interface{}{
			{"equipmentId": "e1", "fuelAmount": 10.0},
		},
		"meta": map[string]interface{}{"createdBy": "admin"},
	}

	storage := MapToSnake(record)
	assert.Contains(t, storage, "region_id")
	assert.Contains(t, storage, "total_fuel")

	workers := storage["workers"].([]interface{})
	assert.Contains(t, workers[0].(map[string]interface{}), "hours_worked")
	equipment := storage["equipment"].([]map[string]interface{})
	assert.Contains(t, equipment[0], "fuel_amount")

	assert.Equal(t, record, MapToCamel(storage))
}

func TestKeysLeaveScalarsUntouched(t *testing.T) {
	assert.Equal(t, "some_value", KeysToCamel("some_value"))
	assert.Equal(t, 42, KeysToSnake(42))
	assert.Nil(t, MapToCamel(nil))
}

func TestCheckStorageNames(t *testing.T) {
	require.NoError(t, CheckStorageNames([]string{"daily_salary", "full_name", "id"}))

	err := CheckStorageNames([]string{"daily_salary", "dailySalary"})
	require.Error(t, err)

	err = CheckStorageNames([]string{""})
	require.Error(t, err)
}
