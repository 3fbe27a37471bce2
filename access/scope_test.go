package access

import (
	"testing"

	"fieldops_backend/backend"
	"fieldops_backend/dashboard"
	"fieldops_backend/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestForUser_Admin(t *testing.T) {
	scope := ForUser(&models.User{ID: "a1", Role: models.RoleAdmin})

	assert.True(t, scope.Unrestricted)
	assert.True(t, scope.Allows(nil))
	assert.True(t, scope.Allows(strPtr("any")))
	assert.Nil(t, scope.RegionPredicates("region_id"))
	assert.Nil(t, scope.CollectionPredicates(models.CollectionReports))
	assert.True(t, scope.CanRead(models.CollectionReportWorkers))

	filter := dashboard.Filter{TimeFrame: dashboard.TimeFrameAll, RegionID: "north"}
	assert.Equal(t, filter, scope.DashboardFilter(filter))
}

func TestForUser_EngineerUnionOfRegions(t *testing.T) {
	scope := ForUser(&models.User{
		ID:              "e1",
		Role:            models.RoleEngineer,
		RegionID:        strPtr("south"),
		AssignedRegions: pq.StringArray{"north", "south", ""},
	})

	assert.False(t, scope.Unrestricted)
	assert.Equal(t, []string{"north", "south"}, scope.RegionIDs)
	assert.True(t, scope.Allows(strPtr("north")))
	assert.False(t, scope.Allows(strPtr("east")))
	assert.False(t, scope.Allows(nil))

	preds := scope.CollectionPredicates(models.CollectionReports)
	assert.Equal(t, []backend.Predicate{backend.In("region_id", []string{"north", "south"})}, preds)
	assert.Equal(t, []backend.Predicate{backend.In("id", []string{"north", "south"})}, scope.CollectionPredicates(models.CollectionRegions))
	assert.Nil(t, scope.CollectionPredicates(models.CollectionReportEquipment))
	assert.True(t, scope.CanRead(models.CollectionIncidents))
	assert.False(t, scope.CanRead(models.CollectionReportEquipment))
	assert.False(t, scope.CanRead(models.CollectionReportWorkers))
	assert.False(t, scope.CanRead("users"))

	filtered := scope.DashboardFilter(dashboard.Filter{RegionID: "east"})
	assert.Equal(t, "east", filtered.RegionID)
	assert.Equal(t, []string{"north", "south"}, filtered.RegionIDs)
}

func TestForUser_EngineerWithoutRegions(t *testing.T) {
	scope := ForUser(&models.User{ID: "e2", Role: models.RoleEngineer})

	assert.NotNil(t, scope.RegionIDs)
	assert.Empty(t, scope.RegionIDs)
	assert.False(t, scope.Allows(strPtr("north")))
	assert.NotNil(t, scope.DashboardFilter(dashboard.Filter{}).RegionIDs)
}

func TestForUser_Nil(t *testing.T) {
	scope := ForUser(nil)
	assert.False(t, scope.Unrestricted)
	assert.False(t, scope.Allows(strPtr("north")))
}
