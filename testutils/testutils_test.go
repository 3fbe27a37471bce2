package testutils

import (
	"testing"
	"time"

	"fieldops_backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t)
	require.NotNil(t, db, "Database should not be nil")

	for _, table := range []string{"regions", "users", "workers", "equipment", "reports", "report_workers", "report_equipment", "incidents"} {
		assert.True(t, db.Migrator().HasTable(table), "table %s should exist", table)
	}
}

func TestCreateTestReport(t *testing.T) {
	db := SetupTestDB(t)

	region := CreateTestRegion(t, db, "North")
	equipment := CreateTestEquipment(t, db, models.FuelTypeDiesel, "OP-1", &region.ID)
	report := CreateTestReport(t, db, time.Now(), &region.ID, "eng-1", map[string]float64{equipment.ID: 12.5})

	var links []models.ReportEquipment
	require.NoError(t, db.Where("report_id = ?", report.ID).Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, equipment.ID, links[0].EquipmentID)
	assert.Equal(t, 12.5, report.TotalFuel)
}

func TestCreateTestUser(t *testing.T) {
	db := SetupTestDB(t)

	user := CreateTestUser(t, db, "eng@example.com", models.RoleEngineer, nil, "r1", "r2")

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, []string{"r1", "r2"}, []string(stored.AssignedRegions))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(TestPassword)))
	assert.False(t, stored.IsAdmin())
}

func TestForeignKeysEnforced(t *testing.T) {
	db := SetupTestDB(t)

	missing := "missing-region"
	err := db.Create(&models.Worker{ID: "w1", FullName: "X", PersonalID: "P1", RegionID: &missing}).Error
	assert.Error(t, err)
}
