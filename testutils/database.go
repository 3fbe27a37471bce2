package testutils

import (
	"path/filepath"
	"testing"
	"time"

	"fieldops_backend/database"
	"fieldops_backend/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword пароль всех тестовых пользователей
const TestPassword = "password123"

// SetupTestDB создает тестовую базу данных SQLite во временном каталоге
// Эта функция должна использоваться во всех тестах для обеспечения консистентности
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(database.SQLiteDSN(dbPath)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // Отключаем логи в тестах
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db), "Failed to migrate test database")

	t.Cleanup(func() { CleanupTestDB(db) })
	return db
}

// CleanupTestDB закрывает тестовую базу данных
func CleanupTestDB(db *gorm.DB) {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

// CreateTestRegion создает тестовый регион
func CreateTestRegion(t *testing.T, db *gorm.DB, name string) *models.Region {
	t.Helper()
	region := &models.Region{ID: uuid.New().String(), Name: name}
	require.NoError(t, db.Create(region).Error)
	return region
}

// CreateTestWorker создает тестового рабочего
func CreateTestWorker(t *testing.T, db *gorm.DB, fullName string, dailySalary float64, regionID *string) *models.Worker {
	t.Helper()
	worker := &models.Worker{
		ID:          uuid.New().String(),
		FullName:    fullName,
		PersonalID:  "P-" + uuid.New().String()[:8],
		DailySalary: dailySalary,
		RegionID:    regionID,
	}
	require.NoError(t, db.Create(worker).Error)
	return worker
}

// CreateTestEquipment создает тестовую технику
func CreateTestEquipment(t *testing.T, db *gorm.DB, fuelType, operatorID string, regionID *string) *models.Equipment {
	t.Helper()
	equipment := &models.Equipment{
		ID:           uuid.New().String(),
		Type:         "excavator",
		LicensePlate: "A" + uuid.New().String()[:6],
		OperatorName: "Operator " + operatorID,
		OperatorID:   operatorID,
		DailySalary:  100,
		FuelType:     fuelType,
		RegionID:     regionID,
	}
	require.NoError(t, db.Create(equipment).Error)
	return equipment
}

// CreateTestUser создает тестового пользователя с паролем TestPassword
func CreateTestUser(t *testing.T, db *gorm.DB, email, role string, regionID *string, assigned ...string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:              uuid.New().String(),
		Name:            "Test " + role,
		Email:           email,
		PasswordHash:    string(hash),
		Role:            role,
		RegionID:        regionID,
		AssignedRegions: pq.StringArray(assigned),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestReport создает отчет с привязанной техникой (equipmentID -> fuelAmount)
func CreateTestReport(t *testing.T, db *gorm.DB, date time.Time, regionID *string, engineerID string, fuel map[string]float64) *models.Report {
	t.Helper()
	report := &models.Report{
		ID:          uuid.New().String(),
		Date:        date,
		RegionID:    regionID,
		EngineerID:  engineerID,
		Description: "test report",
	}
	for equipmentID, amount := range fuel {
		report.TotalFuel += amount
		report.Equipment = append(report.Equipment, models.ReportEquipment{
			ID:          uuid.New().String(),
			EquipmentID: equipmentID,
			FuelAmount:  amount,
		})
	}
	require.NoError(t, db.Create(report).Error)
	return report
}

// CreateTestIncident создает тестовый инцидент
func CreateTestIncident(t *testing.T, db *gorm.DB, date time.Time, regionID *string, engineerID string, incidentType models.IncidentType) *models.Incident {
	t.Helper()
	incident := &models.Incident{
		ID:          uuid.New().String(),
		Date:        date,
		RegionID:    regionID,
		EngineerID:  engineerID,
		Type:        incidentType,
		Description: "test incident",
	}
	require.NoError(t, db.Create(incident).Error)
	return incident
}
