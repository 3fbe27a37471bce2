package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
)

// DatabaseIndex представляет индекс базы данных
type DatabaseIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// PerformanceIndexes составные индексы под выборки дашборда и синхронизации
var PerformanceIndexes = []DatabaseIndex{
	{Name: "idx_reports_region_date", Table: "reports", Columns: []string{"region_id", "date"}},
	{Name: "idx_reports_engineer_date", Table: "reports", Columns: []string{"engineer_id", "date"}},
	{Name: "idx_incidents_region_date", Table: "incidents", Columns: []string{"region_id", "date"}},
	{Name: "idx_incidents_engineer_date", Table: "incidents", Columns: []string{"engineer_id", "date"}},
	{Name: "idx_incidents_type", Table: "incidents", Columns: []string{"type"}},
	{Name: "idx_equipment_fuel_type", Table: "equipment", Columns: []string{"fuel_type"}},
	{Name: "idx_report_equipment_report_equipment", Table: "report_equipment", Columns: []string{"report_id", "equipment_id"}},
}

// CreatePerformanceIndexes создает все индексы производительности
func CreatePerformanceIndexes(db *gorm.DB) error {
	log.Printf("🔧 Создание индексов...")

	failed := 0
	for _, index := range PerformanceIndexes {
		if err := CreateIndex(db, index); err != nil {
			log.Printf("⚠️ Не удалось создать индекс %s: %v", index.Name, err)
			// Продолжаем создание других индексов даже если один упал
			failed++
			continue
		}
	}

	if failed > 0 {
		return fmt.Errorf("не удалось создать %d индексов из %d", failed, len(PerformanceIndexes))
	}
	log.Printf("✅ Индексы созданы")
	return nil
}

// CreateIndex создает отдельный индекс
func CreateIndex(db *gorm.DB, index DatabaseIndex) error {
	uniqueStr := ""
	if index.Unique {
		uniqueStr = "UNIQUE "
	}

	sql := fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		uniqueStr, index.Name, index.Table, strings.Join(index.Columns, ", "),
	)
	return db.Exec(sql).Error
}

// DropIndex удаляет индекс
func DropIndex(db *gorm.DB, indexName string) error {
	return db.Exec(fmt.Sprintf("DROP INDEX IF EXISTS %s", indexName)).Error
}
