package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fieldops_backend/backend"
	"fieldops_backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportService создает и удаляет отчеты вместе со связанными строками
type ReportService struct {
	db        *gorm.DB
	publisher backend.Publisher
	logger    *log.Logger
}

// NewReportService создает новый экземпляр ReportService.
// publisher может быть nil, если уведомления отправляют триггеры базы
func NewReportService(db *gorm.DB, publisher backend.Publisher, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Default()
	}
	return &ReportService{db: db, publisher: publisher, logger: logger}
}

// ReportWorkerInput рабочий в составе отчета
type ReportWorkerInput struct {
	WorkerID    string  `json:"workerId"`
	HoursWorked float64 `json:"hoursWorked"`
}

// ReportEquipmentInput техника в составе отчета
type ReportEquipmentInput struct {
	EquipmentID string  `json:"equipmentId"`
	FuelAmount  float64 `json:"fuelAmount"`
}

// ReportInput данные для создания отчета
type ReportInput struct {
	Date              time.Time              `json:"date"`
	RegionID          *string                `json:"regionId"`
	EngineerID        string                 `json:"engineerId"`
	Description       string                 `json:"description"`
	MaterialsUsed     string                 `json:"materialsUsed"`
	MaterialsReceived string                 `json:"materialsReceived"`
	Workers           []ReportWorkerInput    `json:"workers"`
	Equipment         []ReportEquipmentInput `json:"equipment"`
}

// ReportQuery параметры выборки отчетов. RegionIDs == nil означает без ограничения
type ReportQuery struct {
	From       *time.Time
	To         *time.Time
	RegionID   string
	EngineerID string
	RegionIDs  []string
}

// Validate проверяет входные данные отчета
func (in ReportInput) Validate() error {
	if in.Date.IsZero() {
		return backend.NewError(backend.CodeInvalidArgument, "не указана дата отчета", nil)
	}
	if in.EngineerID == "" {
		return backend.NewError(backend.CodeInvalidArgument, "не указан инженер", nil)
	}
	for _, w := range in.Workers {
		if w.WorkerID == "" {
			return backend.NewError(backend.CodeInvalidArgument, "не указан рабочий", nil)
		}
		if w.HoursWorked < 0 {
			return backend.NewError(backend.CodeInvalidArgument, "отрицательное число часов", nil)
		}
	}
	for _, e := range in.Equipment {
		if e.EquipmentID == "" {
			return backend.NewError(backend.CodeInvalidArgument, "не указана техника", nil)
		}
		if e.FuelAmount < 0 {
			return backend.NewError(backend.CodeInvalidArgument, "отрицательный расход топлива", nil)
		}
	}
	return nil
}

// CreateReport записывает отчет и его связи одной транзакцией.
// totalFuel и totalWorkerSalary рассчитываются из связей
func (rs *ReportService) CreateReport(ctx context.Context, in ReportInput) (*models.Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:                uuid.New().String(),
		Date:              in.Date.UTC(),
		RegionID:          in.RegionID,
		EngineerID:        in.EngineerID,
		Description:       in.Description,
		MaterialsUsed:     in.MaterialsUsed,
		MaterialsReceived: in.MaterialsReceived,
	}

	err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		salaries, err := rs.workerSalaries(tx, in.Workers)
		if err != nil {
			return err
		}
		if err := rs.checkEquipment(tx, in.Equipment); err != nil {
			return err
		}

		totalSalary := decimal.Zero
		for _, w := range in.Workers {
			totalSalary = totalSalary.Add(salaries[w.WorkerID])
		}
		totalFuel := decimal.Zero
		for _, e := range in.Equipment {
			totalFuel = totalFuel.Add(decimal.NewFromFloat(e.FuelAmount))
		}
		report.TotalFuel = totalFuel.InexactFloat64()
		report.TotalWorkerSalary = totalSalary.InexactFloat64()

		if err := tx.Omit("Workers", "Equipment").Create(report).Error; err != nil {
			return fmt.Errorf("ошибка создания отчета: %w", err)
		}

		for _, w := range in.Workers {
			report.Workers = append(report.Workers, models.ReportWorker{
				ID:          uuid.New().String(),
				ReportID:    report.ID,
				WorkerID:    w.WorkerID,
				HoursWorked: w.HoursWorked,
			})
		}
		if len(report.Workers) > 0 {
			if err := tx.Create(&report.Workers).Error; err != nil {
				return fmt.Errorf("ошибка привязки рабочих: %w", err)
			}
		}

		for _, e := range in.Equipment {
			report.Equipment = append(report.Equipment, models.ReportEquipment{
				ID:          uuid.New().String(),
				ReportID:    report.ID,
				EquipmentID: e.EquipmentID,
				FuelAmount:  e.FuelAmount,
			})
		}
		if len(report.Equipment) > 0 {
			if err := tx.Create(&report.Equipment).Error; err != nil {
				return fmt.Errorf("ошибка привязки техники: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "ошибка создания отчета")
	}

	rs.logger.Printf("📝 Создан отчет %s: рабочих %d, техники %d, топливо %.2f",
		report.ID, len(report.Workers), len(report.Equipment), report.TotalFuel)

	rs.publish(ctx, backend.ChangeInsert, models.CollectionReports, report.ID)
	for _, w := range report.Workers {
		rs.publish(ctx, backend.ChangeInsert, models.CollectionReportWorkers, w.ID)
	}
	for _, e := range report.Equipment {
		rs.publish(ctx, backend.ChangeInsert, models.CollectionReportEquipment, e.ID)
	}
	return report, nil
}

// GetReport возвращает отчет вместе со связями
func (rs *ReportService) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := rs.db.WithContext(ctx).Preload("Workers").Preload("Equipment").First(&report, "id = ?", id).Error
	if err != nil {
		return nil, classify(err, fmt.Sprintf("отчет %s", id))
	}
	return &report, nil
}

// DeleteReport удаляет отчет и его связи одной транзакцией
func (rs *ReportService) DeleteReport(ctx context.Context, id string) error {
	err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", id).Delete(&models.ReportWorker{}).Error; err != nil {
			return err
		}
		if err := tx.Where("report_id = ?", id).Delete(&models.ReportEquipment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Report{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return classify(err, fmt.Sprintf("ошибка удаления отчета %s", id))
	}

	rs.logger.Printf("🗑️ Удален отчет %s", id)
	rs.publish(ctx, backend.ChangeDelete, models.CollectionReports, id)
	rs.publish(ctx, backend.ChangeDelete, models.CollectionReportWorkers, "")
	rs.publish(ctx, backend.ChangeDelete, models.CollectionReportEquipment, "")
	return nil
}

// ListReports возвращает отчеты по фильтру, новые первыми
func (rs *ReportService) ListReports(ctx context.Context, q ReportQuery) ([]models.Report, error) {
	tx := rs.db.WithContext(ctx).Model(&models.Report{})
	if q.From != nil {
		tx = tx.Where("date >= ?", q.From.UTC())
	}
	if q.To != nil {
		tx = tx.Where("date <= ?", q.To.UTC())
	}
	if q.RegionID != "" {
		tx = tx.Where("region_id = ?", q.RegionID)
	}
	if q.EngineerID != "" {
		tx = tx.Where("engineer_id = ?", q.EngineerID)
	}
	if q.RegionIDs != nil {
		if len(q.RegionIDs) == 0 {
			return []models.Report{}, nil
		}
		tx = tx.Where("region_id IN ?", q.RegionIDs)
	}

	var reports []models.Report
	if err := tx.Order("date DESC").Find(&reports).Error; err != nil {
		return nil, classify(err, "ошибка чтения отчетов")
	}
	return reports, nil
}

// workerSalaries загружает дневные ставки рабочих и проверяет, что все найдены
func (rs *ReportService) workerSalaries(tx *gorm.DB, refs []ReportWorkerInput) (map[string]decimal.Decimal, error) {
	salaries := make(map[string]decimal.Decimal, len(refs))
	if len(refs) == 0 {
		return salaries, nil
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.WorkerID)
	}

	var workers []models.Worker
	if err := tx.Where("id IN ?", ids).Find(&workers).Error; err != nil {
		return nil, err
	}
	for _, w := range workers {
		salaries[w.ID] = decimal.NewFromFloat(w.DailySalary)
	}
	for _, id := range ids {
		if _, ok := salaries[id]; !ok {
			return nil, backend.NewError(backend.CodeForeignKey, fmt.Sprintf("рабочий %s не найден", id), nil)
		}
	}
	return salaries, nil
}

func (rs *ReportService) checkEquipment(tx *gorm.DB, refs []ReportEquipmentInput) error {
	if len(refs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.EquipmentID)
	}

	var found []string
	if err := tx.Model(&models.Equipment{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return err
	}
	known := make(map[string]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return backend.NewError(backend.CodeForeignKey, fmt.Sprintf("техника %s не найдена", id), nil)
		}
	}
	return nil
}

func (rs *ReportService) publish(ctx context.Context, kind backend.ChangeKind, collection, id string) {
	if rs.publisher == nil {
		return
	}
	event := backend.ChangeEvent{Kind: kind, Collection: collection, ID: id}
	if err := rs.publisher.Publish(ctx, event); err != nil {
		rs.logger.Printf("⚠️ Не удалось опубликовать изменение %s/%s: %v", collection, kind, err)
	}
}

// classify приводит ошибки GORM к ошибкам бэкенда
func classify(err error, message string) error {
	var be *backend.Error
	if errors.As(err, &be) {
		return err
	}
	return backend.TranslateError(err, message)
}
