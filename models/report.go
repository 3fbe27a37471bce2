package models

import "time"

// Report представляет ежедневный отчет о проделанной работе
type Report struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Date       time.Time `json:"date" gorm:"not null;index"`
	RegionID   *string   `json:"regionId" gorm:"index;type:varchar(36)"`
	Region     *Region   `json:"-" gorm:"foreignKey:RegionID;constraint:OnDelete:RESTRICT"`
	EngineerID string    `json:"engineerId" gorm:"index;type:varchar(36)"`

	Description       string `json:"description" gorm:"type:text"`
	MaterialsUsed     string `json:"materialsUsed" gorm:"type:text"`
	MaterialsReceived string `json:"materialsReceived" gorm:"type:text"`

	// Итоги по отчету, рассчитываются из связанных строк
	TotalFuel         float64 `json:"totalFuel" gorm:"not null;default:0"`
	TotalWorkerSalary float64 `json:"totalWorkerSalary" gorm:"not null;default:0"`

	Workers   []ReportWorker    `json:"workers,omitempty" gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	Equipment []ReportEquipment `json:"equipment,omitempty" gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
}

// TableName задает имя таблицы для модели Report
func (Report) TableName() string {
	return "reports"
}

// ReportWorker связывает отчет и рабочего
type ReportWorker struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ReportID string  `json:"reportId" gorm:"not null;index;type:varchar(36)"`
	WorkerID string  `json:"workerId" gorm:"not null;index;type:varchar(36)"`
	Worker   *Worker `json:"-" gorm:"foreignKey:WorkerID;constraint:OnDelete:RESTRICT"`

	// Не участвует в расчетах
	HoursWorked float64 `json:"hoursWorked" gorm:"not null;default:0"`
}

// TableName задает имя таблицы для модели ReportWorker
func (ReportWorker) TableName() string {
	return "report_workers"
}

// ReportEquipment связывает отчет и технику с расходом топлива
type ReportEquipment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ReportID    string     `json:"reportId" gorm:"not null;index;type:varchar(36)"`
	EquipmentID string     `json:"equipmentId" gorm:"not null;index;type:varchar(36)"`
	Equipment   *Equipment `json:"-" gorm:"foreignKey:EquipmentID;constraint:OnDelete:RESTRICT"`

	FuelAmount float64 `json:"fuelAmount" gorm:"not null;default:0"`
}

// TableName задает имя таблицы для модели ReportEquipment
func (ReportEquipment) TableName() string {
	return "report_equipment"
}
