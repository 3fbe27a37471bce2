package models

import "time"

// Worker представляет рабочего бригады
type Worker struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FullName   string `json:"fullName" gorm:"not null;type:varchar(150)"`
	PersonalID string `json:"personalId" gorm:"not null;uniqueIndex;type:varchar(50)"`

	// Дневная ставка. В исходных данных встречались daily_salary/dailysalary,
	// каноническая колонка одна: daily_salary
	DailySalary float64 `json:"dailySalary" gorm:"column:daily_salary;not null;default:0"`

	RegionID *string `json:"regionId" gorm:"index;type:varchar(36)"`
	Region   *Region `json:"-" gorm:"foreignKey:RegionID;constraint:OnDelete:RESTRICT"`
}

// TableName задает имя таблицы для модели Worker
func (Worker) TableName() string {
	return "workers"
}
