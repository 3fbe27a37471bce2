package models

import "time"

// Типы топлива техники
const (
	FuelTypeDiesel   = "diesel"
	FuelTypeGasoline = "gasoline"

	// FuelTypeUnknown используется в агрегатах для техники без известного типа топлива
	FuelTypeUnknown = "Unknown"
)

// Equipment представляет единицу техники с оператором
type Equipment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Type         string `json:"type" gorm:"not null;type:varchar(100)"` // экскаватор, самосвал и т.д.
	LicensePlate string `json:"licensePlate" gorm:"type:varchar(30)"`

	// Оператор техники
	OperatorName string `json:"operatorName" gorm:"type:varchar(150)"`
	OperatorID   string `json:"operatorId" gorm:"index;type:varchar(50)"`

	DailySalary float64 `json:"dailySalary" gorm:"column:daily_salary;not null;default:0"`
	FuelType    string  `json:"fuelType" gorm:"type:varchar(20)"` // diesel, gasoline

	RegionID *string `json:"regionId" gorm:"index;type:varchar(36)"`
	Region   *Region `json:"-" gorm:"foreignKey:RegionID;constraint:OnDelete:RESTRICT"`
}

// TableName задает имя таблицы для модели Equipment
func (Equipment) TableName() string {
	return "equipment"
}

// IsValidFuelType проверяет тип топлива
func IsValidFuelType(fuelType string) bool {
	return fuelType == FuelTypeDiesel || fuelType == FuelTypeGasoline
}
