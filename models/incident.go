package models

import "time"

// IncidentType тип инцидента на сети
type IncidentType string

const (
	IncidentTypeCut      IncidentType = "Cut"
	IncidentTypeParallel IncidentType = "Parallel"
	IncidentTypeDamage   IncidentType = "Damage"
	IncidentTypeNode     IncidentType = "Node"
	IncidentTypeHydrant  IncidentType = "Hydrant"
	IncidentTypeChamber  IncidentType = "Chamber"
	IncidentTypeOther    IncidentType = "Other"

	// IncidentTypeUnknown используется в агрегатах для инцидентов без типа
	IncidentTypeUnknown IncidentType = "Unknown"
)

// IncidentTypes перечисляет допустимые типы в порядке отображения
var IncidentTypes = []IncidentType{
	IncidentTypeCut,
	IncidentTypeParallel,
	IncidentTypeDamage,
	IncidentTypeNode,
	IncidentTypeHydrant,
	IncidentTypeChamber,
	IncidentTypeOther,
}

// IsValid проверяет, что тип входит в перечисление
func (t IncidentType) IsValid() bool {
	for _, known := range IncidentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Incident представляет зафиксированный инцидент
type Incident struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Date       time.Time `json:"date" gorm:"not null;index"`
	RegionID   *string   `json:"regionId" gorm:"index;type:varchar(36)"`
	Region     *Region   `json:"-" gorm:"foreignKey:RegionID;constraint:OnDelete:RESTRICT"`
	EngineerID string    `json:"engineerId" gorm:"index;type:varchar(36)"`

	Type        IncidentType `json:"type" gorm:"type:varchar(20)"`
	Description string       `json:"description" gorm:"type:text"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ImageURL  string  `json:"imageUrl" gorm:"column:image_url;type:text"`
}

// TableName задает имя таблицы для модели Incident
func (Incident) TableName() string {
	return "incidents"
}
