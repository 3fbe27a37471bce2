package models

import "time"

// Region представляет географический регион, в котором ведутся работы
type Region struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name string `json:"name" gorm:"not null;uniqueIndex;type:varchar(100)"`
}

// TableName задает имя таблицы для модели Region
func (Region) TableName() string {
	return "regions"
}
