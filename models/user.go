package models

import (
	"time"

	"github.com/lib/pq"
)

// Роли пользователей
const (
	RoleAdmin    = "admin"
	RoleEngineer = "engineer"
)

// User представляет пользователя системы (администратор или инженер)
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name         string `json:"name" gorm:"not null;type:varchar(150)"`
	Email        string `json:"email" gorm:"uniqueIndex;not null;type:varchar(150)"`
	PasswordHash string `json:"-" gorm:"not null"` // Пароль не возвращается в JSON

	Role     string  `json:"role" gorm:"not null;default:'engineer';type:varchar(20)"`
	RegionID *string `json:"regionId" gorm:"type:varchar(36)"`

	// Регионы, закрепленные за инженером. Хранится как литерал массива Postgres в text,
	// чтобы схема одинаково работала в SQLite
	AssignedRegions pq.StringArray `json:"assignedRegions" gorm:"type:text"`
}

// TableName задает имя таблицы для модели User
func (User) TableName() string {
	return "users"
}

// IsAdmin проверяет, является ли пользователь администратором
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
