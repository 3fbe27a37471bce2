package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"fieldops_backend/config"
	"fieldops_backend/models"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// CreateDatabaseIfNotExists создает базу данных PostgreSQL, если она не существует
func CreateDatabaseIfNotExists(cfg *config.Config) error {
	if cfg.Database.Type != "postgres" {
		return nil
	}

	// Подключаемся к PostgreSQL без указания конкретной БД (к postgres по умолчанию)
	adminDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.SSLMode)

	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return fmt.Errorf("не удалось подключиться к PostgreSQL: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("не удалось проверить подключение к PostgreSQL: %w", err)
	}

	var exists bool
	query := "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1);"
	if err := db.QueryRow(query, cfg.Database.Name).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка при проверке существования базы данных: %w", err)
	}

	if exists {
		log.Printf("✅ База данных '%s' уже существует", cfg.Database.Name)
		return nil
	}

	if !isSafeName(cfg.Database.Name) {
		return fmt.Errorf("недопустимое имя базы данных %q", cfg.Database.Name)
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE %s;", cfg.Database.Name)); err != nil {
		return fmt.Errorf("не удалось создать базу данных '%s': %w", cfg.Database.Name, err)
	}

	log.Printf("✅ База данных '%s' успешно создана", cfg.Database.Name)
	return nil
}

// GormLogLevel переводит LOG_LEVEL в уровень журнала GORM.
// Режим отладки включает вывод всех запросов
func GormLogLevel(cfg *config.Config) logger.LogLevel {
	if cfg.App.Debug {
		return logger.Info
	}
	switch cfg.Logging.Level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	case "warn":
		return logger.Warn
	}
	if cfg.IsDevelopment() {
		return logger.Info
	}
	return logger.Warn
}

// ConnectDatabase открывает подключение к БД, указанной в конфигурации
func ConnectDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(GormLogLevel(cfg)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	switch cfg.Database.Type {
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.Database.Path))
	default:
		dialector = postgres.Open(cfg.GetDatabaseDSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить пул соединений: %w", err)
	}
	if cfg.Database.Type == "sqlite" {
		// SQLite допускает одного писателя
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	DB = db
	log.Printf("✅ Успешно подключено к %s", cfg.Database.Type)
	return db, nil
}

// SQLiteDSN добавляет к пути файла включение внешних ключей
func SQLiteDSN(path string) string {
	return path + "?_foreign_keys=1"
}

// GetDB возвращает экземпляр базы данных
func GetDB() *gorm.DB {
	return DB
}

// AutoMigrate выполняет автомиграцию всех моделей
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return err
	}

	log.Println("✅ Автомиграция моделей выполнена успешно")
	return nil
}

func isSafeName(name string) bool {
	if name == "" {
		return false
	}
	for _, ch := range name {
		if !(ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
			return false
		}
	}
	return true
}
