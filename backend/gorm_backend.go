package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependent строка-потомок, ссылающаяся на коллекцию через колонку
type Dependent struct {
	Collection string
	Column     string
}

// CollectionSpec описывает таблицу, доступную через GormBackend
type CollectionSpec struct {
	Name       string
	Dependents []Dependent
}

// GormOptions настройки GormBackend
type GormOptions struct {
	Collections []CollectionSpec

	// Feed выдает подписки на изменения (PGFeed, RedisFeed или Broker)
	Feed ChangeFeed

	// Publisher получает событие после каждой успешной записи.
	// Для PGFeed не нужен: уведомления отправляют триггеры в базе
	Publisher Publisher

	// Location пояс, в котором читаются даты без времени ("2024-06-15"). По умолчанию UTC
	Location *time.Location

	Logger *log.Logger
}

// GormBackend реализация бэкенда поверх реляционной БД через GORM
type GormBackend struct {
	db          *gorm.DB
	collections map[string]CollectionSpec
	feed        ChangeFeed
	publisher   Publisher
	location    *time.Location
	logger      *log.Logger
	now         func() time.Time
}

// NewGormBackend создает новый экземпляр GormBackend
func NewGormBackend(db *gorm.DB, opts GormOptions) *GormBackend {
	collections := make(map[string]CollectionSpec, len(opts.Collections))
	for _, spec := range opts.Collections {
		collections[spec.Name] = spec
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	location := opts.Location
	if location == nil {
		location = time.UTC
	}

	return &GormBackend{
		db:          db,
		collections: collections,
		feed:        opts.Feed,
		publisher:   opts.Publisher,
		location:    location,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// DB возвращает подключение к базе
func (g *GormBackend) DB() *gorm.DB {
	return g.db
}

// Select читает строки коллекции
func (g *GormBackend) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := g.checkCollection(q.Collection); err != nil {
		return nil, err
	}

	tx := g.db.WithContext(ctx).Table(q.Collection)
	for _, p := range q.Where {
		var err error
		if tx, err = applyPredicate(tx, p); err != nil {
			return nil, err
		}
	}

	if q.OrderBy != "" {
		if !isIdentifier(q.OrderBy) {
			return nil, NewError(CodeInvalidArgument, fmt.Sprintf("недопустимое поле сортировки %q", q.OrderBy), nil)
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Descending})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []map[string]interface{}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, TranslateError(err, fmt.Sprintf("ошибка чтения %s", q.Collection))
	}

	result := make([]Row, 0, len(rows))
	for _, row := range rows {
		result = append(result, normalizeRow(row))
	}
	return result, nil
}

// Insert добавляет строку и возвращает ее в сохраненном виде
func (g *GormBackend) Insert(ctx context.Context, collection string, row Row) (Row, error) {
	if err := g.checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkRowKeys(row); err != nil {
		return nil, err
	}

	values := storageValues(row, g.location)
	id := values.ID()
	if id == "" {
		id = uuid.New().String()
		values["id"] = id
	}
	now := g.now()
	if _, ok := values["created_at"]; !ok {
		values["created_at"] = now
	}
	values["updated_at"] = now

	if err := g.db.WithContext(ctx).Table(collection).Create(map[string]interface{}(values)).Error; err != nil {
		return nil, TranslateError(err, fmt.Sprintf("ошибка добавления в %s", collection))
	}

	created, err := g.selectByID(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	g.publish(ctx, ChangeEvent{Kind: ChangeInsert, Collection: collection, ID: id})
	return created, nil
}

// Update изменяет строку по первичному ключу
func (g *GormBackend) Update(ctx context.Context, collection string, id string, row Row) (Row, error) {
	if err := g.checkCollection(collection); err != nil {
		return nil, err
	}
	if err := checkRowKeys(row); err != nil {
		return nil, err
	}

	values := storageValues(row, g.location)
	delete(values, "id")
	delete(values, "created_at")
	values["updated_at"] = g.now()

	res := g.db.WithContext(ctx).Table(collection).Where("id = ?", id).Updates(map[string]interface{}(values))
	if res.Error != nil {
		return nil, TranslateError(res.Error, fmt.Sprintf("ошибка обновления %s", collection))
	}
	if res.RowsAffected == 0 {
		return nil, NewError(CodeNotFound, fmt.Sprintf("строка %s не найдена в %s", id, collection), nil)
	}

	updated, err := g.selectByID(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	g.publish(ctx, ChangeEvent{Kind: ChangeUpdate, Collection: collection, ID: id})
	return updated, nil
}

// Delete удаляет строку. Удаление запрещено, пока на строку ссылаются потомки
func (g *GormBackend) Delete(ctx context.Context, collection string, id string) error {
	if err := g.checkCollection(collection); err != nil {
		return err
	}

	db := g.db.WithContext(ctx)
	for _, dep := range g.collections[collection].Dependents {
		var count int64
		if err := db.Table(dep.Collection).Where(dep.Column+" = ?", id).Count(&count).Error; err != nil {
			return TranslateError(err, fmt.Sprintf("ошибка проверки ссылок %s", dep.Collection))
		}
		if count > 0 {
			return NewError(CodeForeignKey,
				fmt.Sprintf("на строку %s ссылается %s.%s (%d)", id, dep.Collection, dep.Column, count), nil)
		}
	}

	res := db.Exec("DELETE FROM "+collection+" WHERE id = ?", id)
	if res.Error != nil {
		return TranslateError(res.Error, fmt.Sprintf("ошибка удаления из %s", collection))
	}
	if res.RowsAffected == 0 {
		return NewError(CodeNotFound, fmt.Sprintf("строка %s не найдена в %s", id, collection), nil)
	}

	g.publish(ctx, ChangeEvent{Kind: ChangeDelete, Collection: collection, ID: id})
	return nil
}

// Subscribe открывает подписку на изменения коллекции
func (g *GormBackend) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	if err := g.checkCollection(collection); err != nil {
		return nil, err
	}
	if g.feed == nil {
		return nil, NewError(CodeUnavailable, "источник уведомлений не настроен", nil)
	}
	return g.feed.Subscribe(ctx, collection)
}

func (g *GormBackend) selectByID(ctx context.Context, collection, id string) (Row, error) {
	rows, err := g.Select(ctx, Query{Collection: collection, Where: []Predicate{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, NewError(CodeNotFound, fmt.Sprintf("строка %s не найдена в %s", id, collection), nil)
	}
	return rows[0], nil
}

func (g *GormBackend) publish(ctx context.Context, event ChangeEvent) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.logger.Printf("⚠️ Не удалось опубликовать изменение %s/%s: %v", event.Collection, event.Kind, err)
	}
}

func (g *GormBackend) checkCollection(name string) error {
	if _, ok := g.collections[name]; !ok {
		return NewError(CodeUnknownCollection, fmt.Sprintf("неизвестная коллекция %q", name), nil)
	}
	return nil
}

func applyPredicate(tx *gorm.DB, p Predicate) (*gorm.DB, error) {
	if !isIdentifier(p.Field) {
		return nil, NewError(CodeInvalidArgument, fmt.Sprintf("недопустимое поле %q", p.Field), nil)
	}

	value := deref(p.Value)
	if t, ok := value.(time.Time); ok {
		value = t.UTC()
	}
	switch p.Op {
	case OpEq:
		if value == nil {
			return tx.Where(p.Field + " IS NULL"), nil
		}
		return tx.Where(p.Field+" = ?", value), nil
	case OpGte:
		return tx.Where(p.Field+" >= ?", value), nil
	case OpLte:
		return tx.Where(p.Field+" <= ?", value), nil
	case OpIn:
		values, ok := value.([]string)
		if !ok {
			return nil, NewError(CodeInvalidArgument, fmt.Sprintf("для in по %q нужен список строк", p.Field), nil)
		}
		if len(values) == 0 {
			return tx.Where("1 = 0"), nil
		}
		return tx.Where(p.Field+" IN ?", values), nil
	default:
		return nil, NewError(CodeInvalidArgument, fmt.Sprintf("неизвестный оператор %q", p.Op), nil)
	}
}

func checkRowKeys(row Row) error {
	for key := range row {
		if !isIdentifier(key) {
			return NewError(CodeInvalidArgument, fmt.Sprintf("недопустимое поле %q", key), nil)
		}
	}
	return nil
}

// isIdentifier допускает только имена колонок вида [a-z_][a-z0-9_]*
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch == '_':
		case ch >= '0' && ch <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// storageValues копирует строку и приводит метки времени (time.Time и строки RFC 3339)
// к time.Time в UTC, чтобы сравнения дат в базе не зависели от формата и пояса.
// Дата без времени в колонке даты означает полночь в loc
func storageValues(row Row, loc *time.Location) Row {
	out := copyRow(row)
	for key, value := range out {
		if t, ok := value.(time.Time); ok {
			out[key] = t.UTC()
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		if len(text) == len(time.DateOnly) && isDateColumn(key) {
			if t, err := time.ParseInLocation(time.DateOnly, text, loc); err == nil {
				out[key] = t.UTC()
			}
			continue
		}
		if len(text) < len("2006-01-02T15:04:05Z") {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
			out[key] = t.UTC()
		}
	}
	return out
}

func isDateColumn(key string) bool {
	return key == "date" || strings.HasSuffix(key, "_date") || strings.HasSuffix(key, "_at")
}

func normalizeRow(row map[string]interface{}) Row {
	out := make(Row, len(row))
	for key, value := range row {
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		out[key] = value
	}
	return out
}

// TranslateError приводит ошибки GORM и драйверов к ошибкам бэкенда
func TranslateError(err error, message string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewError(CodeNotFound, message, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return NewError(CodeForeignKey, message, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return NewError(CodeUniqueViolation, message, err)
	}

	text := err.Error()
	switch {
	case strings.Contains(text, "FOREIGN KEY constraint failed"), strings.Contains(text, "SQLSTATE 23503"):
		return NewError(CodeForeignKey, message, err)
	case strings.Contains(text, "UNIQUE constraint failed"), strings.Contains(text, "SQLSTATE 23505"):
		return NewError(CodeUniqueViolation, message, err)
	}
	return NewError(CodeUnavailable, message, err)
}
