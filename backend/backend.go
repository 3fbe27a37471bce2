// Package backend описывает внешний бэкенд, с которым работают синхронизация
// коллекций и дашборд: чтение, изменение, уведомления об изменениях и хранилище файлов.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Row строка коллекции с именами полей в соглашении хранилища (snake_case)
type Row map[string]interface{}

// ID возвращает первичный ключ строки
func (r Row) ID() string {
	if id, ok := r["id"].(string); ok {
		return id
	}
	if r["id"] == nil {
		return ""
	}
	return fmt.Sprintf("%v", r["id"])
}

// Op оператор предиката
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Predicate условие на одно поле
type Predicate struct {
	Field string
	Op    Op
	Value interface{}
}

// Eq создает условие равенства
func Eq(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Gte создает условие "больше или равно"
func Gte(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpGte, Value: value}
}

// Lte создает условие "меньше или равно"
func Lte(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpLte, Value: value}
}

// In создает условие вхождения в список. Пустой список не совпадает ни с одной строкой
func In(field string, values []string) Predicate {
	return Predicate{Field: field, Op: OpIn, Value: append([]string{}, values...)}
}

// Query запрос на чтение коллекции
type Query struct {
	Collection string
	Where      []Predicate
	OrderBy    string
	Descending bool
	Limit      int
}

// Querier читает коллекции
type Querier interface {
	Select(ctx context.Context, q Query) ([]Row, error)
}

// Mutator изменяет коллекции по первичному ключу
type Mutator interface {
	Insert(ctx context.Context, collection string, row Row) (Row, error)
	Update(ctx context.Context, collection string, id string, row Row) (Row, error)
	Delete(ctx context.Context, collection string, id string) error
}

// ChangeKind вид изменения строки
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent уведомление об изменении в коллекции
type ChangeEvent struct {
	Kind       ChangeKind `json:"kind"`
	Collection string     `json:"collection"`
	ID         string     `json:"id,omitempty"`
}

// Subscription подписка на изменения одной коллекции.
// Close обязателен: незакрытая подписка продолжает получать события
type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// ChangeFeed выдает подписки на изменения коллекций
type ChangeFeed interface {
	Subscribe(ctx context.Context, collection string) (Subscription, error)
}

// Publisher публикует уведомления об изменениях
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// BlobStore хранилище файлов (фото инцидентов)
type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
}

// Backend полный набор возможностей бэкенда, нужный синхронизации коллекций
type Backend interface {
	Querier
	Mutator
	ChangeFeed
}

// Коды ошибок бэкенда
const (
	CodeNotFound          = "not_found"
	CodeForeignKey        = "foreign_key_violation"
	CodeUniqueViolation   = "unique_violation"
	CodeInvalidArgument   = "invalid_argument"
	CodeUnavailable       = "unavailable"
	CodeUnknownCollection = "unknown_collection"
)

// Error ошибка бэкенда с машиночитаемым кодом
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создает ошибку бэкенда
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf возвращает код ошибки бэкенда или пустую строку
func CodeOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsNotFound проверяет, что строка не найдена
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsForeignKey проверяет нарушение ссылочной целостности
func IsForeignKey(err error) bool {
	return CodeOf(err) == CodeForeignKey
}

// ErrClosed возвращается при работе с закрытой подпиской или брокером
var ErrClosed = errors.New("backend: closed")
