// Package realtime держит в памяти актуальную копию коллекции бэкенда:
// читает ее целиком, подписывается на уведомления и перечитывает при каждом изменении.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fieldops_backend/backend"
	"fieldops_backend/casing"
	"fieldops_backend/observability"
)

// Fields частичная запись в соглашении приложения (camelCase)
type Fields map[string]interface{}

// Filter условие равенства по одному полю (имя поля в соглашении приложения)
type Filter struct {
	Field string
	Value interface{}
}

// Options настройки Collection
type Options[T any] struct {
	Filter *Filter

	// Scope ограничения доступа в соглашении хранилища, добавляются к каждому чтению
	Scope []backend.Predicate

	// OrderBy поле сортировки в соглашении приложения
	OrderBy    string
	Descending bool

	// Events виды изменений, вызывающие перезагрузку. Пусто - все
	Events []backend.ChangeKind

	// OnRefresh вызывается после каждой примененной перезагрузки
	OnRefresh func([]T)

	Logger  *log.Logger
	Metrics *observability.Metrics
}

var (
	// ErrAlreadyStarted возвращается при повторном Start
	ErrAlreadyStarted = errors.New("realtime: collection already started")
	// ErrClosed возвращается при Start после Close
	ErrClosed = errors.New("realtime: collection closed")
)

// Collection зеркало одной коллекции бэкенда
type Collection[T any] struct {
	backend backend.Backend
	name    string
	opts    Options[T]
	logger  *log.Logger

	mu     sync.RWMutex
	items  []T
	err    error
	issued uint64

	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New создает зеркало коллекции. Подписка открывается в Start
func New[T any](b backend.Backend, collection string, opts Options[T]) *Collection[T] {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Collection[T]{
		backend: b,
		name:    collection,
		opts:    opts,
		logger:  logger,
		items:   []T{},
	}
}

// Name возвращает имя коллекции
func (c *Collection[T]) Name() string {
	return c.name
}

// Start открывает подписку на изменения, выполняет первую загрузку и запускает
// перезагрузку по уведомлениям. Ошибка первой загрузки не прерывает Start:
// она доступна через Err
func (c *Collection[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.started:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	sub, err := c.backend.Subscribe(loopCtx, c.name)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("не удалось подписаться на %s: %w", c.name, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = sub.Close()
		return ErrClosed
	}
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()
	c.opts.Metrics.SubscriptionOpened(c.name)

	// Подписка открыта до чтения, чтобы не потерять изменения между ними
	if _, err := c.FetchAll(loopCtx); err != nil {
		c.logger.Printf("⚠️ %v", err)
	}

	go c.listen(loopCtx, sub)
	return nil
}

func (c *Collection[T]) listen(ctx context.Context, sub backend.Subscription) {
	defer close(c.done)
	defer c.opts.Metrics.SubscriptionClosed(c.name)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if !c.wants(event.Kind) {
				continue
			}
			c.opts.Metrics.RecordEvent(c.name, string(event.Kind))
			if _, err := c.FetchAll(ctx); err != nil && ctx.Err() == nil {
				c.logger.Printf("⚠️ %v", err)
			}
		}
	}
}

func (c *Collection[T]) wants(kind backend.ChangeKind) bool {
	if len(c.opts.Events) == 0 {
		return true
	}
	for _, k := range c.opts.Events {
		if k == kind {
			return true
		}
	}
	return false
}

// FetchAll перечитывает коллекцию целиком и заменяет зеркало.
// Результат чтения, обогнанного более поздним запросом, в зеркало не попадает.
// При ошибке зеркало не меняется, ошибка сохраняется и возвращается как *FetchError
func (c *Collection[T]) FetchAll(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	c.issued++
	requestID := c.issued
	c.mu.Unlock()

	start := time.Now()
	items, err := c.load(ctx)
	elapsed := time.Since(start).Seconds()

	c.mu.Lock()
	if requestID != c.issued {
		c.mu.Unlock()
		c.opts.Metrics.RecordFetch(c.name, "stale", elapsed)
		if err != nil {
			return nil, &FetchError{Collection: c.name, Err: err}
		}
		return items, nil
	}
	if err != nil {
		fetchErr := &FetchError{Collection: c.name, Err: err}
		c.err = fetchErr
		c.mu.Unlock()
		c.opts.Metrics.RecordFetch(c.name, "error", elapsed)
		return nil, fetchErr
	}
	c.items = items
	c.err = nil
	snapshot := append([]T(nil), items...)
	c.mu.Unlock()

	c.opts.Metrics.RecordFetch(c.name, "success", elapsed)
	if c.opts.OnRefresh != nil {
		c.opts.OnRefresh(snapshot)
	}
	return items, nil
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	query := backend.Query{Collection: c.name}
	if c.opts.Filter != nil {
		query.Where = append(query.Where, backend.Eq(casing.ToSnake(c.opts.Filter.Field), c.opts.Filter.Value))
	}
	query.Where = append(query.Where, c.opts.Scope...)
	if c.opts.OrderBy != "" {
		query.OrderBy = casing.ToSnake(c.opts.OrderBy)
		query.Descending = c.opts.Descending
	}

	rows, err := c.backend.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	return decodeRows[T](rows)
}

// Add добавляет запись и возвращает ее в сохраненном виде. Зеркало обновится
// по уведомлению об изменении
func (c *Collection[T]) Add(ctx context.Context, fields Fields) (T, error) {
	var zero T
	row, err := c.storageRow(fields)
	if err != nil {
		return zero, c.writeFailed("add", "", err)
	}

	created, err := c.backend.Insert(ctx, c.name, row)
	if err != nil {
		return zero, c.writeFailed("add", "", err)
	}
	c.opts.Metrics.RecordWrite(c.name, "add", "success")
	return decodeRow[T](created)
}

// Update изменяет запись по первичному ключу
func (c *Collection[T]) Update(ctx context.Context, id string, fields Fields) (T, error) {
	var zero T
	row, err := c.storageRow(fields)
	if err != nil {
		return zero, c.writeFailed("update", id, err)
	}

	updated, err := c.backend.Update(ctx, c.name, id, row)
	if err != nil {
		return zero, c.writeFailed("update", id, err)
	}
	c.opts.Metrics.RecordWrite(c.name, "update", "success")
	return decodeRow[T](updated)
}

// Remove удаляет запись по первичному ключу
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	if err := c.backend.Delete(ctx, c.name, id); err != nil {
		return c.writeFailed("remove", id, err)
	}
	c.opts.Metrics.RecordWrite(c.name, "remove", "success")
	return nil
}

func (c *Collection[T]) storageRow(fields Fields) (backend.Row, error) {
	row := casing.MapToSnake(fields)
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	if err := casing.CheckStorageNames(names); err != nil {
		return nil, backend.NewError(backend.CodeInvalidArgument, "недопустимые имена полей", err)
	}
	return backend.Row(row), nil
}

func (c *Collection[T]) writeFailed(operation, id string, err error) error {
	c.opts.Metrics.RecordWrite(c.name, operation, "error")
	return &WriteError{Collection: c.name, Operation: operation, ID: id, Err: err}
}

// Items возвращает копию зеркала
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T{}, c.items...)
}

// Err возвращает ошибку последней загрузки или nil
func (c *Collection[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close закрывает подписку и ждет остановки перезагрузки.
// После Close коллекцию нельзя запустить
func (c *Collection[T]) Close() error {
	c.mu.Lock()
	c.closed = true
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func decodeRows[T any](rows []backend.Row) ([]T, error) {
	items := make([]T, 0, len(rows))
	if err := backend.DecodeRows(rows, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func decodeRow[T any](row backend.Row) (T, error) {
	var item T
	err := backend.DecodeRow(row, &item)
	return item, err
}
