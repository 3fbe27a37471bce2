package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Operation операция бэкенда, для которой можно задать сбой
type Operation string

const (
	OperationSelect Operation = "select"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Reference ссылка строки-потомка на родительскую коллекцию
type Reference struct {
	Parent string
	Child  string
	Column string
}

type memTable struct {
	rows  map[string]Row
	order []string
}

// Memory бэкенд в памяти процесса: хранит строки, проверяет ссылки
// и рассылает уведомления через Broker. Используется в тестах и в режиме разработки
type Memory struct {
	mu       sync.RWMutex
	tables   map[string]*memTable
	refs     []Reference
	failures map[string]error
	selects  map[string]int
	broker   *Broker
}

// NewMemory создает пустой бэкенд в памяти
func NewMemory() *Memory {
	return &Memory{
		tables:   make(map[string]*memTable),
		failures: make(map[string]error),
		selects:  make(map[string]int),
		broker:   NewBroker(),
	}
}

// AddReference регистрирует ссылку child.column -> parent.id
func (m *Memory) AddReference(parent, child, column string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs = append(m.refs, Reference{Parent: parent, Child: child, Column: column})
}

// FailOn заставляет операцию над коллекцией возвращать err. nil снимает сбой
func (m *Memory) FailOn(op Operation, collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := failureKey(op, collection)
	if err == nil {
		delete(m.failures, key)
		return
	}
	m.failures[key] = err
}

// SelectCount возвращает число чтений коллекции
func (m *Memory) SelectCount(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selects[collection]
}

// Broker возвращает брокер уведомлений
func (m *Memory) Broker() *Broker {
	return m.broker
}

// Seed добавляет строки без уведомлений и проверок
func (m *Memory) Seed(collection string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.table(collection)
	for _, row := range rows {
		stored := copyRow(row)
		id := stored.ID()
		if id == "" {
			id = uuid.New().String()
			stored["id"] = id
		}
		if _, exists := table.rows[id]; !exists {
			table.order = append(table.order, id)
		}
		table.rows[id] = stored
	}
}

// Select читает строки коллекции
func (m *Memory) Select(_ context.Context, q Query) ([]Row, error) {
	m.mu.Lock()
	m.selects[q.Collection]++
	if err := m.failures[failureKey(OperationSelect, q.Collection)]; err != nil {
		m.mu.Unlock()
		return nil, err
	}

	table := m.table(q.Collection)
	result := make([]Row, 0, len(table.order))
	for _, id := range table.order {
		row := table.rows[id]
		if matchesAll(row, q.Where) {
			result = append(result, copyRow(row))
		}
	}
	m.mu.Unlock()

	if q.OrderBy != "" {
		sort.SliceStable(result, func(i, j int) bool {
			cmp, _ := compareValues(result[i][q.OrderBy], result[j][q.OrderBy])
			if q.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// Insert добавляет строку
func (m *Memory) Insert(ctx context.Context, collection string, row Row) (Row, error) {
	m.mu.Lock()
	if err := m.failures[failureKey(OperationInsert, collection)]; err != nil {
		m.mu.Unlock()
		return nil, err
	}

	stored := copyRow(row)
	id := stored.ID()
	if id == "" {
		id = uuid.New().String()
		stored["id"] = id
	}

	table := m.table(collection)
	if _, exists := table.rows[id]; exists {
		m.mu.Unlock()
		return nil, NewError(CodeUniqueViolation, fmt.Sprintf("строка %s уже существует в %s", id, collection), nil)
	}
	if err := m.checkParents(collection, stored); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	table.rows[id] = stored
	table.order = append(table.order, id)
	result := copyRow(stored)
	m.mu.Unlock()

	_ = m.broker.Publish(ctx, ChangeEvent{Kind: ChangeInsert, Collection: collection, ID: id})
	return result, nil
}

// Update изменяет строку по первичному ключу
func (m *Memory) Update(ctx context.Context, collection string, id string, row Row) (Row, error) {
	m.mu.Lock()
	if err := m.failures[failureKey(OperationUpdate, collection)]; err != nil {
		m.mu.Unlock()
		return nil, err
	}

	table := m.table(collection)
	existing, ok := table.rows[id]
	if !ok {
		m.mu.Unlock()
		return nil, NewError(CodeNotFound, fmt.Sprintf("строка %s не найдена в %s", id, collection), nil)
	}

	updated := copyRow(existing)
	for key, value := range row {
		if key == "id" {
			continue
		}
		updated[key] = value
	}
	if err := m.checkParents(collection, updated); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	table.rows[id] = updated
	result := copyRow(updated)
	m.mu.Unlock()

	_ = m.broker.Publish(ctx, ChangeEvent{Kind: ChangeUpdate, Collection: collection, ID: id})
	return result, nil
}

// Delete удаляет строку, если на нее никто не ссылается
func (m *Memory) Delete(ctx context.Context, collection string, id string) error {
	m.mu.Lock()
	if err := m.failures[failureKey(OperationDelete, collection)]; err != nil {
		m.mu.Unlock()
		return err
	}

	table := m.table(collection)
	if _, ok := table.rows[id]; !ok {
		m.mu.Unlock()
		return NewError(CodeNotFound, fmt.Sprintf("строка %s не найдена в %s", id, collection), nil)
	}

	for _, ref := range m.refs {
		if ref.Parent != collection {
			continue
		}
		for _, child := range m.table(ref.Child).rows {
			if cmp, ok := compareValues(child[ref.Column], id); ok && cmp == 0 {
				m.mu.Unlock()
				return NewError(CodeForeignKey,
					fmt.Sprintf("на строку %s ссылается %s.%s", id, ref.Child, ref.Column), nil)
			}
		}
	}

	delete(table.rows, id)
	for i, existing := range table.order {
		if existing == id {
			table.order = append(table.order[:i], table.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	_ = m.broker.Publish(ctx, ChangeEvent{Kind: ChangeDelete, Collection: collection, ID: id})
	return nil
}

// Subscribe открывает подписку на изменения коллекции
func (m *Memory) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	return m.broker.Subscribe(ctx, collection)
}

// Close закрывает все подписки
func (m *Memory) Close() {
	m.broker.Close()
}

func (m *Memory) checkParents(collection string, row Row) error {
	for _, ref := range m.refs {
		if ref.Child != collection {
			continue
		}
		value := deref(row[ref.Column])
		if value == nil || value == "" {
			continue
		}
		parentID := fmt.Sprintf("%v", value)
		if _, ok := m.table(ref.Parent).rows[parentID]; !ok {
			return NewError(CodeForeignKey,
				fmt.Sprintf("%s.%s ссылается на несуществующую строку %s", collection, ref.Column, parentID), nil)
		}
	}
	return nil
}

func (m *Memory) table(collection string) *memTable {
	table, ok := m.tables[collection]
	if !ok {
		table = &memTable{rows: make(map[string]Row)}
		m.tables[collection] = table
	}
	return table
}

func matchesAll(row Row, predicates []Predicate) bool {
	for _, p := range predicates {
		if !matches(row, p) {
			return false
		}
	}
	return true
}

func copyRow(row Row) Row {
	out := make(Row, len(row))
	for key, value := range row {
		out[key] = value
	}
	return out
}

func failureKey(op Operation, collection string) string {
	return string(op) + ":" + collection
}
