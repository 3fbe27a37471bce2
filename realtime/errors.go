package realtime

import (
	"fmt"

	"fieldops_backend/backend"
)

// FetchError ошибка чтения коллекции. Хранится в состоянии Collection,
// зеркало при этом остается прежним
type FetchError struct {
	Collection string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("не удалось загрузить коллекцию %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// WriteError ошибка записи в коллекцию. Всегда возвращается вызывающему
type WriteError struct {
	Collection string
	Operation  string
	ID         string
	Err        error
}

func (e *WriteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Operation, e.Collection, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Collection, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Code возвращает код ошибки бэкенда, если он есть
func (e *WriteError) Code() string {
	return backend.CodeOf(e.Err)
}
