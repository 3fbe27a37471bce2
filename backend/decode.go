package backend

import (
	"encoding/json"
	"fmt"

	"fieldops_backend/casing"
)

// DecodeRows переводит имена полей строк в соглашение приложения и
// раскладывает их в out (указатель на срез структур с json-тегами camelCase)
func DecodeRows(rows []Row, out interface{}) error {
	converted := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		converted = append(converted, casing.MapToCamel(row))
	}

	payload, err := json.Marshal(converted)
	if err != nil {
		return fmt.Errorf("ошибка сериализации строк: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("ошибка разбора строк: %w", err)
	}
	return nil
}

// DecodeRow раскладывает одну строку в out
func DecodeRow(row Row, out interface{}) error {
	payload, err := json.Marshal(casing.MapToCamel(row))
	if err != nil {
		return fmt.Errorf("ошибка сериализации строки: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("ошибка разбора строки: %w", err)
	}
	return nil
}
