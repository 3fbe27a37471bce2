// Package casing переводит имена полей между соглашением хранилища (snake_case)
// и соглашением приложения (camelCase).
//
// Преобразование однозначно в обе стороны для имен хранилища из [a-z0-9_]:
// "_" перед строчной буквой превращается в заглавную букву, остальные "_" остаются.
// Обратное преобразование заменяет каждую заглавную букву на "_" + строчная.
package casing

import (
	"fmt"
	"sort"
	"strings"
)

// ToCamel переводит имя из snake_case в camelCase
func ToCamel(name string) string {
	if !strings.Contains(name, "_") {
		return name
	}

	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '_' && i+1 < len(name) && isLower(name[i+1]) {
			b.WriteByte(name[i+1] - 'a' + 'A')
			i++
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// ToSnake переводит имя из camelCase в snake_case
func ToSnake(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if isUpper(ch) {
			b.WriteByte('_')
			b.WriteByte(ch - 'A' + 'a')
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// KeysToCamel рекурсивно переименовывает ключи во вложенных объектах и массивах
func KeysToCamel(value interface{}) interface{} {
	return convertKeys(value, ToCamel)
}

// KeysToSnake рекурсивно переименовывает ключи во вложенных объектах и массивах
func KeysToSnake(value interface{}) interface{} {
	return convertKeys(value, ToSnake)
}

// MapToCamel конвертирует ключи одной записи
func MapToCamel(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return convertMap(m, ToCamel)
}

// MapToSnake конвертирует ключи одной записи
func MapToSnake(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return convertMap(m, ToSnake)
}

func convertKeys(value interface{}, rename func(string) string) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return convertMap(v, rename)
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(v))
		for i, item := range v {
			out[i] = convertMap(item, rename)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = convertKeys(item, rename)
		}
		return out
	default:
		return value
	}
}

func convertMap(m map[string]interface{}, rename func(string) string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for key, val := range m {
		out[rename(key)] = convertKeys(val, rename)
	}
	return out
}

// CheckStorageNames проверяет, что имена хранилища записаны в snake_case
// и не сливаются в одно имя приложения
func CheckStorageNames(names []string) error {
	seen := make(map[string]string, len(names))
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	for _, name := range sorted {
		if !IsStorageName(name) {
			return fmt.Errorf("имя поля %q не в формате snake_case", name)
		}
		camel := ToCamel(name)
		if other, exists := seen[camel]; exists && other != name {
			return fmt.Errorf("поля %q и %q отображаются в одно имя %q", other, name, camel)
		}
		seen[camel] = name
	}
	return nil
}

// IsStorageName проверяет, что имя состоит из [a-z0-9_] и не пустое
func IsStorageName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if !isLower(ch) && !isDigit(ch) && ch != '_' {
			return false
		}
	}
	return true
}

func isLower(ch byte) bool { return ch >= 'a' && ch <= 'z' }
func isUpper(ch byte) bool { return ch >= 'A' && ch <= 'Z' }
func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
