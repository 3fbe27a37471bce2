package backend

import (
	"fmt"
	"strings"
	"time"
)

// compareValues сравнивает два значения поля. ok=false, если значения несравнимы
func compareValues(a, b interface{}) (int, bool) {
	a, b = deref(a), deref(b)
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if tb, ok := b.(time.Time); ok {
		ta, ok := toTime(a)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}

	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok || ba != bb {
			return 1, ok
		}
		return 0, true
	}

	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)), true
}

func matches(row Row, p Predicate) bool {
	value := row[p.Field]
	switch p.Op {
	case OpEq:
		cmp, ok := compareValues(value, p.Value)
		return ok && cmp == 0
	case OpGte:
		cmp, ok := compareValues(value, p.Value)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := compareValues(value, p.Value)
		return ok && cmp <= 0
	case OpIn:
		values, _ := p.Value.([]string)
		for _, candidate := range values {
			if cmp, ok := compareValues(value, candidate); ok && cmp == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func deref(v interface{}) interface{} {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil
		}
		return *p
	case *float64:
		if p == nil {
			return nil
		}
		return *p
	case *time.Time:
		if p == nil {
			return nil
		}
		return *p
	default:
		return v
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
