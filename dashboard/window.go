package dashboard

import (
	"fmt"
	"time"
)

// TimeFrame период дашборда
type TimeFrame string

const (
	TimeFrameDay    TimeFrame = "day"
	TimeFrameWeek   TimeFrame = "week"
	TimeFrameMonth  TimeFrame = "month"
	TimeFrameYear   TimeFrame = "year"
	TimeFrameAll    TimeFrame = "all"
	TimeFrameCustom TimeFrame = "custom"
)

// ParseTimeFrame проверяет имя периода. Пустая строка означает "all"
func ParseTimeFrame(s string) (TimeFrame, error) {
	switch tf := TimeFrame(s); tf {
	case "":
		return TimeFrameAll, nil
	case TimeFrameDay, TimeFrameWeek, TimeFrameMonth, TimeFrameYear, TimeFrameAll, TimeFrameCustom:
		return tf, nil
	default:
		return "", fmt.Errorf("неизвестный период %q", s)
	}
}

// DateRange произвольный диапазон дат. Нулевая граница не ограничивает окно
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Window окно дат, по которому фильтруются отчеты и инциденты.
// nil-граница означает отсутствие ограничения
type Window struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Bounded сообщает, ограничено ли окно хотя бы с одной стороны
func (w Window) Bounded() bool {
	return w.From != nil || w.To != nil
}

// ResolveWindow вычисляет окно дат для периода относительно now в часовом поясе loc.
// Неделя начинается с понедельника. "year" - скользящие 12 месяцев до now.
// Для "custom" границы расширяются до начала дня From и конца дня To
func ResolveWindow(tf TimeFrame, custom *DateRange, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := startOfDay(now)

	switch tf {
	case TimeFrameDay:
		return bounded(today, endOf(today.AddDate(0, 0, 1))), nil
	case TimeFrameWeek:
		monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
		return bounded(monday, endOf(monday.AddDate(0, 0, 7))), nil
	case TimeFrameMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return bounded(first, endOf(first.AddDate(0, 1, 0))), nil
	case TimeFrameYear:
		return bounded(now.AddDate(0, -12, 0), now), nil
	case TimeFrameAll, "":
		return Window{}, nil
	case TimeFrameCustom:
		if custom == nil {
			return Window{}, nil
		}
		var w Window
		if !custom.From.IsZero() {
			from := startOfDay(custom.From.In(loc))
			w.From = &from
		}
		if !custom.To.IsZero() {
			to := endOf(startOfDay(custom.To.In(loc)).AddDate(0, 0, 1))
			w.To = &to
		}
		if w.From != nil && w.To != nil && w.To.Before(*w.From) {
			return Window{}, fmt.Errorf("начало диапазона %s позже конца %s",
				w.From.Format(time.DateOnly), w.To.Format(time.DateOnly))
		}
		return w, nil
	default:
		return Window{}, fmt.Errorf("неизвестный период %q", tf)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// endOf возвращает последнюю миллисекунду перед next
func endOf(next time.Time) time.Time {
	return next.Add(-time.Millisecond)
}

func bounded(from, to time.Time) Window {
	return Window{From: &from, To: &to}
}
