// Пакет pricing — таблицы цен слотов.
//
// Две независимые шкалы сохраняются без изменений, так как страницы могли
// быть оценены по любой из них:
//   - default — основная шкала размещения
//   - suggested — историческая шкала «рекомендованной цены» (база + надбавка)
package pricing

import (
	"fmt"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
)

// Schedule — шкала цен.
type Schedule string

const (
	ScheduleDefault   Schedule = "default"
	ScheduleSuggested Schedule = "suggested"
)

// SuggestedBase — базовая цена исторической шкалы.
const SuggestedBase int64 = 50

// tier — диапазон слотов [from, to] и сумма.
type tier struct {
	from, to int
	amount   int64
}

var defaultTiers = []tier{
	{1, 10, 150},
	{11, 20, 100},
	{21, 30, 80},
	{31, 40, 60},
	{41, 50, 50},
	{51, 60, 30},
}

// Надбавки к SuggestedBase.
var suggestedSurcharges = []tier{
	{1, 10, 100},
	{11, 30, 50},
	{31, 60, 20},
}

func lookup(tiers []tier, slot int) (int64, bool) {
	for _, t := range tiers {
		if slot >= t.from && slot <= t.to {
			return t.amount, true
		}
	}
	return 0, false
}

// DefaultPrice возвращает цену слота по основной шкале.
// Для слотов вне диапазона возвращает 0.
func DefaultPrice(slot int) int64 {
	amount, _ := lookup(defaultTiers, slot)
	return amount
}

// SuggestedPrice возвращает цену по исторической шкале: база плюс надбавка.
// Вне диапазонов надбавки — только база.
func SuggestedPrice(slot int) int64 {
	surcharge, _ := lookup(suggestedSurcharges, slot)
	return SuggestedBase + surcharge
}

// Price возвращает цену по выбранной шкале.
func Price(schedule Schedule, slot int) int64 {
	if schedule == ScheduleSuggested {
		return SuggestedPrice(slot)
	}
	return DefaultPrice(slot)
}

// Resolve вычисляет итоговую цену: partner всегда бесплатен,
// переопределение страницы имеет приоритет над обеими шкалами.
func Resolve(kind model.PublishKind, schedule Schedule, slot int, override *int64) int64 {
	if kind == model.PublishKindPartner {
		return 0
	}
	if override != nil {
		return *override
	}
	return Price(schedule, slot)
}

// ParseSchedule преобразует строку в Schedule. Пустая строка — default.
func ParseSchedule(s string) (Schedule, error) {
	switch Schedule(s) {
	case "", ScheduleDefault:
		return ScheduleDefault, nil
	case ScheduleSuggested:
		return ScheduleSuggested, nil
	default:
		return "", fmt.Errorf("недопустимая шкала цен: %q, допустимые: default, suggested", s)
	}
}
