// pricing.go — PriceResolver: цена слота с учётом переопределений страницы.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/domain/pricing"
	"github.com/bigkaa/goartstore/board-module/internal/repository"
)

// SlotPrice — строка таблицы цен страницы.
type SlotPrice struct {
	Slot      int
	Default   int64
	Suggested int64
	// Override — переопределение страницы, nil если не задано
	Override *int64
	// Effective — итоговая цена для запрошенного способа размещения
	Effective int64
	Occupied  bool
}

// OverrideInput — элемент пакетной установки цен.
type OverrideInput struct {
	Slot  int
	Price int64
}

// PriceResolver — вычисление цен слотов.
type PriceResolver struct {
	overrides repository.PriceOverrideRepository
	schedule  pricing.Schedule
	logger    *slog.Logger
}

// NewPriceResolver создаёт PriceResolver с выбранной шкалой цен.
func NewPriceResolver(overrides repository.PriceOverrideRepository, schedule pricing.Schedule, logger *slog.Logger) *PriceResolver {
	return &PriceResolver{
		overrides: overrides,
		schedule:  schedule,
		logger:    logger.With(slog.String("component", "price_resolver")),
	}
}

// PriceFor возвращает цену слота. Partner — всегда 0 без обращения к хранилищу.
func (p *PriceResolver) PriceFor(ctx context.Context, pageID string, slot int, kind model.PublishKind) (int64, error) {
	if !model.ValidSlot(slot) {
		return 0, fmt.Errorf("%w: %d", ErrSlotRangeInvalid, slot)
	}
	if kind == model.PublishKindPartner {
		return 0, nil
	}

	o, err := p.overrides.Get(ctx, pageID, slot)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return pricing.Resolve(kind, p.schedule, slot, nil), nil
		}
		return 0, storageError("получение цены слота", err)
	}
	return pricing.Resolve(kind, p.schedule, slot, &o.Price), nil
}

// PriceTable возвращает цены всех слотов страницы.
// occupied — занятые слоты (для отметки в таблице).
func (p *PriceResolver) PriceTable(ctx context.Context, pageID string, kind model.PublishKind, occupied map[int]bool) ([]SlotPrice, error) {
	overrides, err := p.overrides.ListByPage(ctx, pageID)
	if err != nil {
		return nil, storageError("получение цен страницы", err)
	}
	bySlot := make(map[int]int64, len(overrides))
	for _, o := range overrides {
		bySlot[o.Slot] = o.Price
	}

	table := make([]SlotPrice, 0, model.MaxSlot)
	for slot := model.MinSlot; slot <= model.MaxSlot; slot++ {
		row := SlotPrice{
			Slot:      slot,
			Default:   pricing.DefaultPrice(slot),
			Suggested: pricing.SuggestedPrice(slot),
			Occupied:  occupied[slot],
		}
		if price, ok := bySlot[slot]; ok {
			row.Override = &price
		}
		row.Effective = pricing.Resolve(kind, p.schedule, slot, row.Override)
		table = append(table, row)
	}
	return table, nil
}

// SetOverrides устанавливает цены слотов пакетом.
// Повторная установка того же слота обновляет запись, а не дублирует её.
func (p *PriceResolver) SetOverrides(ctx context.Context, pageID string, items []OverrideInput, updatedBy string) (added, updated int, err error) {
	if pageID == "" {
		return 0, 0, fmt.Errorf("%w: pageId обязателен", ErrValidation)
	}
	if len(items) == 0 {
		return 0, 0, fmt.Errorf("%w: пустой список цен", ErrValidation)
	}

	// Последнее значение для слота побеждает; один слот — одна строка батча
	latest := make(map[int]int64, len(items))
	order := make([]int, 0, len(items))
	for _, it := range items {
		if !model.ValidSlot(it.Slot) {
			return 0, 0, fmt.Errorf("%w: %d", ErrSlotRangeInvalid, it.Slot)
		}
		if it.Price < 0 {
			return 0, 0, fmt.Errorf("%w: цена слота %d отрицательна", ErrValidation, it.Slot)
		}
		if _, seen := latest[it.Slot]; !seen {
			order = append(order, it.Slot)
		}
		latest[it.Slot] = it.Price
	}

	batch := make([]*model.PriceOverride, 0, len(order))
	for _, slot := range order {
		batch = append(batch, &model.PriceOverride{
			PageID:    pageID,
			Slot:      slot,
			Price:     latest[slot],
			UpdatedBy: updatedBy,
		})
	}

	added, updated, err = p.overrides.UpsertBatch(ctx, batch)
	if err != nil {
		return added, updated, storageError("сохранение цен", err)
	}

	p.logger.Info("Цены слотов обновлены",
		slog.String("page_id", pageID),
		slog.Int("added", added),
		slog.Int("updated", updated),
		slog.String("updated_by", updatedBy),
	)
	return added, updated, nil
}

// ListOverrides возвращает переопределения цен страницы.
func (p *PriceResolver) ListOverrides(ctx context.Context, pageID string) ([]*model.PriceOverride, error) {
	list, err := p.overrides.ListByPage(ctx, pageID)
	if err != nil {
		return nil, storageError("получение цен страницы", err)
	}
	return list, nil
}

// DeleteOverride удаляет переопределение, возвращая слот к шкале по умолчанию.
func (p *PriceResolver) DeleteOverride(ctx context.Context, pageID string, slot int) error {
	if !model.ValidSlot(slot) {
		return fmt.Errorf("%w: %d", ErrSlotRangeInvalid, slot)
	}
	if err := p.overrides.Delete(ctx, pageID, slot); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: цена слота %d не переопределена", ErrNotFound, slot)
		}
		return storageError("удаление цены", err)
	}
	p.logger.Info("Переопределение цены удалено",
		slog.String("page_id", pageID),
		slog.Int("slot", slot),
	)
	return nil
}
