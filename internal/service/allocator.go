// allocator.go — SlotAllocator: выдача эксклюзивных слотов 1..60 на странице.
//
// Занятость вычисляется запросом по неудалённым статьям страницы, отдельного
// реестра слотов нет. Атомарный захват обеспечивает частичный уникальный
// индекс (page_id, slot): Claim вставляет запись и при нарушении индекса
// переходит к следующему свободному кандидату. Автоматический выбор —
// наименьший свободный слот, поэтому нижние слоты конкурентны первыми.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/repository"
)

var (
	slotClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bm_slot_claims_total",
		Help: "Количество захватов слотов по способу размещения и результату.",
	}, []string{"kind", "result"})
	slotClaimConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bm_slot_claim_conflicts_total",
		Help: "Количество гонок за слот, перехваченных уникальным индексом.",
	})
)

// SlotStore — источник занятости слотов.
type SlotStore interface {
	OccupiedSlots(ctx context.Context, pageID string) ([]int, error)
}

// Allocation — выбранный слот и его цена.
type Allocation struct {
	Slot  int
	Price int64
}

// ClaimFunc сохраняет запись в выбранном слоте.
// Должна возвращать repository.ErrSlotTaken, если слот занят конкурентом.
type ClaimFunc func(Allocation) error

// SlotAllocator — выдача слотов.
type SlotAllocator struct {
	slots  SlotStore
	prices *PriceResolver
	logger *slog.Logger
}

// NewSlotAllocator создаёт SlotAllocator.
func NewSlotAllocator(slots SlotStore, prices *PriceResolver, logger *slog.Logger) *SlotAllocator {
	return &SlotAllocator{
		slots:  slots,
		prices: prices,
		logger: logger.With(slog.String("component", "slot_allocator")),
	}
}

// Occupied возвращает множество занятых слотов страницы.
// Несуществующая страница — пустое множество.
func (a *SlotAllocator) Occupied(ctx context.Context, pageID string) (map[int]bool, error) {
	slots, err := a.slots.OccupiedSlots(ctx, pageID)
	if err != nil {
		return nil, storageError("получение занятых слотов", err)
	}
	occupied := make(map[int]bool, len(slots))
	for _, s := range slots {
		occupied[s] = true
	}
	return occupied, nil
}

// freeSlots возвращает свободные слоты по возрастанию.
func freeSlots(occupied map[int]bool) []int {
	free := make([]int, 0, model.MaxSlot-len(occupied))
	for s := model.MinSlot; s <= model.MaxSlot; s++ {
		if !occupied[s] {
			free = append(free, s)
		}
	}
	return free
}

func validatePreferred(preferred *int) error {
	if preferred != nil && !model.ValidSlot(*preferred) {
		return fmt.Errorf("%w: %d", ErrSlotRangeInvalid, *preferred)
	}
	return nil
}

// Allocate выбирает слот без захвата (котировка).
// ErrSlotRangeInvalid, ErrSlotOccupied, ErrPoolExhausted.
func (a *SlotAllocator) Allocate(ctx context.Context, pageID string, kind model.PublishKind, preferred *int) (Allocation, error) {
	if err := validatePreferred(preferred); err != nil {
		return Allocation{}, err
	}

	occupied, err := a.Occupied(ctx, pageID)
	if err != nil {
		return Allocation{}, err
	}

	var slot int
	if preferred != nil {
		if occupied[*preferred] {
			return Allocation{}, fmt.Errorf("%w: %d", ErrSlotOccupied, *preferred)
		}
		slot = *preferred
	} else {
		free := freeSlots(occupied)
		if len(free) == 0 {
			return Allocation{}, ErrPoolExhausted
		}
		slot = free[0]
	}

	price, err := a.prices.PriceFor(ctx, pageID, slot, kind)
	if err != nil {
		return Allocation{}, err
	}
	return Allocation{Slot: slot, Price: price}, nil
}

// Claim выбирает слот и сохраняет запись через claim.
//
// Желаемый слот: занят (по чтению или по индексу) — ErrSlotOccupied.
// Автоматический выбор: свободные слоты перебираются по возрастанию,
// слот, перехваченный конкурентом, пропускается; кандидаты кончились —
// ErrPoolExhausted. Прочие ошибки claim возвращаются без изменений.
func (a *SlotAllocator) Claim(ctx context.Context, pageID string, kind model.PublishKind, preferred *int, claim ClaimFunc) (Allocation, error) {
	if err := validatePreferred(preferred); err != nil {
		return Allocation{}, err
	}

	occupied, err := a.Occupied(ctx, pageID)
	if err != nil {
		return Allocation{}, err
	}

	if preferred != nil {
		if occupied[*preferred] {
			slotClaimsTotal.WithLabelValues(string(kind), "occupied").Inc()
			return Allocation{}, fmt.Errorf("%w: %d", ErrSlotOccupied, *preferred)
		}
		alloc, err := a.claimSlot(ctx, pageID, kind, *preferred, claim)
		if errors.Is(err, repository.ErrSlotTaken) {
			slotClaimConflictsTotal.Inc()
			slotClaimsTotal.WithLabelValues(string(kind), "occupied").Inc()
			return Allocation{}, fmt.Errorf("%w: %d", ErrSlotOccupied, *preferred)
		}
		if err != nil {
			return Allocation{}, err
		}
		slotClaimsTotal.WithLabelValues(string(kind), "ok").Inc()
		return alloc, nil
	}

	for _, slot := range freeSlots(occupied) {
		if err := ctx.Err(); err != nil {
			return Allocation{}, storageError("захват слота прерван", err)
		}
		alloc, err := a.claimSlot(ctx, pageID, kind, slot, claim)
		if errors.Is(err, repository.ErrSlotTaken) {
			slotClaimConflictsTotal.Inc()
			a.logger.Debug("Слот перехвачен конкурентом, следующий кандидат",
				slog.String("page_id", pageID),
				slog.Int("slot", slot),
			)
			continue
		}
		if err != nil {
			return Allocation{}, err
		}
		slotClaimsTotal.WithLabelValues(string(kind), "ok").Inc()
		return alloc, nil
	}

	slotClaimsTotal.WithLabelValues(string(kind), "exhausted").Inc()
	return Allocation{}, ErrPoolExhausted
}

func (a *SlotAllocator) claimSlot(ctx context.Context, pageID string, kind model.PublishKind, slot int, claim ClaimFunc) (Allocation, error) {
	price, err := a.prices.PriceFor(ctx, pageID, slot, kind)
	if err != nil {
		return Allocation{}, err
	}
	alloc := Allocation{Slot: slot, Price: price}
	if err := claim(alloc); err != nil {
		return Allocation{}, err
	}
	return alloc, nil
}
