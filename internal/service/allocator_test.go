package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/repository"
)

func occupy(f *fixture, pageID string, slots ...int) {
	for i, s := range slots {
		f.articles.put(&model.Article{
			ID:          "OCC" + string(rune('A'+i)) + pageID,
			PageID:      pageID,
			OwnerID:     "other",
			PublishKind: model.PublishKindPaid,
			Status:      model.StatusActive,
			Slot:        s,
		})
	}
}

func TestAllocate_EmptyPage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	paid, err := f.allocator.Allocate(ctx, "page-1", model.PublishKindPaid, nil)
	if err != nil {
		t.Fatalf("Allocate(paid) ошибка: %v", err)
	}
	if paid.Slot != 1 || paid.Price != 150 {
		t.Errorf("paid: %+v, ожидалось слот 1, цена 150", paid)
	}

	partner, err := f.allocator.Allocate(ctx, "page-1", model.PublishKindPartner, nil)
	if err != nil {
		t.Fatalf("Allocate(partner) ошибка: %v", err)
	}
	if partner.Slot != 1 || partner.Price != 0 {
		t.Errorf("partner: %+v, ожидалось слот 1, цена 0", partner)
	}
}

func TestAllocate_LowestFree(t *testing.T) {
	f := newFixture()
	occupy(f, "page-1", 1, 2, 4)

	got, err := f.allocator.Allocate(context.Background(), "page-1", model.PublishKindPaid, nil)
	if err != nil {
		t.Fatalf("Allocate() ошибка: %v", err)
	}
	if got.Slot != 3 {
		t.Errorf("слот = %d, ожидалось 3", got.Slot)
	}
}

func TestAllocate_Errors(t *testing.T) {
	f := newFixture()
	occupy(f, "page-1", 5)
	ctx := context.Background()

	tests := []struct {
		name      string
		preferred *int
		want      error
		code      string
	}{
		{"слот 0", intPtr(0), ErrSlotRangeInvalid, "SLOT_RANGE_INVALID"},
		{"слот 61", intPtr(61), ErrSlotRangeInvalid, "SLOT_RANGE_INVALID"},
		{"занятый слот", intPtr(5), ErrSlotOccupied, "SLOT_OCCUPIED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.allocator.Allocate(ctx, "page-1", model.PublishKindPaid, tt.preferred)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ожидалась %v, получено: %v", tt.want, err)
			}
			if CodeOf(err) != tt.code {
				t.Errorf("CodeOf = %s, ожидалось %s", CodeOf(err), tt.code)
			}
		})
	}
}

func TestAllocate_PoolExhausted(t *testing.T) {
	f := newFixture()
	all := make([]int, 0, model.MaxSlot)
	for s := model.MinSlot; s <= model.MaxSlot; s++ {
		all = append(all, s)
	}
	occupy(f, "page-1", all...)

	_, err := f.allocator.Allocate(context.Background(), "page-1", model.PublishKindPartner, nil)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("ожидалась ErrPoolExhausted, получено: %v", err)
	}
	if KindOf(err) != KindConflict {
		t.Errorf("KindOf = %s, ожидалось CONFLICT", KindOf(err))
	}
}

func TestAllocate_StorageError(t *testing.T) {
	f := newFixture()
	f.articles.failReads = errBackend

	_, err := f.allocator.Allocate(context.Background(), "page-1", model.PublishKindPaid, nil)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("ожидалась ErrStorageUnavailable, получено: %v", err)
	}
}

func TestClaim_SkipsSlotTakenByRace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var tried []int
	got, err := f.allocator.Claim(ctx, "page-1", model.PublishKindPaid, nil, func(al Allocation) error {
		tried = append(tried, al.Slot)
		// Конкурент успел занять слоты 1 и 2 после чтения занятости
		if al.Slot < 3 {
			return repository.ErrSlotTaken
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Claim() ошибка: %v", err)
	}
	if got.Slot != 3 || got.Price != 150 {
		t.Errorf("Claim() = %+v, ожидалось слот 3, цена 150", got)
	}
	if len(tried) != 3 {
		t.Errorf("попыток = %v, ожидалось [1 2 3]", tried)
	}
}

func TestClaim_PreferredTakenByRace(t *testing.T) {
	f := newFixture()

	_, err := f.allocator.Claim(context.Background(), "page-1", model.PublishKindPaid, intPtr(5), func(Allocation) error {
		return repository.ErrSlotTaken
	})
	if !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("ожидалась ErrSlotOccupied, получено: %v", err)
	}
}

func TestClaim_AllCandidatesTaken(t *testing.T) {
	f := newFixture()

	_, err := f.allocator.Claim(context.Background(), "page-1", model.PublishKindPartner, nil, func(Allocation) error {
		return repository.ErrSlotTaken
	})
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("ожидалась ErrPoolExhausted, получено: %v", err)
	}
}

func TestClaim_OtherErrorReturned(t *testing.T) {
	f := newFixture()

	_, err := f.allocator.Claim(context.Background(), "page-1", model.PublishKindPaid, nil, func(Allocation) error {
		return errBackend
	})
	if !errors.Is(err, errBackend) {
		t.Fatalf("ожидалась исходная ошибка, получено: %v", err)
	}
}

// Параллельные публикации без желаемого слота получают разные слоты.
func TestCreate_ConcurrentDistinctSlots(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	author := Caller{ID: "author-1"}

	const n = 30
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, author, CreateInput{
				PageID: "page-1", Title: "Статья", PublishKind: model.PublishKindPaid,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Create() ошибка: %v", err)
		}
	}

	slots := f.articles.liveSlots("page-1")
	if len(slots) != n {
		t.Fatalf("статей = %d, ожидалось %d", len(slots), n)
	}
	for i, s := range slots {
		if s != i+1 {
			t.Fatalf("слоты %v, ожидалось 1..%d без повторов", slots, n)
		}
	}
}

func TestClaim_ContextCanceled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	claimed := false
	_, err := f.allocator.Claim(ctx, "page-1", model.PublishKindPaid, nil, func(Allocation) error {
		claimed = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || KindOf(err) != KindStorageUnavailable {
		t.Fatalf("ожидалась прерванная операция STORAGE_UNAVAILABLE, получено: %v", err)
	}
	if claimed {
		t.Error("слот не должен захватываться после отмены контекста")
	}
}
