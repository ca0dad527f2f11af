package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/events"
	"github.com/bigkaa/goartstore/board-module/internal/repository"
)

// discardLogger — логгер без вывода для unit-тестов.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory ArticleRepository ---

// memArticles — in-memory реализация ArticleRepository.
// Повторяет ограничения БД: уникальность id и слота среди неудалённых статей.
type memArticles struct {
	mu    sync.Mutex
	byID  map[string]*model.Article
	clock time.Time

	// Хуки для внедрения ошибок и гонок
	beforeCreate func(a *model.Article) error
	failReads    error
}

func newMemArticles() *memArticles {
	return &memArticles{
		byID:  make(map[string]*model.Article),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memArticles) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func clone(a *model.Article) *model.Article {
	c := *a
	c.Attachments = append([]string(nil), a.Attachments...)
	return &c
}

func (m *memArticles) slotTakenLocked(pageID string, slot int, exceptID string) bool {
	for _, a := range m.byID {
		if a.PageID == pageID && a.Slot == slot && a.Status != model.StatusDeleted && a.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *memArticles) Create(_ context.Context, a *model.Article) error {
	if m.beforeCreate != nil {
		if err := m.beforeCreate(a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[a.ID]; ok {
		return repository.ErrConflict
	}
	if a.Status != model.StatusDeleted && m.slotTakenLocked(a.PageID, a.Slot, "") {
		return repository.ErrSlotTaken
	}
	a.PromotionRank = m.nextRankLocked(a.PageID, a.OwnerID)
	now := m.tick()
	a.CreatedAt, a.UpdatedAt = now, now
	m.byID[a.ID] = clone(a)
	return nil
}

// put сохраняет статью напрямую, минуя проверки (подготовка данных).
func (m *memArticles) put(a *model.Article) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.CreatedAt.IsZero() {
		now := m.tick()
		a.CreatedAt, a.UpdatedAt = now, now
	}
	m.byID[a.ID] = clone(a)
}

func (m *memArticles) GetByID(_ context.Context, id string) (*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return nil, m.failReads
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := clone(a)
	model.NormalizeReviewStatus(c)
	return c, nil
}

func (m *memArticles) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id]
	return ok, nil
}

func (m *memArticles) OccupiedSlots(_ context.Context, pageID string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return nil, m.failReads
	}
	var slots []int
	for _, a := range m.byID {
		if a.PageID == pageID && a.Status != model.StatusDeleted {
			slots = append(slots, a.Slot)
		}
	}
	sort.Ints(slots)
	return slots, nil
}

func (m *memArticles) nextRankLocked(pageID, ownerID string) int {
	rank := 0
	for _, a := range m.byID {
		if a.PageID == pageID && a.OwnerID == ownerID && a.PromotionRank > rank {
			rank = a.PromotionRank
		}
	}
	return rank + 1
}

func (m *memArticles) UpdateContent(_ context.Context, a *model.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[a.ID]
	if !ok || cur.Status == model.StatusDeleted {
		return repository.ErrNotFound
	}
	cur.Title, cur.Body = a.Title, a.Body
	cur.Attachments = append([]string(nil), a.Attachments...)
	cur.UpdatedAt = m.tick()
	a.UpdatedAt = cur.UpdatedAt
	return nil
}

func (m *memArticles) UpdateState(_ context.Context, a *model.Article, prev model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[a.ID]
	if !ok || cur.Status != prev {
		return repository.ErrStateChanged
	}
	if a.Status != model.StatusDeleted && m.slotTakenLocked(cur.PageID, cur.Slot, a.ID) {
		return repository.ErrSlotTaken
	}
	cur.Status, cur.ReviewStatus, cur.IsVisible = a.Status, a.ReviewStatus, a.IsVisible
	cur.RejectReason, cur.DeletedAt = a.RejectReason, a.DeletedAt
	cur.UpdatedAt = m.tick()
	a.UpdatedAt = cur.UpdatedAt
	return nil
}

func (m *memArticles) AdjustScore(_ context.Context, a *model.Article, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[a.ID]
	if !ok || cur.Status == model.StatusDeleted {
		return repository.ErrNotFound
	}
	cur.Score += delta
	cur.UpdatedAt = m.tick()
	a.Score, a.UpdatedAt = cur.Score, cur.UpdatedAt
	return nil
}

func (m *memArticles) UpdateSlot(_ context.Context, a *model.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[a.ID]
	if !ok || cur.Status == model.StatusDeleted {
		return repository.ErrNotFound
	}
	if m.slotTakenLocked(cur.PageID, a.Slot, a.ID) {
		return repository.ErrSlotTaken
	}
	cur.Slot, cur.Price = a.Slot, a.Price
	cur.UpdatedAt = m.tick()
	return nil
}

func (m *memArticles) filterActive(f repository.ActiveFilter) []*model.Article {
	var out []*model.Article
	for _, a := range m.byID {
		if a.PageID != f.PageID || !a.Listed(f.MinScore) {
			continue
		}
		if f.ExcludeOwner != nil && a.OwnerID == *f.ExcludeOwner {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

func (m *memArticles) filterOwner(pageID, ownerID string) []*model.Article {
	var out []*model.Article
	for _, a := range m.byID {
		if a.PageID == pageID && a.OwnerID == ownerID && a.Status != model.StatusDeleted {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func window(list []*model.Article, limit, offset int) []*model.Article {
	if offset >= len(list) {
		return nil
	}
	end := min(offset+limit, len(list))
	return list[offset:end]
}

func (m *memArticles) ListActive(_ context.Context, f repository.ActiveFilter, limit, offset int) ([]*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return nil, m.failReads
	}
	return window(m.filterActive(f), limit, offset), nil
}

func (m *memArticles) CountActive(_ context.Context, f repository.ActiveFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return 0, m.failReads
	}
	return len(m.filterActive(f)), nil
}

func (m *memArticles) ListByOwner(_ context.Context, pageID, ownerID string, limit, offset int) ([]*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return nil, m.failReads
	}
	return window(m.filterOwner(pageID, ownerID), limit, offset), nil
}

func (m *memArticles) CountByOwner(_ context.Context, pageID, ownerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return 0, m.failReads
	}
	return len(m.filterOwner(pageID, ownerID)), nil
}

// liveSlots возвращает слоты неудалённых статей страницы с повторами.
func (m *memArticles) liveSlots(pageID string) []int {
	slots, _ := m.OccupiedSlots(context.Background(), pageID)
	return slots
}

// --- Stats ---

type mockStats struct {
	mu     sync.Mutex
	initFn func(ctx context.Context, articleID string) error
	calls  int
}

func (m *mockStats) Init(ctx context.Context, articleID string) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.initFn != nil {
		return m.initFn(ctx, articleID)
	}
	return nil
}

// --- PriceOverrideRepository ---

type memPrices struct {
	mu        sync.Mutex
	overrides map[string]map[int]*model.PriceOverride
	failAll   error
}

func newMemPrices() *memPrices {
	return &memPrices{overrides: make(map[string]map[int]*model.PriceOverride)}
}

func (m *memPrices) Get(_ context.Context, pageID string, slot int) (*model.PriceOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	o, ok := m.overrides[pageID][slot]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *memPrices) ListByPage(_ context.Context, pageID string) ([]*model.PriceOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []*model.PriceOverride
	for _, o := range m.overrides[pageID] {
		c := *o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (m *memPrices) UpsertBatch(_ context.Context, batch []*model.PriceOverride) (added, updated int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return 0, 0, m.failAll
	}
	for _, o := range batch {
		page := m.overrides[o.PageID]
		if page == nil {
			page = make(map[int]*model.PriceOverride)
			m.overrides[o.PageID] = page
		}
		if _, ok := page[o.Slot]; ok {
			updated++
		} else {
			added++
		}
		c := *o
		page[o.Slot] = &c
	}
	return added, updated, nil
}

func (m *memPrices) Delete(_ context.Context, pageID string, slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.overrides[pageID][slot]; !ok {
		return repository.ErrNotFound
	}
	delete(m.overrides[pageID], slot)
	return nil
}

// --- Membership ---

type mockMembership struct {
	members map[string]bool // ключ pageID|callerID
	err     error
}

func (m *mockMembership) IsActiveMember(_ context.Context, pageID, callerID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.members[pageID+"|"+callerID], nil
}

// --- Publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// --- Сборка сервиса ---

type fixture struct {
	articles   *memArticles
	prices     *memPrices
	stats      *mockStats
	membership *mockMembership
	publisher  *recordingPublisher
	resolver   *PriceResolver
	allocator  *SlotAllocator
	svc        *PublishingService
	lists      *ListComposer
}

func newFixture() *fixture {
	f := &fixture{
		articles:   newMemArticles(),
		prices:     newMemPrices(),
		stats:      &mockStats{},
		membership: &mockMembership{members: map[string]bool{}},
		publisher:  &recordingPublisher{},
	}
	logger := discardLogger()
	f.resolver = NewPriceResolver(f.prices, "default", logger)
	f.allocator = NewSlotAllocator(f.articles, f.resolver, logger)
	minter := NewIdentifierMinter(f.articles, 0, logger)
	f.svc = NewPublishingService(f.articles, f.stats, minter, f.allocator, f.membership, f.publisher, logger)
	f.lists = NewListComposer(f.articles, 1, logger)
	return f
}

var errBackend = errors.New("connection refused")

func intPtr(v int) *int { return &v }
