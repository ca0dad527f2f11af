// list.go — ListComposer: публичный список и promotion-список страницы.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/repository"
)

var listDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bm_list_duration_seconds",
	Help:    "Длительность построения списков статей.",
	Buckets: prometheus.DefBuckets,
}, []string{"mode"})

// ListStore — выборки, нужные для построения списков.
type ListStore interface {
	ListActive(ctx context.Context, f repository.ActiveFilter, limit, offset int) ([]*model.Article, error)
	CountActive(ctx context.Context, f repository.ActiveFilter) (int, error)
	ListByOwner(ctx context.Context, pageID, ownerID string, limit, offset int) ([]*model.Article, error)
	CountByOwner(ctx context.Context, pageID, ownerID string) (int, error)
}

// ListItem — статья с позицией отображения.
type ListItem struct {
	Article *model.Article
	// DisplaySlot — хранимый слот статьи
	DisplaySlot int
	// CompactedRank — непрерывный 1-based ранг в публичном списке
	CompactedRank int
	// DisplayRank — 1-based позиция в promotion-списке
	DisplayRank int
	// IsPromoted — статья вызывающего в promotion-списке
	IsPromoted bool
}

// ListResult — страница списка.
type ListResult struct {
	Items   []ListItem
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// ListComposer — построение списков статей страницы.
type ListComposer struct {
	store          ListStore
	scoreThreshold int
	logger         *slog.Logger
}

// NewListComposer создаёт ListComposer.
// scoreThreshold — минимальный score статьи в публичном списке.
func NewListComposer(store ListStore, scoreThreshold int, logger *slog.Logger) *ListComposer {
	return &ListComposer{
		store:          store,
		scoreThreshold: scoreThreshold,
		logger:         logger.With(slog.String("component", "list_composer")),
	}
}

// Default возвращает опубликованные статьи по возрастанию слота.
// CompactedRank не зависит от пропусков в слотах.
func (c *ListComposer) Default(ctx context.Context, pageID string, limit, offset int) (*ListResult, error) {
	defer observeList("default", time.Now())

	f := repository.ActiveFilter{PageID: pageID, MinScore: c.scoreThreshold}

	articles, err := c.store.ListActive(ctx, f, limit, offset)
	if err != nil {
		return nil, storageError("получение списка статей", err)
	}
	total, err := c.store.CountActive(ctx, f)
	if err != nil {
		return nil, storageError("подсчёт статей", err)
	}

	items := make([]ListItem, 0, len(articles))
	for i, a := range articles {
		items = append(items, ListItem{
			Article:       a,
			DisplaySlot:   a.Slot,
			CompactedRank: offset + i + 1,
		})
	}

	return newListResult(items, total, limit, offset), nil
}

// Promotion возвращает список для вызывающего: сначала его неудалённые
// статьи (новые первыми), затем опубликованные статьи остальных авторов
// по возрастанию слота. Пагинация применяется к объединённому списку.
func (c *ListComposer) Promotion(ctx context.Context, pageID, callerID string, limit, offset int) (*ListResult, error) {
	defer observeList("promotion", time.Now())

	ownTotal, err := c.store.CountByOwner(ctx, pageID, callerID)
	if err != nil {
		return nil, storageError("подсчёт статей автора", err)
	}

	others := repository.ActiveFilter{PageID: pageID, MinScore: c.scoreThreshold, ExcludeOwner: &callerID}
	othersTotal, err := c.store.CountActive(ctx, others)
	if err != nil {
		return nil, storageError("подсчёт статей", err)
	}

	var window []*model.Article
	if offset < ownTotal {
		own, err := c.store.ListByOwner(ctx, pageID, callerID, limit, offset)
		if err != nil {
			return nil, storageError("получение статей автора", err)
		}
		window = append(window, own...)
	}

	if remaining := limit - len(window); remaining > 0 {
		othersOffset := max(0, offset-ownTotal)
		rest, err := c.store.ListActive(ctx, others, remaining, othersOffset)
		if err != nil {
			return nil, storageError("получение списка статей", err)
		}
		window = append(window, rest...)
	}

	items := make([]ListItem, 0, len(window))
	for i, a := range window {
		items = append(items, ListItem{
			Article:     a,
			DisplaySlot: a.Slot,
			DisplayRank: offset + i + 1,
			IsPromoted:  a.OwnerID == callerID,
		})
	}

	return newListResult(items, ownTotal+othersTotal, limit, offset), nil
}

func newListResult(items []ListItem, total, limit, offset int) *ListResult {
	return &ListResult{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	}
}

func observeList(mode string, start time.Time) {
	listDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
