package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
)

// ArticleRepository — интерфейс доступа к таблице articles.
type ArticleRepository interface {
	// Create вставляет статью и присваивает ей следующий promotionRank автора.
	// ErrSlotTaken — слот занят, ErrConflict — дубликат id.
	Create(ctx context.Context, a *model.Article) error
	// GetByID возвращает статью по id (включая удалённые).
	GetByID(ctx context.Context, id string) (*model.Article, error)
	// Exists проверяет, занят ли id какой-либо статьёй.
	Exists(ctx context.Context, id string) (bool, error)
	// OccupiedSlots возвращает слоты неудалённых статей страницы по возрастанию.
	OccupiedSlots(ctx context.Context, pageID string) ([]int, error)
	// UpdateContent обновляет title, body, attachments.
	UpdateContent(ctx context.Context, a *model.Article) error
	// UpdateState сохраняет состояние жизненного цикла, если статус в БД
	// всё ещё равен prev. Иначе ErrStateChanged.
	UpdateState(ctx context.Context, a *model.Article, prev model.Status) error
	// AdjustScore прибавляет delta к score неудалённой статьи и
	// записывает итог в a. ErrNotFound — статьи нет или она удалена.
	AdjustScore(ctx context.Context, a *model.Article, delta int) error
	// UpdateSlot переносит статью в другой слот. ErrSlotTaken — слот занят.
	UpdateSlot(ctx context.Context, a *model.Article) error
	// ListActive возвращает опубликованные статьи страницы по возрастанию слота.
	ListActive(ctx context.Context, f ActiveFilter, limit, offset int) ([]*model.Article, error)
	// CountActive возвращает количество опубликованных статей по фильтру.
	CountActive(ctx context.Context, f ActiveFilter) (int, error)
	// ListByOwner возвращает неудалённые статьи автора, новые первыми.
	ListByOwner(ctx context.Context, pageID, ownerID string, limit, offset int) ([]*model.Article, error)
	// CountByOwner возвращает количество неудалённых статей автора на странице.
	CountByOwner(ctx context.Context, pageID, ownerID string) (int, error)
}

// ActiveFilter — фильтр публичного списка.
type ActiveFilter struct {
	PageID string
	// MinScore — порог достаточности score
	MinScore int
	// ExcludeOwner — исключить статьи автора (для promotion-режима)
	ExcludeOwner *string
}

// articleColumns — порядок колонок совпадает с scanArticle.
var articleColumns = []string{
	"id", "page_id", "owner_id", "title", "body", "attachments",
	"publish_kind", "status", "review_status", "is_visible", "slot",
	"promotion_rank", "score", "price", "reject_reason",
	"created_at", "updated_at", "deleted_at",
}

// articleRepo — реализация ArticleRepository.
type articleRepo struct {
	db DBTX
}

// NewArticleRepository создаёт репозиторий статей.
func NewArticleRepository(db DBTX) ArticleRepository {
	return &articleRepo{db: db}
}

// scanArticle читает строку и нормализует reviewStatus старых записей.
func scanArticle(row pgx.Row) (*model.Article, error) {
	var (
		a            model.Article
		kind, status string
		review       *string
	)
	err := row.Scan(
		&a.ID, &a.PageID, &a.OwnerID, &a.Title, &a.Body, &a.Attachments,
		&kind, &status, &review, &a.IsVisible, &a.Slot,
		&a.PromotionRank, &a.Score, &a.Price, &a.RejectReason,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	a.PublishKind = model.PublishKind(kind)
	a.Status = model.Status(status)
	if review != nil {
		a.ReviewStatus = model.ReviewStatus(*review)
	}
	model.NormalizeReviewStatus(&a)
	return &a, nil
}

func (r *articleRepo) collect(ctx context.Context, query string, args []any) ([]*model.Article, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка статей: %w", err)
	}
	defer rows.Close()

	var result []*model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования статьи: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// mapWriteError переводит нарушение уникальности в ошибки слоя.
func mapWriteError(err error, op string) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case constraintLiveSlot:
			return ErrSlotTaken
		case constraintArticlePK:
			return fmt.Errorf("%w: статья с таким id уже существует", ErrConflict)
		default:
			return fmt.Errorf("%w: %s", ErrConflict, constraint)
		}
	}
	return fmt.Errorf("ошибка %s: %w", op, err)
}

func nullableReview(rs model.ReviewStatus) *string {
	if rs == "" {
		return nil
	}
	s := string(rs)
	return &s
}

// rankAttempts — сколько раз Create пересчитывает promotion_rank,
// если конкурентная вставка того же автора заняла значение.
const rankAttempts = 5

func (r *articleRepo) Create(ctx context.Context, a *model.Article) error {
	// promotion_rank вычисляется в том же выражении, что и вставка;
	// повтор значения отсекает uq_articles_page_owner_rank.
	query := `
		INSERT INTO articles (id, page_id, owner_id, title, body, attachments,
			publish_kind, status, review_status, is_visible, slot,
			promotion_rank, score, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			(SELECT COALESCE(MAX(promotion_rank), 0) + 1
			 FROM articles WHERE page_id = $2 AND owner_id = $3),
			$12, $13)
		RETURNING promotion_rank, created_at, updated_at`

	attachments := a.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	var err error
	for range rankAttempts {
		err = r.db.QueryRow(ctx, query,
			a.ID, a.PageID, a.OwnerID, a.Title, a.Body, attachments,
			string(a.PublishKind), string(a.Status), nullableReview(a.ReviewStatus), a.IsVisible, a.Slot,
			a.Score, a.Price,
		).Scan(&a.PromotionRank, &a.CreatedAt, &a.UpdatedAt)
		if constraint, ok := uniqueViolation(err); ok && constraint == constraintOwnerRank {
			continue
		}
		break
	}
	if err != nil {
		return mapWriteError(err, "создания статьи")
	}
	return nil
}

func (r *articleRepo) GetByID(ctx context.Context, id string) (*model.Article, error) {
	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	a, err := scanArticle(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения статьи: %w", err)
	}
	return a, nil
}

func (r *articleRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM articles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки id статьи: %w", err)
	}
	return exists, nil
}

func (r *articleRepo) OccupiedSlots(ctx context.Context, pageID string) ([]int, error) {
	query := `
		SELECT slot FROM articles
		WHERE page_id = $1 AND status <> 'deleted'
		ORDER BY slot`

	rows, err := r.db.Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения занятых слотов: %w", err)
	}
	defer rows.Close()

	var slots []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("ошибка сканирования слота: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *articleRepo) UpdateContent(ctx context.Context, a *model.Article) error {
	query := `
		UPDATE articles
		SET title = $2, body = $3, attachments = $4
		WHERE id = $1 AND status <> 'deleted'
		RETURNING updated_at`

	attachments := a.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	err := r.db.QueryRow(ctx, query, a.ID, a.Title, a.Body, attachments).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления статьи: %w", err)
	}
	return nil
}

func (r *articleRepo) UpdateState(ctx context.Context, a *model.Article, prev model.Status) error {
	query := `
		UPDATE articles
		SET status = $2, review_status = $3, is_visible = $4,
			reject_reason = $5, deleted_at = $6
		WHERE id = $1 AND status = $7
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, string(a.Status), nullableReview(a.ReviewStatus), a.IsVisible,
		a.RejectReason, a.DeletedAt, string(prev),
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStateChanged
		}
		return mapWriteError(err, "обновления состояния статьи")
	}
	return nil
}

func (r *articleRepo) AdjustScore(ctx context.Context, a *model.Article, delta int) error {
	query := `
		UPDATE articles
		SET score = score + $2
		WHERE id = $1 AND status <> 'deleted'
		RETURNING score, updated_at`

	err := r.db.QueryRow(ctx, query, a.ID, delta).Scan(&a.Score, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка изменения score: %w", err)
	}
	return nil
}

func (r *articleRepo) UpdateSlot(ctx context.Context, a *model.Article) error {
	query := `
		UPDATE articles
		SET slot = $2, price = $3
		WHERE id = $1 AND status <> 'deleted'
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, a.ID, a.Slot, a.Price).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return mapWriteError(err, "переноса статьи")
	}
	return nil
}

// activeWhere — условия публичного списка: active ∧ видима ∧ score достаточен.
func activeWhere(f ActiveFilter) sq.And {
	where := sq.And{
		sq.Eq{"page_id": f.PageID},
		sq.Eq{"status": string(model.StatusActive)},
		sq.Eq{"is_visible": true},
		sq.GtOrEq{"score": f.MinScore},
	}
	if f.ExcludeOwner != nil {
		where = append(where, sq.NotEq{"owner_id": *f.ExcludeOwner})
	}
	return where
}

func (r *articleRepo) ListActive(ctx context.Context, f ActiveFilter, limit, offset int) ([]*model.Article, error) {
	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(activeWhere(f)).
		OrderBy("slot ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	return r.collect(ctx, query, args)
}

func (r *articleRepo) CountActive(ctx context.Context, f ActiveFilter) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("articles").
		Where(activeWhere(f)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта статей: %w", err)
	}
	return count, nil
}

func ownerWhere(pageID, ownerID string) sq.And {
	return sq.And{
		sq.Eq{"page_id": pageID},
		sq.Eq{"owner_id": ownerID},
		sq.NotEq{"status": string(model.StatusDeleted)},
	}
}

func (r *articleRepo) ListByOwner(ctx context.Context, pageID, ownerID string, limit, offset int) ([]*model.Article, error) {
	query, args, err := psql.Select(articleColumns...).
		From("articles").
		Where(ownerWhere(pageID, ownerID)).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	return r.collect(ctx, query, args)
}

func (r *articleRepo) CountByOwner(ctx context.Context, pageID, ownerID string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("articles").
		Where(ownerWhere(pageID, ownerID)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта статей автора: %w", err)
	}
	return count, nil
}
