package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
)

// PriceOverrideRepository — интерфейс доступа к таблице price_overrides.
type PriceOverrideRepository interface {
	// Get возвращает переопределение цены слота или ErrNotFound.
	Get(ctx context.Context, pageID string, slot int) (*model.PriceOverride, error)
	// ListByPage возвращает все переопределения страницы по возрастанию слота.
	ListByPage(ctx context.Context, pageID string) ([]*model.PriceOverride, error)
	// UpsertBatch вставляет или обновляет переопределения (идемпотентно по (page_id, slot)).
	UpsertBatch(ctx context.Context, overrides []*model.PriceOverride) (added, updated int, err error)
	// Delete удаляет переопределение. ErrNotFound — его не было.
	Delete(ctx context.Context, pageID string, slot int) error
}

// priceOverrideRepo — реализация PriceOverrideRepository.
type priceOverrideRepo struct {
	db DBTX
}

// NewPriceOverrideRepository создаёт репозиторий переопределений цен.
func NewPriceOverrideRepository(db DBTX) PriceOverrideRepository {
	return &priceOverrideRepo{db: db}
}

func (r *priceOverrideRepo) Get(ctx context.Context, pageID string, slot int) (*model.PriceOverride, error) {
	query := `
		SELECT page_id, slot, price, updated_by, created_at, updated_at
		FROM price_overrides
		WHERE page_id = $1 AND slot = $2`

	o := &model.PriceOverride{}
	err := r.db.QueryRow(ctx, query, pageID, slot).Scan(
		&o.PageID, &o.Slot, &o.Price, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения цены слота: %w", err)
	}
	return o, nil
}

func (r *priceOverrideRepo) ListByPage(ctx context.Context, pageID string) ([]*model.PriceOverride, error) {
	query := `
		SELECT page_id, slot, price, updated_by, created_at, updated_at
		FROM price_overrides
		WHERE page_id = $1
		ORDER BY slot`

	rows, err := r.db.Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения цен страницы: %w", err)
	}
	defer rows.Close()

	var result []*model.PriceOverride
	for rows.Next() {
		o := &model.PriceOverride{}
		if err := rows.Scan(&o.PageID, &o.Slot, &o.Price, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования цены: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// UpsertBatch отправляет все upsert одним pgx.Batch.
// Возвращает количество добавленных и обновлённых записей.
func (r *priceOverrideRepo) UpsertBatch(ctx context.Context, overrides []*model.PriceOverride) (added, updated int, err error) {
	if len(overrides) == 0 {
		return 0, 0, nil
	}

	query := `
		INSERT INTO price_overrides (page_id, slot, price, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (page_id, slot) DO UPDATE SET
			price = EXCLUDED.price,
			updated_by = EXCLUDED.updated_by
		RETURNING (xmax = 0) AS is_insert, created_at, updated_at`

	batch := &pgx.Batch{}
	for _, o := range overrides {
		batch.Queue(query, o.PageID, o.Slot, o.Price, o.UpdatedBy)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for _, o := range overrides {
		var isInsert bool
		if err := br.QueryRow().Scan(&isInsert, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return added, updated, fmt.Errorf("ошибка upsert цены слота %d: %w", o.Slot, err)
		}
		if isInsert {
			added++
		} else {
			updated++
		}
	}
	return added, updated, nil
}

func (r *priceOverrideRepo) Delete(ctx context.Context, pageID string, slot int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM price_overrides WHERE page_id = $1 AND slot = $2`, pageID, slot)
	if err != nil {
		return fmt.Errorf("ошибка удаления цены слота: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
