package repository

import (
	"context"
	"fmt"
)

// StatsRepository — интерфейс доступа к таблице article_stats.
type StatsRepository interface {
	// Init создаёт нулевую строку статистики статьи. Повторный вызов — no-op.
	Init(ctx context.Context, articleID string) error
}

type statsRepo struct {
	db DBTX
}

// NewStatsRepository создаёт репозиторий статистики статей.
func NewStatsRepository(db DBTX) StatsRepository {
	return &statsRepo{db: db}
}

func (r *statsRepo) Init(ctx context.Context, articleID string) error {
	query := `
		INSERT INTO article_stats (article_id)
		VALUES ($1)
		ON CONFLICT (article_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, articleID); err != nil {
		return fmt.Errorf("ошибка инициализации статистики: %w", err)
	}
	return nil
}
