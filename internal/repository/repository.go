// Пакет repository — слой доступа к данным PostgreSQL.
// Запросы — SQL через pgx; динамические выборки строятся squirrel.
package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrSlotTaken — слот уже занят неудалённой статьёй страницы.
	ErrSlotTaken = errors.New("слот уже занят")
	// ErrStateChanged — статус статьи изменился после чтения.
	ErrStateChanged = errors.New("статус статьи изменился")
)

// Имена ограничений, нарушение которых различается сервисным слоем.
const (
	constraintArticlePK = "articles_pkey"
	constraintLiveSlot  = "uq_articles_page_slot_live"
	constraintOwnerRank = "uq_articles_page_owner_rank"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// psql — построитель запросов с плейсхолдерами PostgreSQL ($1, $2, ...).
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// uniqueViolation возвращает имя нарушенного ограничения уникальности
// или пустую строку, если ошибка не является unique_violation.
func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
