// minter.go — выпуск коротких публичных идентификаторов статей.
//
// Кандидат: первые 8 hex-символов SHA-256 от pageID|ownerID|UnixNano|nonce
// в верхнем регистре. При коллизии — пауза и повтор со свежим nonce.
// Окно «проверка → вставка» не атомарно; вставка с дубликатом id
// дополнительно перехватывается PublishingService.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MintAttempts — максимальное число попыток выпуска идентификатора.
	MintAttempts = 5
	// idLength — длина публичного идентификатора.
	idLength = 8
)

var (
	mintRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bm_mint_retries_total",
		Help: "Количество повторов выпуска идентификатора из-за коллизий.",
	})
	mintExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bm_mint_exhausted_total",
		Help: "Количество отказов выпуска идентификатора после всех попыток.",
	})
)

// IDChecker — проверка занятости идентификатора.
type IDChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// IdentifierMinter — генератор идентификаторов статей.
type IdentifierMinter struct {
	ids    IDChecker
	delay  time.Duration
	now    func() time.Time
	nonce  func() string
	logger *slog.Logger
}

// NewIdentifierMinter создаёт генератор с паузой delay между попытками.
func NewIdentifierMinter(ids IDChecker, delay time.Duration, logger *slog.Logger) *IdentifierMinter {
	return &IdentifierMinter{
		ids:    ids,
		delay:  delay,
		now:    time.Now,
		nonce:  uuid.NewString,
		logger: logger.With(slog.String("component", "identifier_minter")),
	}
}

// candidateID вычисляет кандидата из исходных компонентов.
func candidateID(pageID, ownerID string, ts time.Time, nonce string) string {
	src := strings.Join([]string{pageID, ownerID, strconv.FormatInt(ts.UnixNano(), 10), nonce}, "|")
	sum := sha256.Sum256([]byte(src))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:idLength])
}

// Mint выпускает идентификатор, не занятый ни одной статьёй.
// ErrIdentifierExhausted — после MintAttempts коллизий.
func (m *IdentifierMinter) Mint(ctx context.Context, pageID, ownerID string) (string, error) {
	for attempt := 1; attempt <= MintAttempts; attempt++ {
		id := candidateID(pageID, ownerID, m.now(), m.nonce())

		taken, err := m.ids.Exists(ctx, id)
		if err != nil {
			return "", storageError("проверка идентификатора", err)
		}
		if !taken {
			return id, nil
		}

		mintRetriesTotal.Inc()
		m.logger.Debug("Коллизия идентификатора, повтор",
			slog.String("id", id),
			slog.Int("attempt", attempt),
		)

		if attempt == MintAttempts {
			break
		}
		if err := sleepCtx(ctx, m.delay); err != nil {
			return "", storageError("выпуск идентификатора прерван", err)
		}
	}

	mintExhaustedTotal.Inc()
	m.logger.Warn("Исчерпаны попытки выпуска идентификатора",
		slog.String("page_id", pageID),
		slog.Int("attempts", MintAttempts),
	)
	return "", ErrIdentifierExhausted
}

// sleepCtx ждёт d или отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
