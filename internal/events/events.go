// Пакет events — доменные события доски публикаций.
// Публикация best-effort: ошибка доставки логируется вызывающей стороной
// и не откатывает уже выполненную операцию.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type — тип доменного события.
type Type string

const (
	ArticleCreated          Type = "article.created"
	ArticleApproved         Type = "article.approved"
	ArticleRejected         Type = "article.rejected"
	ArticleDeleted          Type = "article.deleted"
	ArticleReslotted        Type = "article.reslotted"
	ArticlePaymentConfirmed Type = "article.payment_confirmed"
	ArticleScoreAdjusted    Type = "article.score_adjusted"
)

// Event — доменное событие статьи.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	ArticleID  string    `json:"article_id"`
	PageID     string    `json:"page_id"`
	OwnerID    string    `json:"owner_id"`
	ActorID    string    `json:"actor_id"`
	Slot       int       `json:"slot"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New создаёт событие с новым UUID и текущим временем.
func New(t Type, articleID, pageID, ownerID, actorID string, slot int, status string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		ArticleID:  articleID,
		PageID:     pageID,
		OwnerID:    ownerID,
		ActorID:    actorID,
		Slot:       slot,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher — получатель доменных событий.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher — публикатор по умолчанию, когда брокеры не заданы.
type NopPublisher struct{}

// Publish ничего не делает.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close ничего не делает.
func (NopPublisher) Close() error { return nil }
