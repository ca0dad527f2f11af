// Пакет model — доменные сущности доски публикаций.
package model

import "time"

// Диапазон слотов на странице.
const (
	MinSlot = 1
	MaxSlot = 60
)

// InitialScore — стартовый score новой статьи (достаточный для показа).
const InitialScore = 100

// PublishKind — способ размещения статьи.
type PublishKind string

const (
	// PublishKindPartner — бесплатное размещение для участников страницы, с модерацией.
	PublishKindPartner PublishKind = "partner"
	// PublishKindPaid — платное размещение, без модерации.
	PublishKindPaid PublishKind = "paid"
)

// Valid проверяет, что значение входит в перечисление.
func (k PublishKind) Valid() bool {
	return k == PublishKindPartner || k == PublishKindPaid
}

// Status — состояние жизненного цикла статьи.
type Status string

const (
	// StatusPendingPayment — платная статья ждёт подтверждения оплаты, слот зарезервирован.
	StatusPendingPayment Status = "pending_payment"
	// StatusPending — ожидает модерации.
	StatusPending Status = "pending"
	// StatusActive — опубликована.
	StatusActive Status = "active"
	// StatusRejected — отклонена модератором.
	StatusRejected Status = "rejected"
	// StatusDeleted — мягко удалена, слот свободен.
	StatusDeleted Status = "deleted"
)

// ReviewStatus — результат модерации.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Article — статья, занимающая слот на странице.
// Хранится в таблице articles.
type Article struct {
	// ID — короткий публичный идентификатор (8 символов, верхний регистр)
	ID string
	// PageID — страница (доска), на которой размещена статья
	PageID string
	// OwnerID — идентификатор автора (sub из JWT)
	OwnerID string
	Title   string
	Body    string
	// Attachments — ссылки на вложения, содержимое не интерпретируется
	Attachments []string
	PublishKind PublishKind
	Status      Status
	// ReviewStatus — пустая строка у старых записей до нормализации
	ReviewStatus ReviewStatus
	IsVisible    bool
	// Slot — позиция 1..60, уникальна среди неудалённых статей страницы
	Slot int
	// PromotionRank — порядковый номер статьи автора на странице
	PromotionRank int
	Score         int
	// Price — цена слота на момент размещения
	Price        int64
	RejectReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// ValidSlot проверяет, что слот входит в диапазон [MinSlot, MaxSlot].
func ValidSlot(slot int) bool {
	return slot >= MinSlot && slot <= MaxSlot
}

// InferReviewStatus выводит reviewStatus из status для записей без явного значения.
func InferReviewStatus(s Status) ReviewStatus {
	switch s {
	case StatusActive:
		return ReviewApproved
	case StatusRejected:
		return ReviewRejected
	default:
		return ReviewPending
	}
}

// NormalizeReviewStatus заполняет ReviewStatus у записей, созданных до появления поля.
// Применяется ко всем путям чтения; явное значение не перезаписывается.
func NormalizeReviewStatus(a *Article) {
	if a == nil || a.ReviewStatus != "" {
		return
	}
	a.ReviewStatus = InferReviewStatus(a.Status)
}

// Listed проверяет, попадает ли статья в публичный список:
// active, видима и score не ниже порога.
func (a *Article) Listed(scoreThreshold int) bool {
	return a.Status == StatusActive && a.IsVisible && a.Score >= scoreThreshold
}

// OccupiesSlot — занимает ли статья слот (любой статус, кроме deleted).
func (a *Article) OccupiesSlot() bool {
	return a.Status != StatusDeleted
}
