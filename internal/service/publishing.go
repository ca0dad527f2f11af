// publishing.go — PublishingService: создание, изменение, модерация
// и удаление статей. Оркестрирует IdentifierMinter, SlotAllocator,
// PriceResolver и автомат статусов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bigkaa/goartstore/board-module/internal/domain/lifecycle"
	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/events"
	"github.com/bigkaa/goartstore/board-module/internal/repository"
)

const (
	maxTitleLength        = 200
	maxAttachments        = 20
	maxRejectReasonLength = 1000
)

// MembershipChecker — сервис членства страниц.
type MembershipChecker interface {
	IsActiveMember(ctx context.Context, pageID, callerID string) (bool, error)
}

// Caller — вызывающий операцию.
type Caller struct {
	// ID — стабильный идентификатор (sub из JWT)
	ID        string
	Moderator bool
}

// CreateInput — параметры создания статьи.
type CreateInput struct {
	PageID        string
	Title         string
	Body          string
	Attachments   []string
	PublishKind   model.PublishKind
	PreferredSlot *int
}

// ContentUpdate — изменяемые поля содержимого. nil — поле не меняется.
type ContentUpdate struct {
	Title       *string
	Body        *string
	Attachments *[]string
}

// PublishingService — операции над статьями.
type PublishingService struct {
	articles   repository.ArticleRepository
	stats      repository.StatsRepository
	minter     *IdentifierMinter
	allocator  *SlotAllocator
	membership MembershipChecker
	events     events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewPublishingService создаёт PublishingService.
func NewPublishingService(
	articles repository.ArticleRepository,
	stats repository.StatsRepository,
	minter *IdentifierMinter,
	allocator *SlotAllocator,
	membership MembershipChecker,
	publisher events.Publisher,
	logger *slog.Logger,
) *PublishingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PublishingService{
		articles:   articles,
		stats:      stats,
		minter:     minter,
		allocator:  allocator,
		membership: membership,
		events:     publisher,
		logger:     logger.With(slog.String("component", "publishing_service")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func validateContent(title string, attachments []string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title обязателен", ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("%w: title длиннее %d символов", ErrValidation, maxTitleLength)
	}
	if len(attachments) > maxAttachments {
		return fmt.Errorf("%w: не более %d вложений", ErrValidation, maxAttachments)
	}
	return nil
}

// Create создаёт статью: проверка членства (partner), выпуск id,
// захват слота, расчёт цены, начальный статус.
// Статистика и событие — best-effort после вставки.
func (s *PublishingService) Create(ctx context.Context, caller Caller, in CreateInput) (*model.Article, error) {
	if in.PageID == "" {
		return nil, fmt.Errorf("%w: pageId обязателен", ErrValidation)
	}
	if !in.PublishKind.Valid() {
		return nil, fmt.Errorf("%w: publishKind должен быть partner или paid", ErrValidation)
	}
	if err := validateContent(in.Title, in.Attachments); err != nil {
		return nil, err
	}
	if in.PreferredSlot != nil && !model.ValidSlot(*in.PreferredSlot) {
		return nil, fmt.Errorf("%w: %d", ErrSlotRangeInvalid, *in.PreferredSlot)
	}

	if in.PublishKind == model.PublishKindPartner {
		member, err := s.membership.IsActiveMember(ctx, in.PageID, caller.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMembershipUnavailable, err)
		}
		if !member {
			return nil, ErrNotMember
		}
	}

	init := lifecycle.Initial(in.PublishKind)
	a := &model.Article{
		PageID:        in.PageID,
		OwnerID:       caller.ID,
		Title:         strings.TrimSpace(in.Title),
		Body:          in.Body,
		Attachments:   in.Attachments,
		PublishKind:   in.PublishKind,
		Status:        init.Status,
		ReviewStatus:  init.ReviewStatus,
		IsVisible:     init.IsVisible,
		Score:         init.Score,
	}

	// Вставка с дубликатом id (гонка после проверки в Mint) — новый id
	for attempt := 1; ; attempt++ {
		id, err := s.minter.Mint(ctx, in.PageID, caller.ID)
		if err != nil {
			return nil, err
		}
		a.ID = id

		_, err = s.allocator.Claim(ctx, in.PageID, in.PublishKind, in.PreferredSlot, func(al Allocation) error {
			a.Slot = al.Slot
			a.Price = al.Price
			return s.articles.Create(ctx, a)
		})
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrConflict) {
			if attempt < MintAttempts {
				continue
			}
			return nil, ErrIdentifierExhausted
		}
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) || errors.Is(err, ErrStorageUnavailable) {
			return nil, err
		}
		return nil, storageError("создание статьи", err)
	}

	s.logger.Info("Статья создана",
		slog.String("article_id", a.ID),
		slog.String("page_id", a.PageID),
		slog.String("owner_id", a.OwnerID),
		slog.String("publish_kind", string(a.PublishKind)),
		slog.Int("slot", a.Slot),
		slog.Int64("price", a.Price),
	)

	if err := s.stats.Init(ctx, a.ID); err != nil {
		s.logger.Warn("Не удалось инициализировать статистику статьи",
			slog.String("article_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
	s.publish(ctx, events.ArticleCreated, a, caller.ID)

	return a, nil
}

// load возвращает статью или ErrNotFound.
func (s *PublishingService) load(ctx context.Context, id string) (*model.Article, error) {
	a, err := s.articles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: статья '%s'", ErrNotFound, id)
		}
		return nil, storageError("получение статьи", err)
	}
	return a, nil
}

func canManage(caller Caller, a *model.Article) bool {
	return caller.Moderator || caller.ID == a.OwnerID
}

// Get возвращает статью. Неопубликованные статьи видны только автору
// и модератору; удалённые — только модератору.
func (s *PublishingService) Get(ctx context.Context, caller Caller, id string) (*model.Article, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case caller.Moderator:
		return a, nil
	case a.Status == model.StatusDeleted:
		return nil, fmt.Errorf("%w: статья '%s'", ErrNotFound, id)
	case a.Status != model.StatusActive && caller.ID != a.OwnerID:
		return nil, fmt.Errorf("%w: статья '%s'", ErrNotFound, id)
	}
	return a, nil
}

// UpdateContent изменяет title, body, attachments.
// slot, status и id содержимым не меняются.
func (s *PublishingService) UpdateContent(ctx context.Context, caller Caller, id string, upd ContentUpdate) (*model.Article, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == model.StatusDeleted {
		return nil, fmt.Errorf("%w: статья '%s'", ErrNotFound, id)
	}
	if !canManage(caller, a) {
		return nil, ErrNotOwner
	}

	if upd.Title != nil {
		a.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Body != nil {
		a.Body = *upd.Body
	}
	if upd.Attachments != nil {
		a.Attachments = *upd.Attachments
	}
	if err := validateContent(a.Title, a.Attachments); err != nil {
		return nil, err
	}

	if err := s.articles.UpdateContent(ctx, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: статья '%s'", ErrNotFound, id)
		}
		return nil, storageError("обновление статьи", err)
	}

	s.logger.Info("Содержимое статьи обновлено",
		slog.String("article_id", id),
		slog.String("actor", caller.ID),
	)
	return a, nil
}

// transition применяет действие автомата и сохраняет результат.
// Запись условна: если статус успел измениться, переход отклоняется.
// Удаление повторяется от актуального статуса; уже удалённая статья — no-op.
func (s *PublishingService) transition(ctx context.Context, a *model.Article, action lifecycle.Action, reason *string) (bool, error) {
	prev := a.Status
	changed, err := lifecycle.Apply(a, action, reason, s.now())
	if err != nil {
		return false, transitionError(err)
	}
	if !changed {
		return false, nil
	}

	err = s.articles.UpdateState(ctx, a, prev)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrStateChanged):
		cur, loadErr := s.load(ctx, a.ID)
		if loadErr != nil {
			return false, loadErr
		}
		if action == lifecycle.ActionDelete {
			if cur.Status == model.StatusDeleted {
				*a = *cur
				return false, nil
			}
			// Удаление допустимо из любого статуса: повтор от свежего чтения
			changed, err := s.transition(ctx, cur, action, reason)
			*a = *cur
			return changed, err
		}
		return false, transitionError(&lifecycle.TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("статус статьи изменился: %s → %s", prev, cur.Status),
		})
	case errors.Is(err, repository.ErrSlotTaken):
		return false, fmt.Errorf("%w: слот %d занят", ErrSlotOccupied, a.Slot)
	default:
		return false, storageError("сохранение статуса статьи", err)
	}
}

// Delete мягко удаляет статью, освобождая слот. Повторный вызов — no-op.
func (s *PublishingService) Delete(ctx context.Context, caller Caller, id string) (*model.Article, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(caller, a) {
		return nil, ErrNotOwner
	}

	changed, err := s.transition(ctx, a, lifecycle.ActionDelete, nil)
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("Статья удалена",
			slog.String("article_id", id),
			slog.Int("slot", a.Slot),
			slog.String("actor", caller.ID),
		)
		s.publish(ctx, events.ArticleDeleted, a, caller.ID)
	}
	return a, nil
}

// Approve публикует статью после модерации: pending → active.
func (s *PublishingService) Approve(ctx context.Context, caller Caller, id string) (*model.Article, error) {
	if !caller.Moderator {
		return nil, fmt.Errorf("%w: одобрять статьи может только модератор", ErrPermission)
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, a, lifecycle.ActionApprove, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Статья одобрена",
		slog.String("article_id", id),
		slog.String("moderator", caller.ID),
	)
	s.publish(ctx, events.ArticleApproved, a, caller.ID)
	return a, nil
}

// Reject отклоняет статью с указанием причины: pending → rejected.
func (s *PublishingService) Reject(ctx context.Context, caller Caller, id, reason string) (*model.Article, error) {
	if !caller.Moderator {
		return nil, fmt.Errorf("%w: отклонять статьи может только модератор", ErrPermission)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: причина отклонения обязательна", ErrValidation)
	}
	if utf8.RuneCountInString(reason) > maxRejectReasonLength {
		return nil, fmt.Errorf("%w: причина длиннее %d символов", ErrValidation, maxRejectReasonLength)
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, a, lifecycle.ActionReject, &reason); err != nil {
		return nil, err
	}

	s.logger.Info("Статья отклонена",
		slog.String("article_id", id),
		slog.String("moderator", caller.ID),
	)
	s.publish(ctx, events.ArticleRejected, a, caller.ID)
	return a, nil
}

// ConfirmPayment публикует платную статью после подтверждения оплаты:
// pending_payment → active. Вызывается платёжной системой.
func (s *PublishingService) ConfirmPayment(ctx context.Context, caller Caller, id string) (*model.Article, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, a, lifecycle.ActionConfirmPayment, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Оплата статьи подтверждена",
		slog.String("article_id", id),
		slog.Int64("price", a.Price),
		slog.String("actor", caller.ID),
	)
	s.publish(ctx, events.ArticlePaymentConfirmed, a, caller.ID)
	return a, nil
}

// Reslot переносит неудалённую статью в другой слот (модератор).
// preferred == nil — наименьший свободный слот. Цена размещения не пересчитывается.
func (s *PublishingService) Reslot(ctx context.Context, caller Caller, id string, preferred *int) (*model.Article, error) {
	if !caller.Moderator {
		return nil, fmt.Errorf("%w: переносить статьи может только модератор", ErrPermission)
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanReslot(a.Status) {
		return nil, transitionError(&lifecycle.TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: "удалённую статью нельзя перенести",
		})
	}
	if preferred != nil && *preferred == a.Slot {
		return a, nil
	}

	from := a.Slot
	_, err = s.allocator.Claim(ctx, a.PageID, a.PublishKind, preferred, func(al Allocation) error {
		a.Slot = al.Slot
		return s.articles.UpdateSlot(ctx, a)
	})
	if err != nil {
		a.Slot = from
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: статья '%s'", ErrNotFound, id)
		}
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrValidation) || errors.Is(err, ErrStorageUnavailable) {
			return nil, err
		}
		return nil, storageError("перенос статьи", err)
	}

	s.logger.Info("Статья перенесена",
		slog.String("article_id", id),
		slog.Int("from_slot", from),
		slog.Int("to_slot", a.Slot),
		slog.String("moderator", caller.ID),
	)
	s.publish(ctx, events.ArticleReslotted, a, caller.ID)
	return a, nil
}

// AdjustScore изменяет score статьи на delta (модератор).
func (s *PublishingService) AdjustScore(ctx context.Context, caller Caller, id string, delta int) (*model.Article, error) {
	if !caller.Moderator {
		return nil, fmt.Errorf("%w: изменять score может только модератор", ErrPermission)
	}
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta не может быть нулевым", ErrValidation)
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	deleted := transitionError(&lifecycle.TransitionError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("статья '%s' удалена", id),
	})
	if a.Status == model.StatusDeleted {
		return nil, deleted
	}

	if err := s.articles.AdjustScore(ctx, a, delta); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, deleted
		}
		return nil, storageError("сохранение score", err)
	}

	s.logger.Info("Score статьи изменён",
		slog.String("article_id", id),
		slog.Int("delta", delta),
		slog.Int("score", a.Score),
	)
	s.publish(ctx, events.ArticleScoreAdjusted, a, caller.ID)
	return a, nil
}

// Quote возвращает слот и цену, которые получила бы статья, без захвата.
func (s *PublishingService) Quote(ctx context.Context, pageID string, kind model.PublishKind, preferred *int) (Allocation, error) {
	if !kind.Valid() {
		return Allocation{}, fmt.Errorf("%w: publishKind должен быть partner или paid", ErrValidation)
	}
	return s.allocator.Allocate(ctx, pageID, kind, preferred)
}

// PriceTable возвращает цены всех слотов страницы с отметкой занятости.
func (s *PublishingService) PriceTable(ctx context.Context, pageID string, kind model.PublishKind) ([]SlotPrice, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: publishKind должен быть partner или paid", ErrValidation)
	}
	occupied, err := s.allocator.Occupied(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.allocator.prices.PriceTable(ctx, pageID, kind, occupied)
}

// publish отправляет событие; ошибка только логируется.
func (s *PublishingService) publish(ctx context.Context, t events.Type, a *model.Article, actor string) {
	e := events.New(t, a.ID, a.PageID, a.OwnerID, actor, a.Slot, string(a.Status))
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("Не удалось опубликовать событие",
			slog.String("type", string(t)),
			slog.String("article_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
}
