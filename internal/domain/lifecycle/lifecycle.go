// Пакет lifecycle — конечный автомат жизненного цикла статьи.
//
// Переходы:
//   - pending → active (approve) | rejected (reject)
//   - pending_payment → active (confirm_payment)
//   - любой, кроме deleted → deleted (delete)
//
// Повторное удаление уже удалённой статьи — no-op без ошибки.
// Состояние хранится в самой статье, автомат не держит собственного состояния.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
)

// Action — действие над статьёй.
type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionConfirmPayment Action = "confirm_payment"
	ActionDelete         Action = "delete"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — действие и целевой статус.
var validTransitions = map[model.Status]map[Action]model.Status{
	model.StatusPendingPayment: {
		ActionConfirmPayment: model.StatusActive,
		ActionDelete:         model.StatusDeleted,
	},
	model.StatusPending: {
		ActionApprove: model.StatusActive,
		ActionReject:  model.StatusRejected,
		ActionDelete:  model.StatusDeleted,
	},
	model.StatusActive: {
		ActionDelete: model.StatusDeleted,
	},
	model.StatusRejected: {
		ActionDelete: model.StatusDeleted,
	},
	model.StatusDeleted: {}, // Конечный статус
}

// InitialState — стартовое состояние новой статьи.
type InitialState struct {
	Status       model.Status
	ReviewStatus model.ReviewStatus
	IsVisible    bool
	Score        int
}

// Initial возвращает стартовое состояние по способу размещения.
// Обе ветки стартуют невидимыми: partner ждёт модерации, paid ждёт оплаты.
func Initial(kind model.PublishKind) InitialState {
	st := InitialState{
		Status:       model.StatusPending,
		ReviewStatus: model.ReviewPending,
		Score:        model.InitialScore,
	}
	if kind == model.PublishKindPaid {
		st.Status = model.StatusPendingPayment
	}
	return st
}

// Next возвращает целевой статус для действия.
// Ошибка INVALID_TRANSITION, если действие недопустимо в текущем статусе.
func Next(from model.Status, action Action) (model.Status, error) {
	transitions, ok := validTransitions[from]
	if !ok {
		return "", &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("неизвестный статус: %q", from),
		}
	}
	to, ok := transitions[action]
	if !ok {
		return "", &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("действие %s недопустимо в статусе %s", action, from),
		}
	}
	return to, nil
}

// Apply применяет действие к статье, изменяя её поля.
// reason используется только для reject.
// Возвращает false, если статья не изменилась (повторное удаление).
func Apply(a *model.Article, action Action, reason *string, now time.Time) (bool, error) {
	if action == ActionDelete && a.Status == model.StatusDeleted {
		return false, nil
	}

	to, err := Next(a.Status, action)
	if err != nil {
		return false, err
	}

	a.Status = to
	switch action {
	case ActionApprove, ActionConfirmPayment:
		a.ReviewStatus = model.ReviewApproved
		a.IsVisible = true
		a.RejectReason = nil
	case ActionReject:
		a.ReviewStatus = model.ReviewRejected
		a.IsVisible = false
		a.RejectReason = reason
	case ActionDelete:
		a.IsVisible = false
		a.DeletedAt = &now
	}
	a.UpdatedAt = now
	return true, nil
}

// CanReslot проверяет, можно ли перенести статью в другой слот.
// Удалённая статья слот не занимает.
func CanReslot(s model.Status) bool {
	return s != model.StatusDeleted
}

// TransitionError — ошибка перехода между статусами.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
