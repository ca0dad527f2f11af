// errors.go — ошибки бизнес-логики сервисного слоя.
//
// Базовые ошибки задают стабильный вид (Kind), подробные ошибки
// оборачивают базовые через %w и задают машиночитаемый код.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/goartstore/board-module/internal/domain/lifecycle"
)

// Базовые ошибки (вид ошибки).
var (
	// ErrValidation — ошибка валидации входных данных. Не повторяется.
	ErrValidation = errors.New("ошибка валидации")
	// ErrConflict — конфликт с текущим состоянием (слот, идентификатор, переход).
	ErrConflict = errors.New("конфликт")
	// ErrPermission — операция не разрешена вызывающему.
	ErrPermission = errors.New("доступ запрещён")
	// ErrStorageUnavailable — временная ошибка хранилища или внешнего сервиса.
	ErrStorageUnavailable = errors.New("хранилище недоступно")
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
)

// Подробные ошибки.
var (
	ErrSlotRangeInvalid      = fmt.Errorf("%w: слот вне диапазона 1..60", ErrValidation)
	ErrSlotOccupied          = fmt.Errorf("%w: слот уже занят", ErrConflict)
	ErrPoolExhausted         = fmt.Errorf("%w: свободных слотов на странице нет", ErrConflict)
	ErrIdentifierExhausted   = fmt.Errorf("%w: не удалось выпустить уникальный идентификатор", ErrConflict)
	ErrNotMember             = fmt.Errorf("%w: вызывающий не является участником страницы", ErrPermission)
	ErrNotOwner              = fmt.Errorf("%w: изменять статью может только автор или модератор", ErrPermission)
	ErrMembershipUnavailable = fmt.Errorf("%w: сервис членства недоступен", ErrStorageUnavailable)
)

// Kind — стабильный вид ошибки для внешних потребителей.
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindConflict           Kind = "CONFLICT"
	KindPermission         Kind = "PERMISSION_DENIED"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindNotFound           Kind = "NOT_FOUND"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// KindOf определяет вид ошибки по цепочке обёрток.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// CodeOf возвращает подробный машиночитаемый код ошибки.
// Для ошибок без подробного кода возвращает вид.
func CodeOf(err error) string {
	var te *lifecycle.TransitionError
	switch {
	case errors.Is(err, ErrSlotRangeInvalid):
		return "SLOT_RANGE_INVALID"
	case errors.Is(err, ErrSlotOccupied):
		return "SLOT_OCCUPIED"
	case errors.Is(err, ErrPoolExhausted):
		return "POOL_EXHAUSTED"
	case errors.Is(err, ErrIdentifierExhausted):
		return "IDENTIFIER_EXHAUSTED"
	case errors.Is(err, ErrNotMember):
		return "NOT_MEMBER"
	case errors.Is(err, ErrNotOwner):
		return "NOT_OWNER"
	case errors.As(err, &te):
		return te.Code
	default:
		return string(KindOf(err))
	}
}

// storageError оборачивает ошибку хранилища как временную.
func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// transitionError переводит ошибку автомата статусов в конфликт.
func transitionError(err error) error {
	return fmt.Errorf("%w: %w", ErrConflict, err)
}
