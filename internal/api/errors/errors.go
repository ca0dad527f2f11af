// Пакет errors — конструкторы стандартных ошибок Board Module.
// Единый формат: {"error": {"code": "...", "kind": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/bigkaa/goartstore/board-module/internal/service"
)

// Коды ошибок транспортного уровня.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeInternalError   = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// code — подробный машиночитаемый код, kind — стабильный вид ошибки.
func WriteError(w http.ResponseWriter, statusCode int, code, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Kind:    kind,
			Message: message,
		},
	})
}

// StatusOf возвращает HTTP статус для вида ошибки сервисного слоя.
func StatusOf(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindConflict:
		return http.StatusConflict
	case service.KindPermission:
		return http.StatusForbidden
	case service.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError записывает ошибку сервисного слоя.
// Внутренние ошибки не раскрывают подробности клиенту.
func WriteServiceError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	message := err.Error()
	if kind == service.KindInternal {
		message = "Внутренняя ошибка сервера"
	}
	WriteError(w, StatusOf(kind), service.CodeOf(err), string(kind), message)
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, string(service.KindValidation), message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, string(service.KindNotFound), message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, string(service.KindPermission), message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, string(service.KindPermission), message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, string(service.KindInternal), message)
}
