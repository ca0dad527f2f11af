// handler.go — основной обработчик API Board Module.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/board-module/internal/api/errors"
	"github.com/bigkaa/goartstore/board-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/service"
)

// ArticleService — операции над статьями (service.PublishingService).
type ArticleService interface {
	Create(ctx context.Context, caller service.Caller, in service.CreateInput) (*model.Article, error)
	Get(ctx context.Context, caller service.Caller, id string) (*model.Article, error)
	UpdateContent(ctx context.Context, caller service.Caller, id string, upd service.ContentUpdate) (*model.Article, error)
	Delete(ctx context.Context, caller service.Caller, id string) (*model.Article, error)
	Approve(ctx context.Context, caller service.Caller, id string) (*model.Article, error)
	Reject(ctx context.Context, caller service.Caller, id, reason string) (*model.Article, error)
	ConfirmPayment(ctx context.Context, caller service.Caller, id string) (*model.Article, error)
	Reslot(ctx context.Context, caller service.Caller, id string, preferred *int) (*model.Article, error)
	AdjustScore(ctx context.Context, caller service.Caller, id string, delta int) (*model.Article, error)
	Quote(ctx context.Context, pageID string, kind model.PublishKind, preferred *int) (service.Allocation, error)
	PriceTable(ctx context.Context, pageID string, kind model.PublishKind) ([]service.SlotPrice, error)
}

// ListService — построение списков (service.ListComposer).
type ListService interface {
	Default(ctx context.Context, pageID string, limit, offset int) (*service.ListResult, error)
	Promotion(ctx context.Context, pageID, callerID string, limit, offset int) (*service.ListResult, error)
}

// PriceService — управление переопределениями цен (service.PriceResolver).
type PriceService interface {
	SetOverrides(ctx context.Context, pageID string, items []service.OverrideInput, updatedBy string) (added, updated int, err error)
	ListOverrides(ctx context.Context, pageID string) ([]*model.PriceOverride, error)
	DeleteOverride(ctx context.Context, pageID string, slot int) error
}

// APIHandler — основной обработчик API Board Module.
type APIHandler struct {
	health   *HealthHandler
	articles ArticleService
	lists    ListService
	prices   PriceService
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	articles ArticleService,
	lists ListService,
	prices PriceService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		articles: articles,
		lists:    lists,
		prices:   prices,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError пишет ошибку сервиса; внутренние ошибки логируются.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := service.KindOf(err)
	if errors.Is(err, context.Canceled) {
		h.logger.Warn("Запрос прерван клиентом",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
		)
	} else if kind == service.KindInternal || kind == service.KindStorageUnavailable {
		h.logger.Error("Ошибка обработки запроса",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	apierrors.WriteServiceError(w, err)
}

// callerFrom формирует вызывающего из claims запроса.
func callerFrom(r *http.Request) (service.Caller, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Caller{}, false
	}
	return service.Caller{ID: claims.Subject, Moderator: claims.IsModerator()}, true
}

// decodeJSON разбирает тело запроса; ошибка уже записана в ответ.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// paginationDefaults нормализует параметры пагинации.
func paginationDefaults(limit, offset *int) (limitVal, offsetVal int) {
	l := 100
	o := 0

	if limit != nil {
		l = min(max(*limit, 1), 1000)
	}
	if offset != nil {
		o = max(*offset, 0)
	}
	return l, o
}

// bindPagination читает limit и offset из query.
func bindPagination(query url.Values) (limit, offset int, err error) {
	var l, o *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &l); err != nil {
		return 0, 0, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &o); err != nil {
		return 0, 0, err
	}
	limit, offset = paginationDefaults(l, o)
	return limit, offset, nil
}

// bindKind читает обязательный параметр kind.
func bindKind(query url.Values) (model.PublishKind, error) {
	var kind string
	if err := runtime.BindQueryParameter("form", true, true, "kind", query, &kind); err != nil {
		return "", err
	}
	return model.PublishKind(kind), nil
}

// slotParam разбирает номер слота из пути.
func slotParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "slot"))
}
