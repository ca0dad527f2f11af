// articles.go — обработчики операций над статьями.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/board-module/internal/api/errors"
	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/service"
)

// CreateArticle — POST /api/v1/pages/{pageId}/articles.
func (h *APIHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var req createArticleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	article, err := h.articles.Create(r.Context(), caller, service.CreateInput{
		PageID:        chi.URLParam(r, "pageId"),
		Title:         req.Title,
		Body:          req.Body,
		Attachments:   req.Attachments,
		PublishKind:   model.PublishKind(req.PublishKind),
		PreferredSlot: req.PreferredSlot,
	})
	if err != nil {
		h.writeServiceError(w, r, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, articleToResponse(article))
}

// GetArticle — GET /api/v1/articles/{articleId}.
func (h *APIHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	h.withArticle(w, r, "get", func(caller service.Caller, id string) (*model.Article, error) {
		return h.articles.Get(r.Context(), caller, id)
	})
}

// UpdateArticle — PATCH /api/v1/articles/{articleId}.
func (h *APIHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	var req updateArticleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withArticle(w, r, "update", func(caller service.Caller, id string) (*model.Article, error) {
		return h.articles.UpdateContent(r.Context(), caller, id, service.ContentUpdate{
			Title:       req.Title,
			Body:        req.Body,
			Attachments: req.Attachments,
		})
	})
}

// DeleteArticle — DELETE /api/v1/articles/{articleId}. Идемпотентна.
func (h *APIHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	h.withArticle(w, r, "delete", func(caller service.Caller, id string) (*model.Article, error) {
		return h.articles.Delete(r.Context(), caller, id)
	})
}

// ApproveArticle — POST /api/v1/articles/{articleId}/approve.
func (h *APIHandler) ApproveArticle(w http.ResponseWriter, r *http.Request) {
	h.withArticle(w, r, "approve", func(caller service.Caller, id string) (*model.Article, error) {
		return h.articles.Approve(r.Context(), caller, id)
	})
}

// RejectArticle — POST /api/v1/articles/{articleId}/reject.
func (h *APIHandler) RejectArticle(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withArticle(w, r, "reject", func(caller service.Caller, id string) (*model.Article, error) {
		return h.articles.Reject(r.Context(), caller, id, req.Reason)
	})
}

// ConfirmPayment — POST /api/v1/articles/{articleId}/payment-confirmed.
func (h *APIHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.withArticle(w, r, "confirm_payment", func(caller service.Caller, id string) (*model.Article, error) {
		return h.articles.ConfirmPayment(r.Context(), caller, id)
	})
}

// ReslotArticle — POST /api/v1/articles/{articleId}/reslot.
// Тело необязательно: без slot выбирается первый свободный.
func (h *APIHandler) ReslotArticle(w http.ResponseWriter, r *http.Request) {
	var req reslotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	h.withArticle(w, r, "reslot", func(caller service.Caller, id string) (*model.Article, error) {
		return h.articles.Reslot(r.Context(), caller, id, req.Slot)
	})
}

// AdjustScore — POST /api/v1/articles/{articleId}/score.
func (h *APIHandler) AdjustScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withArticle(w, r, "score", func(caller service.Caller, id string) (*model.Article, error) {
		return h.articles.AdjustScore(r.Context(), caller, id, req.Delta)
	})
}

// withArticle — общий путь операций над одной статьёй:
// вызывающий из claims, id из пути, ответ 200 со статьёй.
func (h *APIHandler) withArticle(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(caller service.Caller, id string) (*model.Article, error),
) {
	caller, ok := callerFrom(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	article, err := fn(caller, chi.URLParam(r, "articleId"))
	if err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, articleToResponse(article))
}
