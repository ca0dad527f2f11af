// lists.go — обработчики публичного и promotion-списков.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/board-module/internal/api/errors"
)

// ListArticles — GET /api/v1/pages/{pageId}/articles.
func (h *APIHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := bindPagination(r.URL.Query())
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.lists.Default(r.Context(), chi.URLParam(r, "pageId"), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, listToResponse(res))
}

// ListPromotion — GET /api/v1/pages/{pageId}/articles/promotion.
// Статьи вызывающего идут первыми.
func (h *APIHandler) ListPromotion(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	limit, offset, err := bindPagination(r.URL.Query())
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.lists.Promotion(r.Context(), chi.URLParam(r, "pageId"), caller.ID, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, "promotion", err)
		return
	}
	writeJSON(w, http.StatusOK, listToResponse(res))
}
