// prices.go — обработчики цен слотов: котировка, таблица и переопределения.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/board-module/internal/api/errors"
	"github.com/bigkaa/goartstore/board-module/internal/service"
)

// QuoteSlot — GET /api/v1/pages/{pageId}/slots/quote?kind=&slot=.
// Слот не захватывается.
func (h *APIHandler) QuoteSlot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	kind, err := bindKind(query)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	var slot *int
	if err := runtime.BindQueryParameter("form", true, false, "slot", query, &slot); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	alloc, err := h.articles.Quote(r.Context(), chi.URLParam(r, "pageId"), kind, slot)
	if err != nil {
		h.writeServiceError(w, r, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Slot: alloc.Slot, Price: alloc.Price})
}

// GetPriceTable — GET /api/v1/pages/{pageId}/prices?kind=.
func (h *APIHandler) GetPriceTable(w http.ResponseWriter, r *http.Request) {
	kind, err := bindKind(r.URL.Query())
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	pageID := chi.URLParam(r, "pageId")
	slots, err := h.articles.PriceTable(r.Context(), pageID, kind)
	if err != nil {
		h.writeServiceError(w, r, "price_table", err)
		return
	}
	writeJSON(w, http.StatusOK, priceTableToResponse(pageID, kind, slots))
}

// SetPriceOverrides — PUT /api/v1/pages/{pageId}/prices. Только модератор.
func (h *APIHandler) SetPriceOverrides(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var req priceOverridesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items := make([]service.OverrideInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.OverrideInput{Slot: it.Slot, Price: it.Price})
	}

	added, updated, err := h.prices.SetOverrides(r.Context(), chi.URLParam(r, "pageId"), items, caller.ID)
	if err != nil {
		h.writeServiceError(w, r, "set_prices", err)
		return
	}
	writeJSON(w, http.StatusOK, priceOverridesResponse{Added: added, Updated: updated})
}

// ListPriceOverrides — GET /api/v1/pages/{pageId}/prices/overrides. Только модератор.
func (h *APIHandler) ListPriceOverrides(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageId")
	list, err := h.prices.ListOverrides(r.Context(), pageID)
	if err != nil {
		h.writeServiceError(w, r, "list_prices", err)
		return
	}
	writeJSON(w, http.StatusOK, overridesToResponse(pageID, list))
}

// DeletePriceOverride — DELETE /api/v1/pages/{pageId}/prices/{slot}.
func (h *APIHandler) DeletePriceOverride(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный номер слота")
		return
	}

	if err := h.prices.DeleteOverride(r.Context(), chi.URLParam(r, "pageId"), slot); err != nil {
		h.writeServiceError(w, r, "delete_price", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
