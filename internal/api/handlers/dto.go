// dto.go — JSON-представления ответов и запросов Board Module.
package handlers

import (
	"time"

	"github.com/bigkaa/goartstore/board-module/internal/domain/model"
	"github.com/bigkaa/goartstore/board-module/internal/service"
)

// articleResponse — статья в ответе API.
type articleResponse struct {
	ID            string     `json:"id"`
	PageID        string     `json:"pageId"`
	OwnerID       string     `json:"ownerId"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Attachments   []string   `json:"attachments"`
	PublishKind   string     `json:"publishKind"`
	Status        string     `json:"status"`
	ReviewStatus  string     `json:"reviewStatus"`
	IsVisible     bool       `json:"isVisible"`
	Slot          int        `json:"slot"`
	PromotionRank int        `json:"promotionRank"`
	Score         int        `json:"score"`
	Price         int64      `json:"price"`
	RejectReason  *string    `json:"rejectReason"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"deletedAt"`
}

// listItemResponse — статья в списке с позицией отображения.
type listItemResponse struct {
	articleResponse
	DisplaySlot   int  `json:"displaySlot"`
	CompactedRank int  `json:"compactedRank"`
	DisplayRank   int  `json:"displayRank"`
	IsPromoted    bool `json:"isPromoted"`
}

type listResponse struct {
	Items   []listItemResponse `json:"items"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	Offset  int                `json:"offset"`
	HasMore bool               `json:"hasMore"`
}

type quoteResponse struct {
	Slot  int   `json:"slot"`
	Price int64 `json:"price"`
}

type slotPriceResponse struct {
	Slot      int    `json:"slot"`
	Default   int64  `json:"default"`
	Suggested int64  `json:"suggested"`
	Override  *int64 `json:"override"`
	Effective int64  `json:"effective"`
	Occupied  bool   `json:"occupied"`
}

type priceTableResponse struct {
	PageID string              `json:"pageId"`
	Kind   string              `json:"kind"`
	Slots  []slotPriceResponse `json:"slots"`
}

type priceOverrideItem struct {
	Slot      int       `json:"slot"`
	Price     int64     `json:"price"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type priceOverrideListResponse struct {
	PageID string              `json:"pageId"`
	Items  []priceOverrideItem `json:"items"`
}

type priceOverridesResponse struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// --- Запросы ---

type createArticleRequest struct {
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	Attachments   []string `json:"attachments"`
	PublishKind   string   `json:"publishKind"`
	PreferredSlot *int     `json:"preferredSlot"`
}

type updateArticleRequest struct {
	Title       *string   `json:"title"`
	Body        *string   `json:"body"`
	Attachments *[]string `json:"attachments"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type reslotRequest struct {
	Slot *int `json:"slot"`
}

type scoreRequest struct {
	Delta int `json:"delta"`
}

type priceOverridesRequest struct {
	Items []struct {
		Slot  int   `json:"slot"`
		Price int64 `json:"price"`
	} `json:"items"`
}

// --- Маппинг ---

func articleToResponse(a *model.Article) articleResponse {
	attachments := a.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return articleResponse{
		ID:            a.ID,
		PageID:        a.PageID,
		OwnerID:       a.OwnerID,
		Title:         a.Title,
		Body:          a.Body,
		Attachments:   attachments,
		PublishKind:   string(a.PublishKind),
		Status:        string(a.Status),
		ReviewStatus:  string(a.ReviewStatus),
		IsVisible:     a.IsVisible,
		Slot:          a.Slot,
		PromotionRank: a.PromotionRank,
		Score:         a.Score,
		Price:         a.Price,
		RejectReason:  a.RejectReason,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		DeletedAt:     a.DeletedAt,
	}
}

func listToResponse(res *service.ListResult) listResponse {
	items := make([]listItemResponse, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, listItemResponse{
			articleResponse: articleToResponse(it.Article),
			DisplaySlot:     it.DisplaySlot,
			CompactedRank:   it.CompactedRank,
			DisplayRank:     it.DisplayRank,
			IsPromoted:      it.IsPromoted,
		})
	}
	return listResponse{
		Items:   items,
		Total:   res.Total,
		Limit:   res.Limit,
		Offset:  res.Offset,
		HasMore: res.HasMore,
	}
}

func priceTableToResponse(pageID string, kind model.PublishKind, slots []service.SlotPrice) priceTableResponse {
	out := make([]slotPriceResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotPriceResponse(s))
	}
	return priceTableResponse{PageID: pageID, Kind: string(kind), Slots: out}
}

func overridesToResponse(pageID string, list []*model.PriceOverride) priceOverrideListResponse {
	items := make([]priceOverrideItem, 0, len(list))
	for _, o := range list {
		items = append(items, priceOverrideItem{
			Slot:      o.Slot,
			Price:     o.Price,
			UpdatedBy: o.UpdatedBy,
			UpdatedAt: o.UpdatedAt,
		})
	}
	return priceOverrideListResponse{PageID: pageID, Items: items}
}
