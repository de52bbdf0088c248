package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/0xtaosu/meme-memos/internal/service"
)

type MemoHandler struct {
	Service *service.MemoService
}

// Register mounts the memo routes. Reads are public; requireAuth guards writes.
func (h *MemoHandler) Register(r *gin.Engine, requireAuth gin.HandlerFunc) {
	group := r.Group("/api/memos")
	group.GET("", h.listMemos)
	group.GET("/:tokenAddress", h.getMemo)
	group.GET("/:tokenAddress/large-transactions", h.listStoredLargeTransactions)

	writes := group.Group("", requireAuth)
	writes.POST("", h.createMemo)
	writes.DELETE("/:tokenAddress", h.deleteMemo)
	writes.POST("/:tokenAddress/refresh", h.refreshMemo)
	writes.POST("/:tokenAddress/events", h.appendEvent)
	writes.DELETE("/:tokenAddress/events/:eventId", h.deleteEvent)
}

type createMemoRequest struct {
	TokenAddress string `json:"tokenAddress"`
}

// @Summary Create or refresh a memo
// @Tags memos
// @Accept json
// @Security BearerAuth
// @Param body body createMemoRequest true "token"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 502 {object} Response
// @Router /api/memos [post]
func (h *MemoHandler) createMemo(c *gin.Context) {
	var req createMemoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	memo, err := h.Service.CreateMemo(c.Request.Context(), req.TokenAddress)
	if err != nil {
		fail(c, err)
		return
	}
	Created(c, memo, nil)
}

// @Summary List memos
// @Tags memos
// @Success 200 {object} Response
// @Router /api/memos [get]
func (h *MemoHandler) listMemos(c *gin.Context) {
	memos, err := h.Service.ListMemos(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, memos, map[string]any{"total": len(memos)})
}

// @Summary Get memo
// @Tags memos
// @Param tokenAddress path string true "token address"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/memos/{tokenAddress} [get]
func (h *MemoHandler) getMemo(c *gin.Context) {
	memo, err := h.Service.GetMemo(c.Request.Context(), c.Param("tokenAddress"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, memo, nil)
}

// @Summary Delete memo
// @Tags memos
// @Security BearerAuth
// @Param tokenAddress path string true "token address"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/memos/{tokenAddress} [delete]
func (h *MemoHandler) deleteMemo(c *gin.Context) {
	addr := strings.TrimSpace(c.Param("tokenAddress"))
	if err := h.Service.DeleteMemo(c.Request.Context(), addr); err != nil {
		fail(c, err)
		return
	}
	Ok(c, map[string]any{"tokenAddress": addr, "deleted": true}, nil)
}

// @Summary Refresh memo metadata
// @Tags memos
// @Security BearerAuth
// @Param tokenAddress path string true "token address"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Failure 502 {object} Response
// @Router /api/memos/{tokenAddress}/refresh [post]
func (h *MemoHandler) refreshMemo(c *gin.Context) {
	memo, err := h.Service.RefreshMemo(c.Request.Context(), c.Param("tokenAddress"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, memo, nil)
}

type appendEventRequest struct {
	Timestamp     string           `json:"timestamp"`
	Description   string           `json:"description"`
	Link          *string          `json:"link"`
	EnrichmentEnd *string          `json:"enrichmentEnd"`
	MinAmountUSD  *decimal.Decimal `json:"minAmountUsd"`
}

// @Summary Append event
// @Description Adds an event and, best-effort, the large buys of the preceding lookback window.
// @Tags memos
// @Accept json
// @Security BearerAuth
// @Param tokenAddress path string true "token address"
// @Param body body appendEventRequest true "event"
// @Success 201 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/memos/{tokenAddress}/events [post]
func (h *MemoHandler) appendEvent(c *gin.Context) {
	var req appendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	draft := service.EventDraft{
		Description:  req.Description,
		Link:         req.Link,
		MinAmountUSD: req.MinAmountUSD,
	}
	if strings.TrimSpace(req.Timestamp) != "" {
		ts, ok := parseTime(req.Timestamp)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid timestamp", nil)
			return
		}
		draft.Timestamp = ts
	}
	if req.EnrichmentEnd != nil && strings.TrimSpace(*req.EnrichmentEnd) != "" {
		end, ok := parseTime(*req.EnrichmentEnd)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid enrichmentEnd", nil)
			return
		}
		draft.EnrichmentEnd = &end
	}

	memo, enrichment, err := h.Service.AppendEvent(c.Request.Context(), c.Param("tokenAddress"), draft)
	if err != nil {
		fail(c, err)
		return
	}
	Created(c, memo, map[string]any{"enrichment": enrichment})
}

// @Summary Delete event
// @Tags memos
// @Security BearerAuth
// @Param tokenAddress path string true "token address"
// @Param eventId path string true "event id"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/memos/{tokenAddress}/events/{eventId} [delete]
func (h *MemoHandler) deleteEvent(c *gin.Context) {
	memo, err := h.Service.DeleteEvent(c.Request.Context(), c.Param("tokenAddress"), c.Param("eventId"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, memo, nil)
}
