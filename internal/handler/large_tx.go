package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/0xtaosu/meme-memos/internal/models"
	"github.com/0xtaosu/meme-memos/internal/repository"
	"github.com/0xtaosu/meme-memos/internal/service"
)

// @Summary List stored large transactions of a memo
// @Tags large-transactions
// @Param tokenAddress path string true "token address"
// @Param event_id query string false "event id"
// @Param since query string false "block time lower bound"
// @Param min_amount_usd query number false "minimum USD amount"
// @Param order_by query string false "amount_usd|block_time|token_bought_amount|created_at"
// @Param asc query bool false "ascending"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} Response
// @Router /api/memos/{tokenAddress}/large-transactions [get]
func (h *MemoHandler) listStoredLargeTransactions(c *gin.Context) {
	addr := strings.TrimSpace(c.Param("tokenAddress"))
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	asc := boolPtr(false)
	if strings.EqualFold(c.Query("asc"), "true") {
		asc = boolPtr(true)
	}
	items, err := h.Service.ListStoredLargeTransactions(c.Request.Context(), repository.ListLargeTransactionsParams{
		Limit:        limit,
		Offset:       offset,
		TokenAddress: &addr,
		EventID:      strQueryPtr(c, "event_id"),
		Since:        timeQueryPtr(c, "since"),
		MinAmountUSD: decimalQueryPtr(c, "min_amount_usd"),
		OrderBy:      c.Query("order_by"),
		Asc:          asc,
	})
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, len(items)))
}

type LargeTransactionHandler struct {
	Service *service.MemoService
}

func (h *LargeTransactionHandler) Register(r *gin.Engine, requireAuth gin.HandlerFunc) {
	r.GET("/api/large-transactions", requireAuth, h.query)
}

// @Summary Query the transaction feed directly
// @Description Runs the large-buy query for a token. The window may not exceed the enrichment lookback.
// @Tags large-transactions
// @Security BearerAuth
// @Param token_address query string true "token address"
// @Param start query string false "window start (default end minus lookback)"
// @Param end query string false "window end (default now)"
// @Param min_amount_usd query number false "minimum USD amount"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 502 {object} Response
// @Router /api/large-transactions [get]
func (h *LargeTransactionHandler) query(c *gin.Context) {
	svc := h.Service
	q := models.LargeTransactionQuery{TokenAddress: strings.TrimSpace(c.Query("token_address"))}

	q.End = time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("end")); raw != "" {
		end, ok := parseTime(raw)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid end", nil)
			return
		}
		q.End = end
	}
	q.Start = q.End.Add(-svc.Lookback())
	if raw := strings.TrimSpace(c.Query("start")); raw != "" {
		start, ok := parseTime(raw)
		if !ok {
			Error(c, http.StatusBadRequest, "invalid start", nil)
			return
		}
		q.Start = start
	}
	if raw := strings.TrimSpace(c.Query("min_amount_usd")); raw != "" {
		min, err := decimal.NewFromString(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid min_amount_usd", nil)
			return
		}
		q.MinAmountUSD = min
	}

	txs, err := svc.QueryLargeTransactions(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, txs, map[string]any{
		"token_address": q.TokenAddress,
		"start":         q.Start.Format(time.RFC3339),
		"end":           q.End.Format(time.RFC3339),
		"count":         len(txs),
	})
}
