package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtaosu/meme-memos/internal/models"
)

func TestMemoRoutes_CreateGetList(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xABC"}`, false)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xABC"}`, true)
	require.Equal(t, http.StatusCreated, code)
	var memo models.Memo
	require.NoError(t, json.Unmarshal(env.Data, &memo))
	assert.Equal(t, "PEPE", memo.Symbol)
	assert.Empty(t, memo.Events)

	code, env = s.do(t, http.MethodGet, "/api/memos", "", false)
	require.Equal(t, http.StatusOK, code)
	var memos []models.Memo
	require.NoError(t, json.Unmarshal(env.Data, &memos))
	require.Len(t, memos, 1)
	assert.EqualValues(t, 1, env.Meta["total"])

	code, _ = s.do(t, http.MethodGet, "/api/memos/0xABC", "", false)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/memos/0xNOPE", "", false)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateMemo_Errors(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":""}`, true)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/memos", `not json`, true)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xUNKNOWN"}`, true)
	assert.Equal(t, http.StatusNotFound, code)

	s.metadata.mu.Lock()
	s.metadata.err = errBoom
	s.metadata.mu.Unlock()
	code, _ = s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xABC"}`, true)
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestAppendEvent_Route(t *testing.T) {
	s := newTestServer(t)
	s.feed.txs = []models.LargeTransaction{{
		AmountUSD:    decimal.NewFromInt(4000),
		BlockTime:    time.Date(2024, 10, 12, 14, 0, 0, 0, time.UTC),
		BuyerAddress: "0xwhale",
		TxHash:       "0x1",
	}}
	code, _ := s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xABC"}`, true)
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/api/memos/0xABC/events",
		`{"timestamp":"2024-10-12T15:00:00Z","description":"listing","link":"https://x.com/p/1"}`, true)
	require.Equal(t, http.StatusCreated, code)
	var memo models.Memo
	require.NoError(t, json.Unmarshal(env.Data, &memo))
	require.Len(t, memo.Events, 1)
	require.NotNil(t, memo.Events[0].LargeTransactions)
	assert.Len(t, *memo.Events[0].LargeTransactions, 1)
	enrichment, ok := env.Meta["enrichment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "enriched", enrichment["status"])

	code, env = s.do(t, http.MethodGet, "/api/memos/0xABC/large-transactions", "", false)
	require.Equal(t, http.StatusOK, code)
	var rows []models.LargeTransactionRow
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, memo.Events[0].ID, rows[0].EventID)

	code, _ = s.do(t, http.MethodDelete, "/api/memos/0xABC/events/"+memo.Events[0].ID, "", true)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, "/api/memos/0xABC/events/"+memo.Events[0].ID, "", true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAppendEvent_SkippedEnrichment(t *testing.T) {
	s := newTestServer(t)
	s.feed.err = errBoom
	code, _ := s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xABC"}`, true)
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/api/memos/0xABC/events", `{"timestamp":"1728745200000","description":"tweet"}`, true)
	require.Equal(t, http.StatusCreated, code)
	var memo models.Memo
	require.NoError(t, json.Unmarshal(env.Data, &memo))
	assert.Nil(t, memo.Events[0].LargeTransactions)
	enrichment := env.Meta["enrichment"].(map[string]any)
	assert.Equal(t, "skipped", enrichment["status"])
	assert.Equal(t, "boom", enrichment["reason"])
}

func TestAppendEvent_BadRequests(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xABC"}`, true)
	require.Equal(t, http.StatusCreated, code)

	for _, body := range []string{
		`{"timestamp":"yesterday","description":"x"}`,
		`{"description":"x"}`,
		`{"timestamp":"2024-10-12T15:00:00Z","description":""}`,
		`{"timestamp":"2024-10-12T15:00:00Z","description":"x","minAmountUsd":0}`,
		`{"timestamp":"2024-10-12T15:00:00Z","description":"x","enrichmentEnd":"soon"}`,
	} {
		code, _ := s.do(t, http.MethodPost, "/api/memos/0xABC/events", body, true)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}

	code, _ = s.do(t, http.MethodPost, "/api/memos/0xNOPE/events", `{"timestamp":"2024-10-12T15:00:00Z","description":"x"}`, true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDeleteAndRefreshMemo(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xABC"}`, true)
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodPost, "/api/memos/0xABC/refresh", "", true)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodDelete, "/api/memos/0xABC", "", false)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodDelete, "/api/memos/0xABC", "", true)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodDelete, "/api/memos/0xABC", "", true)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodPost, "/api/memos/0xABC/refresh", "", true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLargeTransactionQuery_Route(t *testing.T) {
	s := newTestServer(t)
	s.feed.txs = []models.LargeTransaction{{TxHash: "0x1"}, {TxHash: "0x2"}}

	code, _ := s.do(t, http.MethodGet, "/api/large-transactions?token_address=0xABC", "", false)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := s.do(t, http.MethodGet, "/api/large-transactions?token_address=0xABC&end=2024-10-12T00:00:00Z", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, env.Meta["count"])
	assert.Equal(t, "2024-10-11T00:00:00Z", env.Meta["start"])

	code, _ = s.do(t, http.MethodGet, "/api/large-transactions?token_address=0xABC&start=2024-10-01&end=2024-10-12", "", true)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/large-transactions?token_address=0xABC&min_amount_usd=lots", "", true)
	assert.Equal(t, http.StatusBadRequest, code)

	s.feed.err = errBoom
	code, _ = s.do(t, http.MethodGet, "/api/large-transactions?token_address=0xABC", "", true)
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, code)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 12, 15, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-10-12T15:00:00Z", "2024-10-12 15:00:00", "2024-10-12T17:00:00+02:00", "1728745200000"} {
		got, ok := parseTime(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}
	_, ok := parseTime("tomorrow")
	assert.False(t, ok)
}
