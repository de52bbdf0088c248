package dune

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/0xtaosu/meme-memos/internal/models"
)

const (
	StatePending   = "QUERY_STATE_PENDING"
	StateExecuting = "QUERY_STATE_EXECUTING"
	StateCompleted = "QUERY_STATE_COMPLETED"
	StateFailed    = "QUERY_STATE_FAILED"
	StateCancelled = "QUERY_STATE_CANCELLED"
	StateExpired   = "QUERY_STATE_EXPIRED"
)

type executeRequest struct {
	QueryParameters map[string]string `json:"query_parameters"`
	Performance     string            `json:"performance,omitempty"`
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

type ExecutionStatus struct {
	ExecutionID         string `json:"execution_id"`
	QueryID             int    `json:"query_id"`
	State               string `json:"state"`
	IsExecutionFinished bool   `json:"is_execution_finished"`
	Error               struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type ResultsPage struct {
	Rows       []models.LargeTransaction
	NextOffset *int
}

var blockTimeLayouts = []string{
	"2006-01-02 15:04:05.000 UTC",
	"2006-01-02 15:04:05 UTC",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

func parseResultsPage(body []byte) (*ResultsPage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("dune: malformed results response")
	}
	result := gjson.GetBytes(body, "result")
	if !result.IsObject() {
		return nil, fmt.Errorf("dune: results response has no result object")
	}
	page := &ResultsPage{Rows: []models.LargeTransaction{}}
	var rowErr error
	result.Get("rows").ForEach(func(_, row gjson.Result) bool {
		tx, err := parseRow(row)
		if err != nil {
			rowErr = err
			return false
		}
		page.Rows = append(page.Rows, tx)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if next := gjson.GetBytes(body, "next_offset"); next.Type == gjson.Number {
		n := int(next.Int())
		page.NextOffset = &n
	}
	return page, nil
}

func parseRow(row gjson.Result) (models.LargeTransaction, error) {
	if !row.IsObject() {
		return models.LargeTransaction{}, fmt.Errorf("dune: row is not an object")
	}
	blockTime, err := parseBlockTime(row.Get("block_time").String())
	if err != nil {
		return models.LargeTransaction{}, err
	}
	amount, err := rowDecimal(row.Get("amount_usd"))
	if err != nil {
		return models.LargeTransaction{}, fmt.Errorf("dune: amount_usd: %w", err)
	}
	bought, err := rowDecimal(row.Get("token_bought_amount"))
	if err != nil {
		return models.LargeTransaction{}, fmt.Errorf("dune: token_bought_amount: %w", err)
	}
	return models.LargeTransaction{
		AmountUSD:         amount,
		BlockTime:         blockTime,
		BuyerAddress:      row.Get("buyer_address").String(),
		TokenBoughtAmount: bought,
		TxHash:            row.Get("tx_hash").String(),
	}, nil
}

func parseBlockTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range blockTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("dune: unrecognised block_time %q", raw)
}

func rowDecimal(r gjson.Result) (decimal.Decimal, error) {
	switch r.Type {
	case gjson.Number:
		return decimal.NewFromString(r.Raw)
	case gjson.String:
		return decimal.NewFromString(strings.TrimSpace(r.Str))
	case gjson.Null:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("unexpected value %s", r.Raw)
	}
}
