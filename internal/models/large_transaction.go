package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LargeTransaction is a single qualifying buy. Values are never changed after
// they are attached to an event.
type LargeTransaction struct {
	AmountUSD         decimal.Decimal `json:"amount_usd"`
	BlockTime         time.Time       `json:"block_time"`
	BuyerAddress      string          `json:"buyer_address"`
	TokenBoughtAmount decimal.Decimal `json:"token_bought_amount"`
	TxHash            string          `json:"tx_hash"`
}

// LargeTransactionRow is the flat, queryable copy of an attached transaction.
// The event snapshot stays the source of truth.
type LargeTransactionRow struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID           string          `gorm:"type:varchar(64);not null;index" json:"event_id"`
	TokenAddress      string          `gorm:"type:varchar(128);not null;index" json:"token_address"`
	AmountUSD         decimal.Decimal `gorm:"column:amount_usd;type:numeric(38,18);not null" json:"amount_usd"`
	BlockTime         time.Time       `gorm:"not null;index" json:"block_time"`
	BuyerAddress      string          `gorm:"type:varchar(128);not null;index" json:"buyer_address"`
	TokenBoughtAmount decimal.Decimal `gorm:"type:numeric(38,18);not null" json:"token_bought_amount"`
	TxHash            string          `gorm:"type:varchar(128);not null;index" json:"tx_hash"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (LargeTransactionRow) TableName() string {
	return "large_transactions"
}

func (r LargeTransactionRow) Transaction() LargeTransaction {
	return LargeTransaction{
		AmountUSD:         r.AmountUSD,
		BlockTime:         r.BlockTime,
		BuyerAddress:      r.BuyerAddress,
		TokenBoughtAmount: r.TokenBoughtAmount,
		TxHash:            r.TxHash,
	}
}

func NewLargeTransactionRows(tokenAddress, eventID string, txs []LargeTransaction) []LargeTransactionRow {
	out := make([]LargeTransactionRow, 0, len(txs))
	for _, tx := range txs {
		out = append(out, LargeTransactionRow{
			EventID:           eventID,
			TokenAddress:      tokenAddress,
			AmountUSD:         tx.AmountUSD,
			BlockTime:         tx.BlockTime,
			BuyerAddress:      tx.BuyerAddress,
			TokenBoughtAmount: tx.TokenBoughtAmount,
			TxHash:            tx.TxHash,
		})
	}
	return out
}

// LargeTransactionQuery selects buys of TokenAddress in [Start, End] worth at
// least MinAmountUSD.
type LargeTransactionQuery struct {
	TokenAddress string
	Start        time.Time
	End          time.Time
	MinAmountUSD decimal.Decimal
}
