package models

import "github.com/shopspring/decimal"

// TokenMetadata is what the metadata provider reports for the most liquid pair.
type TokenMetadata struct {
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	PriceUSD     decimal.Decimal `json:"priceUsd"`
	LiquidityUSD decimal.Decimal `json:"liquidityUsd"`
	Volume24h    decimal.Decimal `json:"volume24h"`
	ImageURL     *string         `json:"imageUrl,omitempty"`
	PairAddress  string          `json:"pairAddress,omitempty"`
	DexID        string          `json:"dexId,omitempty"`
}
