package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// API clients expect JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Memo is the tracked record for one token. TokenAddress never changes once stored.
type Memo struct {
	TokenAddress string          `gorm:"primaryKey;type:varchar(128);comment:token contract address"`
	Name         string          `gorm:"type:varchar(255);not null;default:'';comment:token name"`
	Symbol       string          `gorm:"type:varchar(64);not null;default:'';comment:token symbol"`
	PriceUSD     decimal.Decimal `gorm:"column:price_usd;type:numeric(38,18);not null;default:0"`
	LiquidityUSD decimal.Decimal `gorm:"column:liquidity_usd;type:numeric(38,18);not null;default:0"`
	Volume24h    decimal.Decimal `gorm:"column:volume_24h;type:numeric(38,18);not null;default:0"`
	ImageURL     *string         `gorm:"type:text"`
	Events       []MemoEvent     `gorm:"foreignKey:TokenAddress;references:TokenAddress;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index"`
	LastUpdated  time.Time       `gorm:"not null;index;comment:last metadata or event change"`
}

func (Memo) TableName() string {
	return "memos"
}

type memoLiquidity struct {
	USD decimal.Decimal `json:"usd"`
}

type memoVolume struct {
	H24 decimal.Decimal `json:"h24"`
}

type memoJSON struct {
	TokenAddress string          `json:"tokenAddress"`
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	PriceUSD     decimal.Decimal `json:"priceUsd"`
	Liquidity    memoLiquidity   `json:"liquidity"`
	Volume       memoVolume      `json:"volume"`
	ImageURL     *string         `json:"imageUrl,omitempty"`
	Events       []MemoEvent     `json:"events"`
	LastUpdated  time.Time       `json:"lastUpdated"`
}

func (m Memo) MarshalJSON() ([]byte, error) {
	events := m.Events
	if events == nil {
		events = []MemoEvent{}
	}
	return json.Marshal(memoJSON{
		TokenAddress: m.TokenAddress,
		Name:         m.Name,
		Symbol:       m.Symbol,
		PriceUSD:     m.PriceUSD,
		Liquidity:    memoLiquidity{USD: m.LiquidityUSD},
		Volume:       memoVolume{H24: m.Volume24h},
		ImageURL:     m.ImageURL,
		Events:       events,
		LastUpdated:  m.LastUpdated.UTC(),
	})
}

func (m *Memo) UnmarshalJSON(b []byte) error {
	var raw memoJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*m = Memo{
		TokenAddress: raw.TokenAddress,
		Name:         raw.Name,
		Symbol:       raw.Symbol,
		PriceUSD:     raw.PriceUSD,
		LiquidityUSD: raw.Liquidity.USD,
		Volume24h:    raw.Volume.H24,
		ImageURL:     raw.ImageURL,
		Events:       raw.Events,
		LastUpdated:  raw.LastUpdated,
	}
	return nil
}
