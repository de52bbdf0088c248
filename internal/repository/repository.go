package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xtaosu/meme-memos/internal/models"
)

var (
	ErrNotFound   = errors.New("memo: not found")
	ErrValidation = errors.New("memo: invalid input")
	ErrStorage    = errors.New("memo: storage failure")
)

// MemoFields is a partial memo update. Nil fields are left untouched.
// Events replaces the whole event list when non-nil.
type MemoFields struct {
	Name         *string
	Symbol       *string
	PriceUSD     *decimal.Decimal
	LiquidityUSD *decimal.Decimal
	Volume24h    *decimal.Decimal
	ImageURL     *string
	Events       *[]models.MemoEvent
}

// MetadataFields converts a provider lookup into a full metadata update.
func MetadataFields(meta models.TokenMetadata) MemoFields {
	return MemoFields{
		Name:         &meta.Name,
		Symbol:       &meta.Symbol,
		PriceUSD:     &meta.PriceUSD,
		LiquidityUSD: &meta.LiquidityUSD,
		Volume24h:    &meta.Volume24h,
		ImageURL:     meta.ImageURL,
	}
}

// MemoStore persists memos. Every method is atomic with respect to a single
// memo; operations on different memos never block each other.
type MemoStore interface {
	UpsertMemo(ctx context.Context, tokenAddress string, fields MemoFields) (*models.Memo, error)
	UpdateMemo(ctx context.Context, tokenAddress string, fields MemoFields) (*models.Memo, error)
	GetMemo(ctx context.Context, tokenAddress string) (*models.Memo, error)
	ListMemos(ctx context.Context) ([]models.Memo, error)
	AppendEvent(ctx context.Context, tokenAddress string, event models.MemoEvent) (*models.Memo, error)
	DeleteMemo(ctx context.Context, tokenAddress string) (bool, error)
	DeleteEvent(ctx context.Context, tokenAddress, eventID string) (*models.Memo, error)
}

// LargeTransactionStore reads the flat copy of attached transactions. Rows are
// written and removed together with their event by MemoStore.
type LargeTransactionStore interface {
	ListLargeTransactions(ctx context.Context, params ListLargeTransactionsParams) ([]models.LargeTransactionRow, error)
}

type Repository interface {
	MemoStore
	LargeTransactionStore
}

type ListLargeTransactionsParams struct {
	Limit        int
	Offset       int
	TokenAddress *string
	EventID      *string
	Since        *time.Time
	MinAmountUSD *decimal.Decimal
	OrderBy      string
	Asc          *bool
}
