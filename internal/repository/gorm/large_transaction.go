package gormrepository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/0xtaosu/meme-memos/internal/models"
	"github.com/0xtaosu/meme-memos/internal/repository"
)

// saveLargeTransactionRows replaces the flat rows for one event. It runs inside
// the transaction that holds the memo lock.
func saveLargeTransactionRows(tx *gorm.DB, tokenAddress, eventID string, txs []models.LargeTransaction) error {
	if err := tx.Where("event_id = ?", eventID).Delete(&models.LargeTransactionRow{}).Error; err != nil {
		return err
	}
	return createInBatches(tx, models.NewLargeTransactionRows(tokenAddress, eventID, txs), 200)
}

func (s *Store) ListLargeTransactions(ctx context.Context, params repository.ListLargeTransactionsParams) ([]models.LargeTransactionRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.LargeTransactionRow{})
	if params.TokenAddress != nil && strings.TrimSpace(*params.TokenAddress) != "" {
		query = query.Where("token_address = ?", strings.TrimSpace(*params.TokenAddress))
	}
	if params.EventID != nil && strings.TrimSpace(*params.EventID) != "" {
		query = query.Where("event_id = ?", strings.TrimSpace(*params.EventID))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("block_time >= ?", params.Since.UTC())
	}
	if params.MinAmountUSD != nil {
		query = query.Where("amount_usd >= ?", *params.MinAmountUSD)
	}
	query = applyOrder(query, largeTxOrderColumn(params.OrderBy), params.Asc, "block_time")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	items := []models.LargeTransactionRow{}
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, wrapErr("list large transactions", err)
	}
	return items, nil
}

func largeTxOrderColumn(orderBy string) string {
	switch strings.TrimSpace(orderBy) {
	case "amount_usd", "block_time", "token_bought_amount", "created_at":
		return strings.TrimSpace(orderBy)
	default:
		return ""
	}
}
