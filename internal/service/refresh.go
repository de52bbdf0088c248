package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/0xtaosu/meme-memos/internal/models"
	"github.com/0xtaosu/meme-memos/internal/repository"
	"github.com/0xtaosu/meme-memos/internal/stream"
)

// RefreshMemo re-reads metadata for an existing memo. Events are untouched.
func (s *MemoService) RefreshMemo(ctx context.Context, tokenAddress string) (*models.Memo, error) {
	tokenAddress, err := normalizeAddress(tokenAddress)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetMemo(ctx, tokenAddress); err != nil {
		return nil, err
	}
	meta, err := s.lookup(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	// The memo may have been deleted during the lookup; an update never recreates it.
	memo, err := s.store.UpdateMemo(ctx, tokenAddress, repository.MetadataFields(*meta))
	if err != nil {
		return nil, err
	}
	s.publish(stream.TypeMemoUpserted, memo, "")
	return memo, nil
}

type RefreshReport struct {
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// RefreshAll refreshes every memo, waiting pacing between lookups. A failed
// memo is logged and skipped.
func (s *MemoService) RefreshAll(ctx context.Context, pacing time.Duration) (RefreshReport, error) {
	var report RefreshReport
	memos, err := s.store.ListMemos(ctx)
	if err != nil {
		return report, err
	}
	for i, m := range memos {
		if i > 0 && pacing > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(pacing):
			}
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, err := s.RefreshMemo(ctx, m.TokenAddress); err != nil {
			report.Failed++
			level := s.logger.Warn
			if errors.Is(err, ErrTokenNotFound) {
				level = s.logger.Info
			}
			level("memo refresh failed", zap.String("token_address", m.TokenAddress), zap.Error(err))
			continue
		}
		report.Refreshed++
	}
	s.logger.Info("memo refresh finished", zap.Int("refreshed", report.Refreshed), zap.Int("failed", report.Failed))
	return report, nil
}

// QueryLargeTransactions runs a direct feed query. The window may not be
// longer than the enrichment lookback.
func (s *MemoService) QueryLargeTransactions(ctx context.Context, q models.LargeTransactionQuery) ([]models.LargeTransaction, error) {
	tokenAddress, err := normalizeAddress(q.TokenAddress)
	if err != nil {
		return nil, err
	}
	q.TokenAddress = tokenAddress
	if q.Start.IsZero() || q.End.IsZero() {
		return nil, fmt.Errorf("start and end are required: %w", ErrValidation)
	}
	if q.End.Before(q.Start) {
		return nil, fmt.Errorf("end is before start: %w", ErrValidation)
	}
	lookback := s.Lookback()
	if q.End.Sub(q.Start) > lookback {
		return nil, fmt.Errorf("window is longer than %s: %w", lookback, ErrValidation)
	}
	if q.MinAmountUSD.IsZero() && s.enricher != nil {
		q.MinAmountUSD = s.enricher.MinAmountUSD()
	}
	if q.MinAmountUSD.IsNegative() {
		return nil, fmt.Errorf("min amount must not be negative: %w", ErrValidation)
	}
	if s.feed == nil {
		return nil, fmt.Errorf("no transaction feed: %w", ErrUpstreamUnavailable)
	}

	out := []models.LargeTransaction{}
	for tx, err := range s.feed.Query(ctx, q) {
		if err != nil {
			return nil, fmt.Errorf("query large transactions: %w: %w", ErrUpstreamUnavailable, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *MemoService) ListStoredLargeTransactions(ctx context.Context, params repository.ListLargeTransactionsParams) ([]models.LargeTransactionRow, error) {
	return s.store.ListLargeTransactions(ctx, params)
}

// Lookback is the longest window QueryLargeTransactions accepts.
func (s *MemoService) Lookback() time.Duration {
	if s.enricher == nil {
		return defaultLookback
	}
	return s.enricher.Lookback()
}
