package service

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/0xtaosu/meme-memos/internal/config"
	"github.com/0xtaosu/meme-memos/internal/models"
	"github.com/0xtaosu/meme-memos/internal/paas"
)

const (
	defaultLookback      = 24 * time.Hour
	defaultEnrichTimeout = 30 * time.Second
	defaultMinAmountUSD  = 1000
	statusEnriched       = "enriched"
	statusSkipped        = "skipped"
	reasonDisabled       = "enrichment disabled"
	reasonTimeout        = "timeout"
	reasonInvalidWindow  = "window end is before window start"
)

// TransactionFeed yields large buys for a token inside a time window.
type TransactionFeed interface {
	Query(ctx context.Context, q models.LargeTransactionQuery) iter.Seq2[models.LargeTransaction, error]
}

// Enrichment is the outcome of one enrichment attempt. A skipped result
// carries no transactions.
type Enrichment struct {
	Status       string                    `json:"status"`
	Transactions []models.LargeTransaction `json:"-"`
	Reason       string                    `json:"reason,omitempty"`
}

func Enriched(txs []models.LargeTransaction) Enrichment {
	if txs == nil {
		txs = []models.LargeTransaction{}
	}
	return Enrichment{Status: statusEnriched, Transactions: txs}
}

func Skipped(reason string) Enrichment {
	return Enrichment{Status: statusSkipped, Reason: reason}
}

func (e Enrichment) IsEnriched() bool {
	return e.Status == statusEnriched
}

// Attach stores a copy of the transactions on ev, or clears the field when
// enrichment was skipped.
func (e Enrichment) Attach(ev *models.MemoEvent) {
	if ev == nil {
		return
	}
	if !e.IsEnriched() {
		ev.LargeTransactions = nil
		return
	}
	txs := append([]models.LargeTransaction{}, e.Transactions...)
	ev.LargeTransactions = &txs
}

type EnrichOptions struct {
	End          *time.Time
	MinAmountUSD *decimal.Decimal
}

type EnrichmentService struct {
	feed   TransactionFeed
	cfg    config.EnrichmentConfig
	logger *zap.Logger
}

func NewEnrichmentService(feed TransactionFeed, cfg config.EnrichmentConfig, logger *zap.Logger) *EnrichmentService {
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEnrichTimeout
	}
	if cfg.MinAmountUSD <= 0 {
		cfg.MinAmountUSD = defaultMinAmountUSD
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrichmentService{feed: feed, cfg: cfg, logger: logger}
}

func (s *EnrichmentService) Lookback() time.Duration {
	return s.cfg.Lookback
}

func (s *EnrichmentService) MinAmountUSD() decimal.Decimal {
	return decimal.NewFromFloat(s.cfg.MinAmountUSD)
}

// Window returns [ts - lookback, end], where end defaults to ts.
func (s *EnrichmentService) Window(ts time.Time, opts EnrichOptions) (time.Time, time.Time) {
	end := ts
	if opts.End != nil && !opts.End.IsZero() {
		end = *opts.End
	}
	return ts.Add(-s.cfg.Lookback).UTC(), end.UTC()
}

// Enrich never fails: any provider problem turns into a Skipped result that
// is logged and reported to the audit sink.
func (s *EnrichmentService) Enrich(ctx context.Context, tokenAddress string, ts time.Time, opts EnrichOptions) Enrichment {
	if s == nil || !s.cfg.Enabled || s.feed == nil {
		return Skipped(reasonDisabled)
	}
	start, end := s.Window(ts, opts)
	if end.Before(start) {
		return s.skip(ctx, tokenAddress, reasonInvalidWindow, nil)
	}
	minAmount := s.MinAmountUSD()
	if opts.MinAmountUSD != nil {
		minAmount = *opts.MinAmountUSD
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	began := time.Now()
	txs := []models.LargeTransaction{}
	for tx, err := range s.feed.Query(qctx, models.LargeTransactionQuery{
		TokenAddress: tokenAddress,
		Start:        start,
		End:          end,
		MinAmountUSD: minAmount,
	}) {
		if err != nil {
			reason := err.Error()
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(qctx.Err(), context.DeadlineExceeded) {
				reason = reasonTimeout
			}
			return s.skip(ctx, tokenAddress, reason, err)
		}
		txs = append(txs, tx)
	}
	s.logger.Debug("enrichment finished",
		zap.String("token_address", tokenAddress),
		zap.Int("transactions", len(txs)),
		zap.Duration("took", time.Since(began)),
	)
	return Enriched(txs)
}

func (s *EnrichmentService) skip(ctx context.Context, tokenAddress, reason string, err error) Enrichment {
	s.logger.Warn("large transaction enrichment skipped",
		zap.String("token_address", tokenAddress),
		zap.String("reason", reason),
		zap.Error(err),
	)
	details := map[string]any{"token_address": tokenAddress, "reason": reason}
	if err != nil {
		details["error"] = err.Error()
	}
	paas.LogBestEffortCtx(ctx, "memo_enrichment_skipped", "warn", details)
	return Skipped(reason)
}
