package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtaosu/meme-memos/internal/models"
	"github.com/0xtaosu/meme-memos/internal/repository"
	gormrepository "github.com/0xtaosu/meme-memos/internal/repository/gorm"
	"github.com/0xtaosu/meme-memos/internal/stream"
)

func TestCreateMemo_StoresMetadata(t *testing.T) {
	f := newFixture(t, enabledConfig())

	memo, err := f.svc.CreateMemo(context.Background(), " 0xABC ")
	require.NoError(t, err)
	assert.Equal(t, "0xABC", memo.TokenAddress)
	assert.Equal(t, "PEPE", memo.Symbol)
	assert.True(t, memo.LiquidityUSD.Equal(decimal.NewFromInt(50000)))
	require.NotNil(t, memo.ImageURL)
	assert.Empty(t, memo.Events)
	assert.Equal(t, []string{stream.TypeMemoUpserted}, f.publisher.Types())
}

func TestCreateMemo_UnknownTokenWritesNothing(t *testing.T) {
	f := newFixture(t, enabledConfig())

	_, err := f.svc.CreateMemo(context.Background(), "0xUNKNOWN")
	require.ErrorIs(t, err, ErrTokenNotFound)
	require.ErrorIs(t, err, ErrNotFound)

	memos, err := f.svc.ListMemos(context.Background())
	require.NoError(t, err)
	assert.Empty(t, memos)
}

func TestCreateMemo_ProviderFailure(t *testing.T) {
	f := newFixture(t, enabledConfig())
	f.metadata.err = errors.New("connection reset")

	_, err := f.svc.CreateMemo(context.Background(), "0xABC")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestCreateMemo_EmptyAddress(t *testing.T) {
	f := newFixture(t, enabledConfig())
	_, err := f.svc.CreateMemo(context.Background(), "")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, f.metadata.calls)
}

func TestAppendEvent_AttachesEnrichment(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	ts := time.Date(2024, 10, 12, 15, 0, 0, 0, time.UTC)
	f.feed.txs = []models.LargeTransaction{{
		AmountUSD:    decimal.NewFromInt(5000),
		BlockTime:    ts.Add(-time.Hour),
		BuyerAddress: "0xwhale",
		TxHash:       "0x1",
	}}

	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)
	memo, enrichment, err := f.svc.AppendEvent(ctx, "0xABC", EventDraft{Timestamp: ts, Description: "listing"})
	require.NoError(t, err)

	assert.True(t, enrichment.IsEnriched())
	require.Len(t, memo.Events, 1)
	ev := memo.Events[0]
	assert.Equal(t, "evt-a", ev.ID)
	require.NotNil(t, ev.LargeTransactions)
	require.Len(t, *ev.LargeTransactions, 1)
	assert.Equal(t, "0xwhale", (*ev.LargeTransactions)[0].BuyerAddress)

	calls := f.feed.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, ts.Add(-24*time.Hour), calls[0].Start)
	assert.Equal(t, ts, calls[0].End)
	assert.True(t, calls[0].MinAmountUSD.Equal(decimal.NewFromInt(1000)))

	addr := "0xABC"
	rows, err := f.svc.ListStoredLargeTransactions(ctx, repository.ListLargeTransactionsParams{TokenAddress: &addr})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "evt-a", rows[0].EventID)

	assert.Equal(t, []string{stream.TypeMemoUpserted, stream.TypeEventAppended}, f.publisher.Types())
}

func TestAppendEvent_EmptyEnrichment(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)

	memo, enrichment, err := f.svc.AppendEvent(ctx, "0xABC", EventDraft{Timestamp: time.Now(), Description: "quiet"})
	require.NoError(t, err)
	assert.True(t, enrichment.IsEnriched())
	require.NotNil(t, memo.Events[0].LargeTransactions)
	assert.Empty(t, *memo.Events[0].LargeTransactions)
}

func TestAppendEvent_ProviderFailureStillAppends(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	f.feed.err = errors.New("dune API error (500)")
	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)

	memo, enrichment, err := f.svc.AppendEvent(ctx, "0xABC", EventDraft{Timestamp: time.Now(), Description: "tweet"})
	require.NoError(t, err)
	assert.False(t, enrichment.IsEnriched())
	assert.Contains(t, enrichment.Reason, "500")
	require.Len(t, memo.Events, 1)
	assert.Nil(t, memo.Events[0].LargeTransactions)
}

func TestAppendEvent_EnrichmentTimeout(t *testing.T) {
	cfg := enabledConfig()
	cfg.Timeout = 20 * time.Millisecond
	f := newFixture(t, cfg)
	ctx := context.Background()
	f.feed.block = true
	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)

	memo, enrichment, err := f.svc.AppendEvent(ctx, "0xABC", EventDraft{Timestamp: time.Now(), Description: "slow"})
	require.NoError(t, err)
	assert.Equal(t, "timeout", enrichment.Reason)
	assert.Nil(t, memo.Events[0].LargeTransactions)
}

func TestAppendEvent_DisabledEnrichment(t *testing.T) {
	f := newFixture(t, enabledConfig())
	f.svc.enricher = NewEnrichmentService(f.feed, enabledConfig(), nil)
	f.svc.enricher.cfg.Enabled = false
	ctx := context.Background()
	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)

	memo, enrichment, err := f.svc.AppendEvent(ctx, "0xABC", EventDraft{Timestamp: time.Now(), Description: "x"})
	require.NoError(t, err)
	assert.False(t, enrichment.IsEnriched())
	assert.Nil(t, memo.Events[0].LargeTransactions)
	assert.Empty(t, f.feed.Calls())
}

func TestAppendEvent_OverridesWindowAndThreshold(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)

	ts := time.Date(2024, 10, 12, 0, 0, 0, 0, time.UTC)
	end := ts.Add(6 * time.Hour)
	min := decimal.NewFromInt(25000)
	_, _, err = f.svc.AppendEvent(ctx, "0xABC", EventDraft{
		Timestamp:     ts,
		Description:   "x",
		EnrichmentEnd: &end,
		MinAmountUSD:  &min,
	})
	require.NoError(t, err)
	calls := f.feed.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, end, calls[0].End)
	assert.True(t, calls[0].MinAmountUSD.Equal(min))
}

func TestAppendEvent_ValidationHappensBeforeIO(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)

	zero := decimal.Zero
	early := time.Now().Add(-48 * time.Hour)
	cases := map[string]EventDraft{
		"missing timestamp":   {Description: "x"},
		"blank description":   {Timestamp: time.Now(), Description: "  "},
		"zero threshold":      {Timestamp: time.Now(), Description: "x", MinAmountUSD: &zero},
		"end before lookback": {Timestamp: time.Now(), Description: "x", EnrichmentEnd: &early},
	}
	for name, draft := range cases {
		_, _, err := f.svc.AppendEvent(ctx, "0xABC", draft)
		require.ErrorIs(t, err, ErrValidation, name)
	}
	assert.Empty(t, f.feed.Calls())
}

func TestAppendEvent_MissingMemoSkipsEnrichment(t *testing.T) {
	f := newFixture(t, enabledConfig())
	_, _, err := f.svc.AppendEvent(context.Background(), "0xNOPE", EventDraft{Timestamp: time.Now(), Description: "x"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.feed.Calls())
}

func TestAppendEvent_BlankLinkDropped(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)

	blank := "   "
	memo, _, err := f.svc.AppendEvent(ctx, "0xABC", EventDraft{Timestamp: time.Now(), Description: "x", Link: &blank})
	require.NoError(t, err)
	assert.Nil(t, memo.Events[0].Link)
}

func TestDeleteFlows(t *testing.T) {
	f := newFixture(t, enabledConfig())
	ctx := context.Background()
	_, err := f.svc.CreateMemo(ctx, "0xABC")
	require.NoError(t, err)
	_, _, err = f.svc.AppendEvent(ctx, "0xABC", EventDraft{Timestamp: time.Now(), Description: "one"})
	require.NoError(t, err)

	_, err = f.svc.DeleteEvent(ctx, "0xABC", "")
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.DeleteEvent(ctx, "0xABC", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	memo, err := f.svc.DeleteEvent(ctx, "0xABC", "evt-a")
	require.NoError(t, err)
	assert.Empty(t, memo.Events)

	require.NoError(t, f.svc.DeleteMemo(ctx, "0xABC"))
	require.ErrorIs(t, f.svc.DeleteMemo(ctx, "0xABC"), ErrNotFound)

	_, err = f.svc.GetMemo(ctx, "0xABC")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{
		stream.TypeMemoUpserted,
		stream.TypeEventAppended,
		stream.TypeEventDeleted,
		stream.TypeMemoDeleted,
	}, f.publisher.Types())
}

func TestCreateMemo_UnconfiguredStore(t *testing.T) {
	var store *gormrepository.Store
	svc := NewMemoService(Deps{
		Store:    store,
		Metadata: &stubMetadata{tokens: map[string]*models.TokenMetadata{"0xABC": pepeMetadata()}},
	})

	_, err := svc.CreateMemo(context.Background(), "0xABC")
	require.ErrorIs(t, err, ErrStorage)
}
