package service

import (
	"context"
	"iter"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/0xtaosu/meme-memos/internal/config"
	"github.com/0xtaosu/meme-memos/internal/db"
	"github.com/0xtaosu/meme-memos/internal/models"
	gormrepository "github.com/0xtaosu/meme-memos/internal/repository/gorm"
	"github.com/0xtaosu/meme-memos/internal/stream"
)

type stubFeed struct {
	mu    sync.Mutex
	calls []models.LargeTransactionQuery
	txs   []models.LargeTransaction
	err   error
	block bool
}

func (f *stubFeed) Query(ctx context.Context, q models.LargeTransactionQuery) iter.Seq2[models.LargeTransaction, error] {
	return func(yield func(models.LargeTransaction, error) bool) {
		f.mu.Lock()
		f.calls = append(f.calls, q)
		f.mu.Unlock()
		if f.block {
			<-ctx.Done()
			yield(models.LargeTransaction{}, ctx.Err())
			return
		}
		if f.err != nil {
			yield(models.LargeTransaction{}, f.err)
			return
		}
		for _, tx := range f.txs {
			if !yield(tx, nil) {
				return
			}
		}
	}
}

func (f *stubFeed) Calls() []models.LargeTransactionQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.LargeTransactionQuery(nil), f.calls...)
}

type stubMetadata struct {
	tokens map[string]*models.TokenMetadata
	err    error
	calls  int

	// during runs inside Lookup, before the result is returned.
	during func(tokenAddress string)
}

func (m *stubMetadata) Lookup(_ context.Context, tokenAddress string) (*models.TokenMetadata, error) {
	m.calls++
	if m.during != nil {
		m.during(tokenAddress)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens[tokenAddress], nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []stream.Message
}

func (p *recordingPublisher) Publish(msg stream.Message) {
	p.mu.Lock()
	p.msgs = append(p.msgs, msg)
	p.mu.Unlock()
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Type)
	}
	return out
}

func pepeMetadata() *models.TokenMetadata {
	img := "https://cdn/pepe.png"
	return &models.TokenMetadata{
		Name:         "Pepe",
		Symbol:       "PEPE",
		PriceUSD:     decimal.RequireFromString("0.00001"),
		LiquidityUSD: decimal.NewFromInt(50000),
		Volume24h:    decimal.NewFromInt(1200),
		ImageURL:     &img,
	}
}

type fixture struct {
	svc       *MemoService
	store     *gormrepository.Store
	feed      *stubFeed
	metadata  *stubMetadata
	publisher *recordingPublisher
}

func newFixture(t *testing.T, cfg config.EnrichmentConfig) *fixture {
	t.Helper()
	handle, err := db.Open(config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "svc.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(handle) })
	require.NoError(t, db.AutoMigrate(handle))

	store := gormrepository.New(handle.Gorm)
	feed := &stubFeed{}
	metadata := &stubMetadata{tokens: map[string]*models.TokenMetadata{"0xABC": pepeMetadata()}}
	pub := &recordingPublisher{}
	svc := NewMemoService(Deps{
		Store:      store,
		Metadata:   metadata,
		Feed:       feed,
		Enrichment: NewEnrichmentService(feed, cfg, nil),
		Publisher:  pub,
	})
	n := 0
	svc.NewID = func() string {
		n++
		return "evt-" + string(rune('a'+n-1))
	}
	return &fixture{svc: svc, store: store, feed: feed, metadata: metadata, publisher: pub}
}

func enabledConfig() config.EnrichmentConfig {
	return config.EnrichmentConfig{Enabled: true}
}
