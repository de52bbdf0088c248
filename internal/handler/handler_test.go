package handler

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/0xtaosu/meme-memos/internal/config"
	"github.com/0xtaosu/meme-memos/internal/db"
	"github.com/0xtaosu/meme-memos/internal/models"
	gormrepository "github.com/0xtaosu/meme-memos/internal/repository/gorm"
	"github.com/0xtaosu/meme-memos/internal/service"
	"github.com/0xtaosu/meme-memos/internal/stream"
)

const testToken = "Bearer test-token"

type fakeFeed struct {
	mu  sync.Mutex
	txs []models.LargeTransaction
	err error
}

func (f *fakeFeed) Query(context.Context, models.LargeTransactionQuery) iter.Seq2[models.LargeTransaction, error] {
	f.mu.Lock()
	txs, err := f.txs, f.err
	f.mu.Unlock()
	return func(yield func(models.LargeTransaction, error) bool) {
		if err != nil {
			yield(models.LargeTransaction{}, err)
			return
		}
		for _, tx := range txs {
			if !yield(tx, nil) {
				return
			}
		}
	}
}

type fakeMetadata struct {
	mu     sync.Mutex
	tokens map[string]*models.TokenMetadata
	err    error
}

func (m *fakeMetadata) Lookup(_ context.Context, addr string) (*models.TokenMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens[addr], nil
}

type testServer struct {
	engine   *gin.Engine
	handle   *db.DB
	hub      *stream.Hub
	feed     *fakeFeed
	metadata *fakeMetadata
}

func fakeAuth(c *gin.Context) {
	if c.GetHeader("Authorization") != testToken {
		Error(c, http.StatusUnauthorized, "missing bearer token", nil)
		c.Abort()
		return
	}
	c.Next()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handle, err := db.Open(config.DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "http.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(handle) })
	require.NoError(t, db.AutoMigrate(handle))

	feed := &fakeFeed{}
	metadata := &fakeMetadata{tokens: map[string]*models.TokenMetadata{
		"0xABC": {Name: "Pepe", Symbol: "PEPE", PriceUSD: decimal.RequireFromString("0.00001"), LiquidityUSD: decimal.NewFromInt(50000)},
	}}
	hub := stream.NewHub(8)
	t.Cleanup(hub.Close)

	svc := service.NewMemoService(service.Deps{
		Store:      gormrepository.New(handle.Gorm),
		Metadata:   metadata,
		Feed:       feed,
		Enrichment: service.NewEnrichmentService(feed, config.EnrichmentConfig{Enabled: true}, nil),
		Publisher:  hub,
	})

	r := gin.New()
	memos := &MemoHandler{Service: svc}
	(&StreamHandler{Hub: hub}).Register(r)
	memos.Register(r, fakeAuth)
	(&LargeTransactionHandler{Service: svc}).Register(r, fakeAuth)
	(&HealthHandler{DB: handle, Hub: hub}).Register(r)

	return &testServer{engine: r, handle: handle, hub: hub, feed: feed, metadata: metadata}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func (s *testServer) do(t *testing.T, method, path, body string, authed bool) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", testToken)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

var errBoom = errors.New("boom")
