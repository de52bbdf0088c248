package dexscreener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/0xtaosu/meme-memos/internal/cache"
	"github.com/0xtaosu/meme-memos/internal/config"
	"github.com/0xtaosu/meme-memos/internal/models"
)

const defaultBaseURL = "https://api.dexscreener.com"

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dexscreener http %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   cache.Store
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
}

// New returns a client. store may be nil to disable response caching.
func New(cfg config.DexscreenerConfig, httpClient *http.Client, store cache.Store) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Client{baseURL: base, http: httpClient, cache: store, ttl: ttl, timeout: timeout}
}

// Lookup returns metadata for the most liquid pair of tokenAddress, or nil
// when DexScreener lists no pairs for it.
func (c *Client) Lookup(ctx context.Context, tokenAddress string) (*models.TokenMetadata, error) {
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return nil, fmt.Errorf("token address is required")
	}
	body, err := c.tokenPairs(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	return parseBestPair(body)
}

func (c *Client) tokenPairs(ctx context.Context, tokenAddress string) ([]byte, error) {
	key := cache.Key("dexscreener", "token", strings.ToLower(tokenAddress))
	if c.cache != nil {
		if b, found, err := c.cache.Get(ctx, key); err == nil && found && gjson.ValidBytes(b) {
			return b, nil
		}
	}

	// The fetch is shared by every waiter, so it must outlive any one caller.
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		b, err := c.get(fctx, c.baseURL+"/latest/dex/tokens/"+url.PathEscape(tokenAddress))
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			_ = c.cache.Set(fctx, key, b, c.ttl)
		}
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(b)}
	}
	if !gjson.ValidBytes(b) {
		return nil, fmt.Errorf("dexscreener: malformed response")
	}
	return b, nil
}

func parseBestPair(body []byte) (*models.TokenMetadata, error) {
	pairs := gjson.GetBytes(body, "pairs")
	if !pairs.Exists() || pairs.Type == gjson.Null {
		return nil, nil
	}
	if !pairs.IsArray() {
		return nil, fmt.Errorf("dexscreener: pairs is not a list")
	}
	items := pairs.Array()
	if len(items) == 0 {
		return nil, nil
	}

	best := items[0]
	bestLiquidity := toDecimal(best.Get("liquidity.usd"))
	for _, p := range items[1:] {
		liq := toDecimal(p.Get("liquidity.usd"))
		if liq.GreaterThan(bestLiquidity) {
			best, bestLiquidity = p, liq
		}
	}

	meta := &models.TokenMetadata{
		Name:         best.Get("baseToken.name").String(),
		Symbol:       best.Get("baseToken.symbol").String(),
		PriceUSD:     toDecimal(best.Get("priceUsd")),
		LiquidityUSD: bestLiquidity,
		Volume24h:    toDecimal(best.Get("volume.h24")),
		PairAddress:  best.Get("pairAddress").String(),
		DexID:        best.Get("dexId").String(),
	}
	if img := strings.TrimSpace(best.Get("info.imageUrl").String()); img != "" {
		meta.ImageURL = &img
	}
	return meta, nil
}

// toDecimal reads a JSON number or numeric string. Anything else, including
// negative values, becomes zero.
func toDecimal(r gjson.Result) decimal.Decimal {
	var raw string
	switch r.Type {
	case gjson.Number:
		raw = r.Raw
	case gjson.String:
		raw = strings.TrimSpace(r.Str)
	default:
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
