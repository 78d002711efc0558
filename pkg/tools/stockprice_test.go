package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fetchRecorder counts fetch attempts and records when each happened.
type fetchRecorder struct {
	mu    sync.Mutex
	price float64
	err   error
	times []time.Time
}

func (f *fetchRecorder) fetch(ctx context.Context, ticker string) (float64, error) {
	f.mu.Lock()
	f.times = append(f.times, time.Now())
	f.mu.Unlock()
	return f.price, f.err
}

func (f *fetchRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.times)
}

func newTestTool(fetchers ...quoteFetcher) *StockPriceTool {
	return &StockPriceTool{
		cache:    make(map[string]cacheEntry),
		fetchers: fetchers,
		now:      time.Now,
	}
}

func TestGet_CacheIsIdempotentWithinTTL(t *testing.T) {
	rec := &fetchRecorder{price: 100.5}
	tool := newTestTool(rec.fetch)

	first, err := tool.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	second, err := tool.Get(context.Background(), "AAPL")
	require.NoError(t, err)

	require.Equal(t, "100.5", first)
	require.Equal(t, first, second)
	require.Equal(t, 1, rec.count(), "second call within TTL must not fetch")
}

func TestGet_NormalizesTickerCase(t *testing.T) {
	rec := &fetchRecorder{price: 42}
	tool := newTestTool(rec.fetch)

	_, err := tool.Get(context.Background(), "aapl")
	require.NoError(t, err)
	result, err := tool.Get(context.Background(), " AAPL ")
	require.NoError(t, err)

	require.Equal(t, "42", result)
	require.Equal(t, 1, rec.count())
}

func TestGet_RateLimitsDistinctTickers(t *testing.T) {
	rec := &fetchRecorder{price: 10}
	tool := newTestTool(rec.fetch)

	_, err := tool.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = tool.Get(context.Background(), "TSLA")
	require.NoError(t, err)

	require.Equal(t, 2, rec.count())
	gap := rec.times[1].Sub(rec.times[0])
	require.GreaterOrEqual(t, gap, time.Second, "back-to-back cold lookups must be spaced >= 1s")
}

func TestGet_FallbackChainFirstSuccessWins(t *testing.T) {
	broken := &fetchRecorder{err: errors.New("history endpoint down")}
	working := &fetchRecorder{price: 248.5}
	unreached := &fetchRecorder{price: 999}
	tool := newTestTool(broken.fetch, working.fetch, unreached.fetch)

	result, err := tool.Get(context.Background(), "TSLA")
	require.NoError(t, err)
	require.Equal(t, "248.5", result)
	require.Equal(t, 1, broken.count())
	require.Equal(t, 1, working.count())
	require.Zero(t, unreached.count())
}

func TestGet_ApproximatePriceWhenAllFetchesFail(t *testing.T) {
	rec := &fetchRecorder{err: errors.New("offline")}
	tool := newTestTool(rec.fetch)

	result, err := tool.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "175.43", result)
}

func TestGet_UnrecognizedTickerIsAResultNotAnError(t *testing.T) {
	rec := &fetchRecorder{err: errors.New("offline")}
	tool := newTestTool(rec.fetch)

	result, err := tool.Get(context.Background(), "ZZZZ")
	require.NoError(t, err)
	require.Equal(t, "no price data available for ZZZZ (unrecognized ticker)", result)

	// Even the failure string is cached.
	again, err := tool.Get(context.Background(), "ZZZZ")
	require.NoError(t, err)
	require.Equal(t, result, again)
	require.Equal(t, 1, rec.count())
}

func TestFetchHistoryClose_RequestsAcceptedRange(t *testing.T) {
	var gotRange, gotInterval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.URL.Query().Get("range")
		gotInterval = r.URL.Query().Get("interval")
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"regularMarketPrice":124},"indicators":{"quote":[{"close":[120.1,null,123.45]}]}}]}}`)
	}))
	defer srv.Close()

	oldBase := quoteBaseURL
	quoteBaseURL = srv.URL
	defer func() { quoteBaseURL = oldBase }()

	price, err := fetchHistoryClose(srv.Client())(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, 123.45, price, "latest non-null close wins")
	// The chart endpoint rejects arbitrary ranges; 5d is the shortest
	// accepted window spanning the previous close.
	require.Equal(t, "5d", gotRange)
	require.Equal(t, "1d", gotInterval)
}

func TestGet_EmptyTicker(t *testing.T) {
	tool := newTestTool()
	_, err := tool.Get(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRun_ExtractsTickerArgument(t *testing.T) {
	rec := &fetchRecorder{price: 875.28}
	tool := newTestTool(rec.fetch)

	out, err := tool.Run(context.Background(), map[string]any{"ticker": "NVDA"})
	require.NoError(t, err)
	require.Equal(t, "875.28", out)

	_, err = tool.Run(context.Background(), map[string]any{})
	require.ErrorIs(t, err, ErrInvalidInput)
}
