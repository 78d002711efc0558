package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/comigor/stockagent-go/internal/logger"
)

const (
	cacheTTL       = 30 * time.Second
	minRequestGap  = time.Second
	fetchTimeout   = 10 * time.Second
	quoteUserAgent = "Mozilla/5.0 (compatible; stockagent/1.0)"
)

// quoteBaseURL is a variable so tests can point the fetchers at a stub server.
var quoteBaseURL = "https://query1.finance.yahoo.com"

// approximatePrices is the final fallback when every live quote attempt
// fails. Prices are approximate and intentionally static.
var approximatePrices = map[string]float64{
	"AAPL":  175.43,
	"TSLA":  248.50,
	"NVDA":  875.28,
	"AMZN":  145.86,
	"GOOGL": 138.21,
	"MSFT":  415.26,
	"META":  485.59,
	"NFLX":  425.75,
	"AMD":   142.33,
	"INTC":  23.45,
	"IBM":   243.49,
	"ORCL":  178.92,
}

type cacheEntry struct {
	result     string
	insertedAt time.Time
}

// quoteFetcher is one attempt in the ordered fallback chain. It returns the
// current price for the ticker or an error describing why it could not.
type quoteFetcher func(ctx context.Context, ticker string) (float64, error)

// StockPriceTool looks up stock prices with a TTL cache and a global rate
// limiter. One mutex guards the cache and the pacing decision for every
// ticker and every caller; the network calls themselves run outside it, so
// external request rate is bounded to roughly one per second system-wide
// without serializing the I/O.
type StockPriceTool struct {
	mu          sync.Mutex
	cache       map[string]cacheEntry
	lastRequest time.Time

	fetchers []quoteFetcher
	now      func() time.Time
}

// NewStockPriceTool creates the tool with the live quote fetch chain:
// two-day daily history first, then the fast chart price, then the generic
// quote endpoint.
func NewStockPriceTool() *StockPriceTool {
	client := &http.Client{}
	return &StockPriceTool{
		cache: make(map[string]cacheEntry),
		fetchers: []quoteFetcher{
			fetchHistoryClose(client),
			fetchFastPrice(client),
			fetchQuote(client),
		},
		now: time.Now,
	}
}

type stockPriceArgs struct {
	Ticker string `json:"ticker" jsonschema:"description=The stock ticker symbol (e.g. 'AAPL' for Apple Inc.)."`
}

func (t *StockPriceTool) Name() string { return "get_stock_price" }

func (t *StockPriceTool) Description() string {
	return "Retrieves the current stock price in dollars for a specific ticker symbol."
}

func (t *StockPriceTool) Parameters() any { return SchemaFor(&stockPriceArgs{}) }

// Run extracts the ticker argument and performs the lookup.
func (t *StockPriceTool) Run(ctx context.Context, args map[string]any) (string, error) {
	ticker, _ := args["ticker"].(string)
	return t.Get(ctx, ticker)
}

// Get returns the price result string for the ticker. "Data unavailable" is
// a result string, never an error; only malformed input produces an error.
func (t *StockPriceTool) Get(ctx context.Context, ticker string) (string, error) {
	if strings.TrimSpace(ticker) == "" {
		return "", fmt.Errorf("%w: ticker is empty", ErrInvalidInput)
	}
	key := strings.ToUpper(strings.TrimSpace(ticker))

	if result, ok := t.admit(key); ok {
		return result, nil
	}

	result := t.fetch(ctx, key)

	t.mu.Lock()
	t.cache[key] = cacheEntry{result: result, insertedAt: t.now()}
	t.mu.Unlock()

	return result, nil
}

// admit either serves the ticker from the cache (true) or, under the same
// critical section, waits out the remaining request gap and claims the next
// external request slot (false). Holding the lock through the wait is what
// paces concurrent callers: they queue here, not at the network.
func (t *StockPriceTool) admit(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.cache[key]; ok && t.now().Sub(entry.insertedAt) < cacheTTL {
		logger.L.Debug("stock price served from cache", "ticker", key, "result", entry.result)
		return entry.result, true
	}

	if wait := minRequestGap - t.now().Sub(t.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	t.lastRequest = t.now()
	return "", false
}

// fetch walks the fallback chain, then the approximate table.
func (t *StockPriceTool) fetch(ctx context.Context, key string) string {
	var attemptErrs []error
	for _, fetcher := range t.fetchers {
		attemptCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		price, err := fetcher(attemptCtx, key)
		cancel()
		if err == nil && price > 0 {
			return formatPrice(price)
		}
		if err == nil {
			err = errors.New("price missing or not positive")
		}
		attemptErrs = append(attemptErrs, err)
	}

	logger.L.Warn("all quote sources failed, falling back to approximate prices",
		"ticker", key, "error", errors.Join(attemptErrs...))

	if price, ok := approximatePrices[key]; ok {
		return formatPrice(price)
	}
	return fmt.Sprintf("no price data available for %s (unrecognized ticker)", key)
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func getChart(ctx context.Context, client *http.Client, ticker, rangeParam string) (*chartResponse, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d", quoteBaseURL, ticker, rangeParam)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", quoteUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart: unexpected status code: %d", resp.StatusCode)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, errors.New("chart: empty result")
	}
	return &chart, nil
}

// fetchHistoryClose returns the most recent daily close from a short
// history window. The chart endpoint only accepts fixed range values, so 5d
// is the shortest window that still spans the previous close.
func fetchHistoryClose(client *http.Client) quoteFetcher {
	return func(ctx context.Context, ticker string) (float64, error) {
		chart, err := getChart(ctx, client, ticker, "5d")
		if err != nil {
			return 0, err
		}
		quotes := chart.Chart.Result[0].Indicators.Quote
		if len(quotes) == 0 {
			return 0, errors.New("history: no quote data")
		}
		closes := quotes[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil {
				return *closes[i], nil
			}
		}
		return 0, errors.New("history: no close prices")
	}
}

// fetchFastPrice returns the chart metadata's last traded price.
func fetchFastPrice(client *http.Client) quoteFetcher {
	return func(ctx context.Context, ticker string) (float64, error) {
		chart, err := getChart(ctx, client, ticker, "1d")
		if err != nil {
			return 0, err
		}
		price := chart.Chart.Result[0].Meta.RegularMarketPrice
		if price <= 0 {
			return 0, errors.New("fast: regularMarketPrice missing or zero")
		}
		return price, nil
	}
}

// fetchQuote returns the generic current-quote field.
func fetchQuote(client *http.Client) quoteFetcher {
	return func(ctx context.Context, ticker string) (float64, error) {
		url := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", quoteBaseURL, ticker)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("User-Agent", quoteUserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0, fmt.Errorf("quote: unexpected status code: %d", resp.StatusCode)
		}

		var payload struct {
			QuoteResponse struct {
				Result []struct {
					RegularMarketPrice float64 `json:"regularMarketPrice"`
				} `json:"result"`
			} `json:"quoteResponse"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return 0, err
		}
		if len(payload.QuoteResponse.Result) == 0 {
			return 0, errors.New("quote: empty result")
		}
		price := payload.QuoteResponse.Result[0].RegularMarketPrice
		if price <= 0 {
			return 0, errors.New("quote: regularMarketPrice missing or zero")
		}
		return price, nil
	}
}
