package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"perpsim/internal/models"
)

const defaultBaseURL = "https://fapi.binance.com"

// pageLimit is the exchange's maximum klines per request.
const pageLimit = 1500

// Client fetches USD-M futures klines with rate limiting and retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     zerolog.Logger
}

// NewClient creates a rate-limited kline client.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5), // 5 requests per second
		baseURL:    defaultBaseURL,
		logger:     log.With().Str("component", "market_client").Logger(),
	}
}

// SetBaseURL overrides the exchange endpoint, used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// FetchRange retrieves the ordered candle sequence between start and end,
// paginating by open time. Partial data is returned as far as the cursor got
// together with the error that stopped it.
func (c *Client) FetchRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.Candle, error) {
	var out []models.Candle
	cursor := start

	for cursor.Before(end) {
		page, err := c.fetch(ctx, symbol, interval, &cursor, &end, pageLimit)
		if err != nil {
			return out, fmt.Errorf("fetching range page from %s: %w", cursor.Format(time.RFC3339), err)
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		cursor = page[len(page)-1].OpenTime.Add(time.Millisecond)
	}

	c.logger.Debug().Int("count", len(out)).Str("symbol", symbol).Msg("fetched historical candles")
	return out, nil
}

// FetchLatest retrieves the most recent candles, ending with the still-forming
// bar. Callers must discard that last bar before signal evaluation.
func (c *Client) FetchLatest(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if limit <= 0 || limit > pageLimit {
		limit = pageLimit
	}
	candles, err := c.fetch(ctx, symbol, interval, nil, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching latest candles: %w", err)
	}
	return candles, nil
}

func (c *Client) fetch(ctx context.Context, symbol, interval string, start, end *time.Time, limit int) ([]models.Candle, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if start != nil {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if end != nil {
		q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	reqURL := fmt.Sprintf("%s/fapi/v1/klines?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	// Use exponential backoff for retries
	var body []byte
	operation := func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("non-200 status code: %d", resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.Error().Err(err).Msg("error parsing klines JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("parsing kline: %w", err)
		}
		candles = append(candles, candle)
	}

	// The exchange returns ascending open time; keep the guarantee explicit.
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	return candles, nil
}

// parseKline decodes one exchange kline array:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(k []json.RawMessage) (models.Candle, error) {
	if len(k) < 7 {
		return models.Candle{}, fmt.Errorf("kline has %d fields, want at least 7", len(k))
	}

	var openMs, closeMs int64
	if err := json.Unmarshal(k[0], &openMs); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(k[6], &closeMs); err != nil {
		return models.Candle{}, fmt.Errorf("close time: %w", err)
	}

	fields := make([]float64, 5)
	for idx := 1; idx <= 5; idx++ {
		var s string
		if err := json.Unmarshal(k[idx], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", idx, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", idx, err)
		}
		fields[idx-1] = v
	}

	return models.Candle{
		OpenTime:  time.UnixMilli(openMs).UTC(),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		CloseTime: time.UnixMilli(closeMs).UTC(),
	}, nil
}
