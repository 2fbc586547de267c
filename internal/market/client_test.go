package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func klineJSON(openMs int64, px float64) string {
	return fmt.Sprintf(`[%d,"%f","%f","%f","%f","%f",%d]`,
		openMs, px, px+1, px-1, px+0.5, 1000.0, openMs+3599999)
}

func TestFetchLatestParsesKlines(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q", got)
		}
		rows := []string{}
		for i := 0; i < 3; i++ {
			rows = append(rows, klineJSON(base+int64(i)*3600000, 100+float64(i)))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(rows, ","))
	}))
	defer server.Close()

	c := NewClient(5 * time.Second)
	c.SetBaseURL(server.URL)

	candles, err := c.FetchLatest(context.Background(), "BTCUSDT", "1h", 3)
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("got %d candles, want 3", len(candles))
	}
	if candles[0].Close != 100.5 {
		t.Errorf("close = %v, want 100.5", candles[0].Close)
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			t.Errorf("candles not strictly ordered at %d", i)
		}
	}
	if got := candles[0].CloseTime.Sub(candles[0].OpenTime); got != 3599999*time.Millisecond {
		t.Errorf("close time offset = %v", got)
	}
}

func TestFetchRangePaginates(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		startMs, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		start := time.UnixMilli(startMs)

		// Serve pages of two hourly bars with open time >= startTime,
		// nothing past hour 4.
		first := start.Truncate(time.Hour)
		if first.Before(start) {
			first = first.Add(time.Hour)
		}
		rows := []string{}
		for i := 0; i < 2; i++ {
			open := first.Add(time.Duration(i) * time.Hour)
			if open.Sub(base) >= 4*time.Hour {
				break
			}
			rows = append(rows, klineJSON(open.UnixMilli(), 100))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(rows, ","))
	}))
	defer server.Close()

	c := NewClient(5 * time.Second)
	c.SetBaseURL(server.URL)

	candles, err := c.FetchRange(context.Background(), "BTCUSDT", "1h", base, base.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(candles) != 4 {
		t.Fatalf("got %d candles, want 4", len(candles))
	}
	if calls < 2 {
		t.Fatalf("expected pagination across calls, got %d call(s)", calls)
	}
}

func TestFetchLatestMalformedField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[[1700000000000,"not-a-number","1","1","1","1",1700003599999]]`)
	}))
	defer server.Close()

	c := NewClient(5 * time.Second)
	c.SetBaseURL(server.URL)
	if _, err := c.FetchLatest(context.Background(), "BTCUSDT", "1h", 1); err == nil {
		t.Fatalf("malformed kline did not error")
	}
}
