// Package market fetches daily kline history from the upstream quote
// service. The endpoint wants a session cookie plus an acs-token header
// and answers with a packed string payload rather than structured JSON.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"quant-core/internal/stock"
)

// DefaultBaseURL is the production quote endpoint.
const DefaultBaseURL = "https://finance.pae.baidu.com"

const quotationPath = "/vapi/v1/getquotation"

// Credentials carries the session material the quote endpoint expects.
// Both values expire server-side and have to be refreshed by hand.
type Credentials struct {
	Cookie string
	Token  string
}

// Provider is a rate-limited REST client for the quote service.
type Provider struct {
	BaseURL    string
	HTTPClient *http.Client

	limiter *rate.Limiter
}

// NewProvider builds a quote client capped at perSec requests per
// second. Pass an empty baseURL for the production endpoint.
func NewProvider(baseURL string, perSec float64, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if perSec <= 0 {
		perSec = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// AllBars fetches the complete daily history for one stock.
func (p *Provider) AllBars(ctx context.Context, code, name string, creds Credentials) ([]stock.Bar, error) {
	return p.fetch(ctx, code, name, creds, nil)
}

// RecentBars fetches the latest count daily bars. The upstream counts
// backwards from end_time, which rolls to tomorrow once the session is
// underway so the running day is included.
func (p *Provider) RecentBars(ctx context.Context, code, name string, count int, creds Credentials) ([]stock.Bar, error) {
	end := time.Now()
	if end.Hour() > 10 {
		end = end.AddDate(0, 0, 1)
	}
	extra := url.Values{}
	extra.Set("end_time", end.Format(stock.DateLayout))
	extra.Set("count", strconv.Itoa(count))
	return p.fetch(ctx, code, name, creds, extra)
}

func (p *Provider) fetch(ctx context.Context, code, name string, creds Credentials, extra url.Values) ([]stock.Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("srcid", "5353")
	params.Set("pointType", "string")
	params.Set("group", "quotation_kline_ab")
	params.Set("query", code)
	params.Set("code", code)
	params.Set("market_type", "ab")
	params.Set("newFormat", "1")
	params.Set("name", name)
	params.Set("is_kc", "0")
	params.Set("ktype", "day")
	params.Set("finClientType", "pc")
	for k, vs := range extra {
		for _, v := range vs {
			params.Set(k, v)
		}
	}

	u := p.BaseURL + quotationPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/vnd.finance-web.v1+json")
	req.Header.Set("accept-language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("acs-token", creds.Token)
	req.Header.Set("cookie", creds.Cookie)
	req.Header.Set("referer", "https://gushitong.baidu.com/")

	res, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quotation %s: %w", code, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read quotation %s: %w", code, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quotation %s status %d", code, res.StatusCode)
	}

	bars, err := parseQuotation(body)
	if err != nil {
		return nil, fmt.Errorf("parse quotation %s: %w", code, err)
	}
	return bars, nil
}

// parseQuotation unpacks the kline string payload. Rows are separated
// by semicolons, fields by commas, with "--" standing in for absent
// values. Field order after dropping placeholders: index, date, open,
// close, volume, high, low.
func parseQuotation(body []byte) ([]stock.Bar, error) {
	var resp struct {
		Result struct {
			NewMarketData struct {
				MarketData string `json:"marketData"`
			} `json:"newMarketData"`
		} `json:"Result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	raw := resp.Result.NewMarketData.MarketData
	if raw == "" {
		return nil, nil
	}

	var bars []stock.Bar
	for _, row := range strings.Split(raw, ";") {
		fields := make([]string, 0, 8)
		for _, f := range strings.Split(row, ",") {
			if f != "--" {
				fields = append(fields, f)
			}
		}
		if len(fields) < 7 {
			continue
		}
		date, err := stock.ParseDate(fields[1])
		if err != nil {
			continue
		}
		open, err1 := strconv.ParseFloat(fields[2], 64)
		close_, err2 := strconv.ParseFloat(fields[3], 64)
		volume, err3 := strconv.ParseFloat(fields[4], 64)
		high, err4 := strconv.ParseFloat(fields[5], 64)
		low, err5 := strconv.ParseFloat(fields[6], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		bars = append(bars, stock.Bar{
			Date: date, Open: open, High: high, Low: low,
			Close: close_, Volume: volume,
		})
	}
	stock.SortBars(bars)
	return bars, nil
}
