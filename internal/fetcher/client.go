package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://quantapi.51ifind.com/api/v1"
	dateLayout     = "2006-01-02"

	realtimePath    = "/real_time_quotation"
	historyPath     = "/cmd_history_quotation"
	edbPath         = "/edb_service"
	statisticsPath  = "/data_statistics"
	tradeDatesPath  = "/get_trade_dates"
	maxErrorPayload = 512
)

// Options configure the iFinD HTTP client.
type Options struct {
	BaseURL      string
	RefreshToken string
	TokenCache   string
	TokenTTL     time.Duration
	Timeout      time.Duration
	TokenTimeout time.Duration
	UserAgent    string
}

// Client talks to the iFinD quant HTTP API. Every endpoint is a JSON POST
// authenticated by the access_token header.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	tokens  *TokenSource
}

// New builds a client. The token source shares the base URL.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "ifind_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		tokens: NewTokenSource(TokenOptions{
			BaseURL:      baseURL,
			RefreshToken: opts.RefreshToken,
			CachePath:    opts.TokenCache,
			TTL:          opts.TokenTTL,
			Timeout:      opts.TokenTimeout,
		}, logger),
	}
}

// Tokens exposes the underlying token source.
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

type envelope struct {
	ErrorCode int             `json:"errorcode"`
	ErrMsg    string          `json:"errmsg"`
	Tables    json.RawMessage `json:"tables"`
	Data      json.RawMessage `json:"data"`
}

type table struct {
	THSCode string             `json:"thscode"`
	Time    []string           `json:"time"`
	Table   map[string][]Value `json:"table"`
}

// RealtimeQuotes fetches the latest quote row for each code.
func (c *Client) RealtimeQuotes(ctx context.Context, codes []string) ([]Quote, error) {
	if len(codes) == 0 {
		return nil, errors.New("no codes requested")
	}

	body := map[string]any{
		"codes":      strings.Join(codes, ","),
		"indicators": strings.Join(RealtimeIndicators, ","),
	}

	env, err := c.post(ctx, realtimePath, body)
	if err != nil {
		return nil, err
	}
	tables, err := decodeTables(realtimePath, env)
	if err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(tables))
	for _, t := range tables {
		q := Quote{
			Code:         strings.ToUpper(t.THSCode),
			Latest:       Value{At(t.Table["latest"], 0)},
			Open:         Value{At(t.Table["open"], 0)},
			High:         Value{At(t.Table["high"], 0)},
			Low:          Value{At(t.Table["low"], 0)},
			Volume:       Value{At(t.Table["volume"], 0)},
			Amount:       Value{At(t.Table["amount"], 0)},
			OpenInterest: Value{At(t.Table["openInterest"], 0)},
			ChangeRatio:  Value{At(t.Table["changeRatio"], 0)},
		}
		if len(t.Time) > 0 {
			q.Time = t.Time[0]
		}
		quotes = append(quotes, q)
	}

	c.logger.Debug().Int("quotes", len(quotes)).Msg("realtime quotes fetched")
	return quotes, nil
}

// HistoryQuotes fetches daily rows between from and to inclusive.
func (c *Client) HistoryQuotes(ctx context.Context, codes []string, indicators []string, from, to time.Time) ([]Series, error) {
	if len(codes) == 0 {
		return nil, errors.New("no codes requested")
	}
	if len(indicators) == 0 {
		indicators = DailyIndicators
	}

	body := map[string]any{
		"codes":        strings.Join(codes, ","),
		"indicators":   strings.Join(indicators, ","),
		"startdate":    from.Format(dateLayout),
		"enddate":      to.Format(dateLayout),
		"functionpara": map[string]string{"Fill": "Blank"},
	}

	env, err := c.post(ctx, historyPath, body)
	if err != nil {
		return nil, err
	}
	tables, err := decodeTables(historyPath, env)
	if err != nil {
		return nil, err
	}

	out := make([]Series, 0, len(tables))
	for _, t := range tables {
		out = append(out, Series{Code: t.THSCode, Dates: t.Time, Columns: t.Table})
	}
	return out, nil
}

// EDBSeries fetches one economic database indicator.
func (c *Client) EDBSeries(ctx context.Context, id string, from, to time.Time) ([]Point, error) {
	if id == "" {
		return nil, errors.New("edb indicator id required")
	}

	body := map[string]any{
		"indicators": id,
		"startdate":  from.Format(dateLayout),
		"enddate":    to.Format(dateLayout),
	}

	env, err := c.post(ctx, edbPath, body)
	if err != nil {
		return nil, err
	}
	tables, err := decodeTables(edbPath, env)
	if err != nil {
		return nil, err
	}

	var points []Point
	for _, t := range tables {
		column := t.Table[id]
		if column == nil {
			column = t.Table["value"]
		}
		for i, date := range t.Time {
			points = append(points, Point{Date: date, Value: Value{At(column, i)}})
		}
	}
	return points, nil
}

// DataUsage returns the raw account usage statistics payload.
func (c *Client) DataUsage(ctx context.Context) (json.RawMessage, error) {
	env, err := c.post(ctx, statisticsPath, map[string]any{})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// TradeDates returns trading days of a market between from and to.
func (c *Client) TradeDates(ctx context.Context, market string, from, to time.Time) ([]string, error) {
	body := map[string]any{
		"marketcode": market,
		"functionpara": map[string]string{
			"dateType":   "0",
			"period":     "D",
			"dateFormat": "0",
			"output":     "sequencedate",
		},
		"startdate": from.Format(dateLayout),
		"enddate":   to.Format(dateLayout),
	}

	env, err := c.post(ctx, tradeDatesPath, body)
	if err != nil {
		return nil, err
	}

	var data struct {
		Tradedate []string `json:"tradedate"`
	}
	if len(env.Tables) > 0 {
		if err := json.Unmarshal(env.Tables, &data); err == nil && len(data.Tradedate) > 0 {
			return data.Tradedate, nil
		}
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("decode trade dates: %w", err)
		}
	}
	return data.Tradedate, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any) (envelope, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return envelope{}, fmt.Errorf("access token: %w", err)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return envelope{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", token)
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("send %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return envelope{}, parseHTTPError(endpoint, resp.StatusCode, payload)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if env.ErrorCode != 0 {
		return envelope{}, &APIError{Endpoint: endpoint, Code: env.ErrorCode, Message: env.ErrMsg}
	}
	return env, nil
}

func decodeTables(endpoint string, env envelope) ([]table, error) {
	if len(env.Tables) == 0 || bytes.Equal(env.Tables, []byte("null")) {
		return nil, nil
	}
	var tables []table
	if err := json.Unmarshal(env.Tables, &tables); err != nil {
		return nil, fmt.Errorf("decode %s tables: %w", endpoint, err)
	}
	return tables, nil
}

func parseHTTPError(endpoint string, status int, payload []byte) error {
	var apiErr struct {
		ErrorCode int    `json:"errorcode"`
		ErrMsg    string `json:"errmsg"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.ErrMsg != "" {
		return fmt.Errorf("ifind http error [%s] (%d): %s", endpoint, status, apiErr.ErrMsg)
	}
	if len(payload) > 0 {
		text := strings.TrimSpace(string(payload))
		if len(text) > maxErrorPayload {
			text = text[:maxErrorPayload]
		}
		return fmt.Errorf("ifind http error [%s] (%d): %s", endpoint, status, text)
	}
	return fmt.Errorf("ifind http error [%s] (%d)", endpoint, status)
}

var (
	_ QuoteFetcher   = (*Client)(nil)
	_ HistoryFetcher = (*Client)(nil)
	_ MacroFetcher   = (*Client)(nil)
)
