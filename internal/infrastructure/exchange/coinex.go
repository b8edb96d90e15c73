package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

const CoinExBaseURL = "https://api.coinex.com/v2"

// APIError is a non-zero response code from the venue.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("coinex error %d: %s", e.Code, e.Message) }

// CoinExClient is a spot REST client for the CoinEx v2 API.
type CoinExClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	now       func() time.Time

	metaMu sync.Mutex
	meta   map[string]marketMeta
}

// marketMeta is the order sizing rule for one market.
type marketMeta struct {
	BasePrecision int32
	MinAmount     decimal.Decimal
}

func NewCoinExClient(apiKey, apiSecret, baseURL string, timeout time.Duration) *CoinExClient {
	if baseURL == "" {
		baseURL = CoinExBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinExClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		now:       time.Now,
		meta:      make(map[string]marketMeta),
	}
}

// --- REST API ---

// sign hashes method + path(with query) + body + timestamp.
func (c *CoinExClient) sign(method, path, body string, timestamp int64) string {
	toSign := method + path + body + strconv.FormatInt(timestamp, 10)
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// sendRequest performs the call and returns the data field. Private
// endpoints are signed when auth is true.
func (c *CoinExClient) sendRequest(ctx context.Context, method, path string, query url.Values, payload any, auth bool) (json.RawMessage, error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if auth {
		if c.apiKey == "" || c.apiSecret == "" {
			return nil, fmt.Errorf("coinex: api credentials not configured")
		}
		timestamp := c.now().UnixMilli()
		// The signed path includes the /v2 prefix of the base URL.
		signedPath := path
		if u, err := url.Parse(c.baseURL); err == nil {
			signedPath = u.Path + path
		}
		req.Header.Set("X-COINEX-KEY", c.apiKey)
		req.Header.Set("X-COINEX-SIGN", c.sign(method, signedPath, string(body), timestamp))
		req.Header.Set("X-COINEX-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("coinex http %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("coinex: decode response: %w", err)
	}
	if env.Code != 0 {
		return nil, &APIError{Code: env.Code, Message: env.Message}
	}
	return env.Data, nil
}

// MarketName converts "BTC/USDT" to the venue's "BTCUSDT".
func MarketName(symbol string) string {
	m, err := domain.ParseMarket(symbol)
	if err != nil {
		return strings.ToUpper(symbol)
	}
	return m.Base + m.Quote
}

func (c *CoinExClient) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	q := url.Values{"market": {MarketName(symbol)}}
	data, err := c.sendRequest(ctx, http.MethodGet, "/spot/ticker", q, nil, false)
	if err != nil {
		return domain.Ticker{}, err
	}

	var list []struct {
		Market string `json:"market"`
		Last   string `json:"last"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return domain.Ticker{}, err
	}
	if len(list) == 0 {
		return domain.Ticker{}, fmt.Errorf("symbol not found: %s", symbol)
	}

	last, err := parseAmount("last", list[0].Last)
	if err != nil {
		return domain.Ticker{}, err
	}
	t := domain.Ticker{Symbol: symbol, Last: last}
	t.Bid, t.Ask = c.bestBidAsk(ctx, symbol)
	return t, nil
}

// bestBidAsk reads the top of the book. Failures leave both zero.
func (c *CoinExClient) bestBidAsk(ctx context.Context, symbol string) (decimal.Decimal, decimal.Decimal) {
	q := url.Values{"market": {MarketName(symbol)}, "limit": {"5"}, "interval": {"0"}}
	data, err := c.sendRequest(ctx, http.MethodGet, "/spot/depth", q, nil, false)
	if err != nil {
		return decimal.Zero, decimal.Zero
	}
	var result struct {
		Depth struct {
			Asks [][]string `json:"asks"`
			Bids [][]string `json:"bids"`
		} `json:"depth"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return decimal.Zero, decimal.Zero
	}
	var bid, ask decimal.Decimal
	if len(result.Depth.Bids) > 0 && len(result.Depth.Bids[0]) > 0 {
		bid = parseDecimal(result.Depth.Bids[0][0])
	}
	if len(result.Depth.Asks) > 0 && len(result.Depth.Asks[0]) > 0 {
		ask = parseDecimal(result.Depth.Asks[0][0])
	}
	return bid, ask
}

func (c *CoinExClient) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	t, err := c.GetTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Last, nil
}

// AvailableBalance returns the free (not frozen) balance. A currency the
// account never held is zero.
func (c *CoinExClient) AvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	data, err := c.sendRequest(ctx, http.MethodGet, "/assets/spot/balance", nil, nil, true)
	if err != nil {
		return decimal.Zero, err
	}
	var list []struct {
		Ccy       string `json:"ccy"`
		Available string `json:"available"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return decimal.Zero, err
	}
	for _, b := range list {
		if strings.EqualFold(b.Ccy, currency) {
			return parseAmount("available "+b.Ccy, b.Available)
		}
	}
	return decimal.Zero, nil
}

type coinexOrder struct {
	OrderID      int64  `json:"order_id"`
	Market       string `json:"market"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	FilledAmount string `json:"filled_amount"`
	FilledValue  string `json:"filled_value"`
	CreatedAt    int64  `json:"created_at"`
}

// fill reports the executed quantity and average price. The order has
// already executed, so unparseable fill fields are left zero and the caller
// falls back to the last price instead of failing the trade.
func (o coinexOrder) fill() domain.Fill {
	f := domain.Fill{OrderID: strconv.FormatInt(o.OrderID, 10)}
	qty, qErr := parseAmount("filled_amount", o.FilledAmount)
	value, vErr := parseAmount("filled_value", o.FilledValue)
	if qErr == nil && vErr == nil && qty.IsPositive() && value.IsPositive() {
		f.Quantity = qty
		f.Price = value.Div(qty)
	}
	return f
}

// marketInfo returns the sizing rule for market, fetched once per client.
func (c *CoinExClient) marketInfo(ctx context.Context, market string) (marketMeta, error) {
	c.metaMu.Lock()
	meta, ok := c.meta[market]
	c.metaMu.Unlock()
	if ok {
		return meta, nil
	}

	data, err := c.sendRequest(ctx, http.MethodGet, "/spot/market", url.Values{"market": {market}}, nil, false)
	if err != nil {
		return marketMeta{}, err
	}
	var list []struct {
		Market           string `json:"market"`
		MinAmount        string `json:"min_amount"`
		BaseCcyPrecision int32  `json:"base_ccy_precision"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return marketMeta{}, err
	}
	for _, info := range list {
		if !strings.EqualFold(info.Market, market) {
			continue
		}
		minAmount, err := parseAmount("min_amount", info.MinAmount)
		if err != nil {
			return marketMeta{}, err
		}
		meta = marketMeta{BasePrecision: info.BaseCcyPrecision, MinAmount: minAmount}
		c.metaMu.Lock()
		c.meta[market] = meta
		c.metaMu.Unlock()
		return meta, nil
	}
	return marketMeta{}, fmt.Errorf("market not found: %s", market)
}

// PlaceMarketOrder sends a market order sized in the base currency and
// reads the fill back when the create response does not carry it. The
// amount is rounded down to the market's base precision; when the venue
// reports no filled quantity the rounded amount is returned.
func (c *CoinExClient) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal) (domain.Fill, error) {
	m, err := domain.ParseMarket(symbol)
	if err != nil {
		return domain.Fill{}, err
	}
	meta, err := c.marketInfo(ctx, m.Base+m.Quote)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("market info: %w", err)
	}
	amount := quantity.Truncate(meta.BasePrecision)
	if !amount.IsPositive() || amount.LessThan(meta.MinAmount) {
		return domain.Fill{}, fmt.Errorf("amount %s below minimum %s for %s", amount, meta.MinAmount, symbol)
	}

	payload := map[string]any{
		"market":      m.Base + m.Quote,
		"market_type": "SPOT",
		"side":        strings.ToLower(string(side)),
		"type":        "market",
		"amount":      amount.String(),
		"ccy":         m.Base,
	}

	data, err := c.sendRequest(ctx, http.MethodPost, "/spot/order", nil, payload, true)
	if err != nil {
		return domain.Fill{}, err
	}
	var order coinexOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return domain.Fill{}, err
	}

	fill := order.fill()
	if !fill.Price.IsPositive() {
		// On failure the order is still accepted; the caller falls back to
		// the last price.
		if status, err := c.orderStatus(ctx, m.Base+m.Quote, order.OrderID); err == nil {
			fill = status.fill()
		}
	}
	if !fill.Quantity.IsPositive() {
		fill.Quantity = amount
	}
	return fill, nil
}

func (c *CoinExClient) orderStatus(ctx context.Context, market string, orderID int64) (coinexOrder, error) {
	q := url.Values{"market": {market}, "order_id": {strconv.FormatInt(orderID, 10)}}
	data, err := c.sendRequest(ctx, http.MethodGet, "/spot/order-status", q, nil, true)
	if err != nil {
		return coinexOrder{}, err
	}
	var order coinexOrder
	err = json.Unmarshal(data, &order)
	return order, err
}

func (c *CoinExClient) ListOpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	q := url.Values{"market": {MarketName(symbol)}, "market_type": {"SPOT"}}
	data, err := c.sendRequest(ctx, http.MethodGet, "/spot/pending-order", q, nil, true)
	if err != nil {
		return nil, err
	}
	var list []coinexOrder
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(list))
	for _, o := range list {
		orders = append(orders, domain.Order{
			ID:        strconv.FormatInt(o.OrderID, 10),
			Symbol:    symbol,
			Side:      domain.Side(strings.ToUpper(o.Side)),
			Type:      o.Type,
			Price:     parseDecimal(o.Price),
			Quantity:  parseDecimal(o.Amount),
			CreatedAt: time.UnixMilli(o.CreatedAt),
		})
	}
	return orders, nil
}

func (c *CoinExClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", orderID, err)
	}
	payload := map[string]any{
		"market":      MarketName(symbol),
		"market_type": "SPOT",
		"order_id":    id,
	}
	_, err = c.sendRequest(ctx, http.MethodPost, "/spot/cancel-order", nil, payload, true)
	return err
}

// GetCandles returns up to limit candles, oldest first. timeframe uses the
// short form ("1m", "15m", "1h", "4h", "1d").
func (c *CoinExClient) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	q := url.Values{
		"market": {MarketName(symbol)},
		"period": {klinePeriod(timeframe)},
		"limit":  {strconv.Itoa(limit)},
	}
	data, err := c.sendRequest(ctx, http.MethodGet, "/spot/kline", q, nil, false)
	if err != nil {
		return nil, err
	}

	var list []struct {
		CreatedAt int64  `json:"created_at"`
		Open      string `json:"open"`
		Close     string `json:"close"`
		High      string `json:"high"`
		Low       string `json:"low"`
		Volume    string `json:"volume"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(list))
	for _, k := range list {
		var vals [5]float64
		for i, field := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("kline at %d: %w", k.CreatedAt, err)
			}
			vals[i] = v
		}
		candles = append(candles, domain.Candle{
			Time:   time.UnixMilli(k.CreatedAt).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}

	// Oldest first.
	for i := 1; i < len(candles); i++ {
		if candles[i].Time.Before(candles[i-1].Time) {
			for l, r := 0, len(candles)-1; l < r; l, r = l+1, r-1 {
				candles[l], candles[r] = candles[r], candles[l]
			}
			break
		}
	}
	return candles, nil
}

func klinePeriod(tf string) string {
	switch tf {
	case "1m":
		return "1min"
	case "5m":
		return "5min"
	case "15m":
		return "15min"
	case "30m":
		return "30min"
	case "1h", "":
		return "1hour"
	case "4h":
		return "4hour"
	case "1d":
		return "1day"
	default:
		return tf
	}
}

// parseAmount rejects missing or malformed numbers so they are never
// mistaken for zero.
func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coinex: malformed %s %q: %w", field, s, err)
	}
	return d, nil
}

// parseDecimal is for display-only fields; malformed values read as zero.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
