package binancefuture

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
)

// Config holds the REST client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns a production configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: BaseURLFutures,
		Timeout: 10 * time.Second,
	}
}

// Client represents the Binance Futures market data API client. Only public
// endpoints are implemented; nothing here signs requests.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Binance Futures API client
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() *Config {
	return c.config
}

// doGet performs an unsigned GET and returns the body. Non-2xx responses are
// surfaced as *APIError carrying the HTTP status.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	fullURL := strings.TrimRight(c.config.BaseURL, "/") + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, MethodGET, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		// Binance error bodies look like {"code":-1121,"msg":"..."}; keep the
		// status-only error when the body is not one of those.
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}

	return body, nil
}

// Ping tests connectivity to the REST API
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.doGet(ctx, EndpointPing, nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// GetServerTime gets the server time from Binance Futures API
func (c *Client) GetServerTime(ctx context.Context) (*ServerTimeResponse, error) {
	body, err := c.doGet(ctx, EndpointServerTime, nil)
	if err != nil {
		return nil, err
	}

	var serverTime ServerTimeResponse
	if err := json.Unmarshal(body, &serverTime); err != nil {
		return nil, fmt.Errorf("failed to parse server time response: %w", err)
	}
	return &serverTime, nil
}

// GetOrderBook gets the bounded depth snapshot for a symbol. The limit is
// clamped to MaxDepthLimit before the request goes out.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBookResponse, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}
	if limit > MaxDepthLimit {
		limit = MaxDepthLimit
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.doGet(ctx, EndpointOrderBook, params)
	if err != nil {
		return nil, err
	}

	var orderBook OrderBookResponse
	if err := json.Unmarshal(body, &orderBook); err != nil {
		return nil, fmt.Errorf("failed to parse order book response: %w", err)
	}
	return &orderBook, nil
}
