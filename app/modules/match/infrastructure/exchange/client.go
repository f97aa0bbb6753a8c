// Package exchange is a client for the swap aggregator used to convert the
// pooled SOL into the payout asset.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// NativeMint is the wrapped SOL mint used as swap input.
const NativeMint = "So11111111111111111111111111111111111111112"

var (
	// ErrDirectSwapUnsupported is returned when the aggregator cannot deliver to a third-party account.
	ErrDirectSwapUnsupported = errors.New("direct swap unsupported")
	// ErrInsufficientFunds is returned when the treasury cannot fund the swap.
	ErrInsufficientFunds = errors.New("insufficient funds for swap")
	// ErrNoRoute is returned when no quote is available.
	ErrNoRoute = errors.New("no swap route")
)

// APIError is a non-2xx aggregator response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// QuoteRequest asks for a price on amount base units of InputMint.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// Quote is a priced route. Raw carries the aggregator's payload back into a swap.
type Quote struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       uint64          `json:"inAmount,string"`
	OutAmount      uint64          `json:"outAmount,string"`
	PriceImpactPct string          `json:"priceImpactPct"`
	Raw            json.RawMessage `json:"-"`
}

// SwapRequest executes a quote from the treasury. When DestinationOwner is
// set the output is delivered to that wallet's token account.
type SwapRequest struct {
	Quote            *Quote
	DestinationOwner string
}

// SwapResult is a confirmed swap.
type SwapResult struct {
	Signature string `json:"signature"`
	OutAmount uint64 `json:"outAmount,string"`
}

// Config holds aggregator connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an HTTP client for the aggregator.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an aggregator client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Quote prices a conversion without executing it.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/quote?"+q.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	var quote Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if quote.OutAmount == 0 {
		return nil, ErrNoRoute
	}
	quote.Raw = raw
	return &quote, nil
}

// Swap executes a quote into the treasury's own token account.
func (c *Client) Swap(ctx context.Context, quote *Quote) (*SwapResult, error) {
	return c.swap(ctx, SwapRequest{Quote: quote})
}

// DirectSwap executes a quote and delivers the output straight to owner.
func (c *Client) DirectSwap(ctx context.Context, quote *Quote, owner string) (*SwapResult, error) {
	return c.swap(ctx, SwapRequest{Quote: quote, DestinationOwner: owner})
}

func (c *Client) swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	if req.Quote == nil {
		return nil, errors.New("swap requires a quote")
	}
	body := map[string]any{"quoteResponse": req.Quote.Raw}
	if req.DestinationOwner != "" {
		body["destinationOwner"] = req.DestinationOwner
	}

	var out SwapResult
	if err := c.do(ctx, http.MethodPost, "/v1/swap", body, &out); err != nil {
		return nil, fmt.Errorf("failed to swap: %w", err)
	}
	if out.OutAmount == 0 {
		out.OutAmount = req.Quote.OutAmount
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}

		c.logger.WarnContext(ctx, "Exchange call failed",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)

		switch {
		case resp.StatusCode == http.StatusNotImplemented || apiErr.Code == "direct_unsupported":
			return fmt.Errorf("%w: %s", ErrDirectSwapUnsupported, apiErr.Error())
		case apiErr.Code == "insufficient_funds":
			return fmt.Errorf("%w: %s", ErrInsufficientFunds, apiErr.Error())
		case apiErr.Code == "no_route":
			return fmt.Errorf("%w: %s", ErrNoRoute, apiErr.Error())
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
