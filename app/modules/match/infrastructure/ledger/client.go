// Package ledger talks to the treasury custody gateway, which signs and
// submits on-chain transfers and exposes balance and transaction lookups.
package ledger

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

var (
	// ErrTransactionNotFound is returned when the gateway has no record of a signature.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInsufficientFunds is returned when the treasury cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger gateway returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// BalanceChange is the lamport balance of one account before and after a transaction.
type BalanceChange struct {
	Account      string `json:"account"`
	PreLamports  int64  `json:"preLamports"`
	PostLamports int64  `json:"postLamports"`
}

// Transaction is a confirmed transaction as reported by the gateway.
type Transaction struct {
	Signature      string          `json:"signature"`
	Slot           uint64          `json:"slot"`
	Succeeded      bool            `json:"succeeded"`
	Err            string          `json:"err,omitempty"`
	Signers        []string        `json:"signers"`
	BalanceChanges []BalanceChange `json:"balanceChanges"`
	BlockTime      *time.Time      `json:"blockTime,omitempty"`
}

// DeltaFor returns the lamport change of account in the transaction.
func (t *Transaction) DeltaFor(account string) int64 {
	for _, c := range t.BalanceChanges {
		if c.Account == account {
			return c.PostLamports - c.PreLamports
		}
	}
	return 0
}

// SignedBy reports whether address signed the transaction.
func (t *Transaction) SignedBy(address string) bool {
	for _, s := range t.Signers {
		if s == address {
			return true
		}
	}
	return false
}

// Config holds gateway connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an HTTP client for the custody gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
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

// Balance returns the lamport balance of address.
func (c *Client) Balance(ctx context.Context, address string) (int64, error) {
	var out struct {
		Lamports int64 `json:"lamports"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(address)+"/balance", nil, &out); err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return out.Lamports, nil
}

// TokenBalance returns the raw token amount owner holds of mint.
func (c *Client) TokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	var out struct {
		Amount string `json:"amount"`
	}
	path := "/v1/accounts/" + url.PathEscape(owner) + "/tokens/" + url.PathEscape(mint)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, fmt.Errorf("failed to get token balance: %w", err)
	}
	amount, err := strconv.ParseUint(out.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q: %w", out.Amount, err)
	}
	return amount, nil
}

// Transaction looks up a confirmed transaction.
func (c *Client) Transaction(ctx context.Context, signature string) (*Transaction, error) {
	var out Transaction
	if err := c.do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(signature), nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &out, nil
}

// TransferSOL sends lamports from the treasury to recipient and waits for confirmation.
func (c *Client) TransferSOL(ctx context.Context, recipient string, lamports int64) (string, error) {
	body := map[string]any{"to": recipient, "lamports": lamports}
	var out struct {
		Signature string `json:"signature"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", body, &out); err != nil {
		return "", fmt.Errorf("failed to transfer SOL: %w", err)
	}
	return out.Signature, nil
}

// TransferToken sends amount of mint from the treasury to recipient, creating
// the recipient's token account when needed.
func (c *Client) TransferToken(ctx context.Context, recipient, mint string, amount uint64) (string, error) {
	body := map[string]any{"to": recipient, "mint": mint, "amount": strconv.FormatUint(amount, 10)}
	var out struct {
		Signature string `json:"signature"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/token-transfers", body, &out); err != nil {
		return "", fmt.Errorf("failed to transfer token: %w", err)
	}
	return out.Signature, nil
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
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Ledger gateway call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)

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
		if apiErr.Code == "insufficient_funds" || resp.StatusCode == http.StatusPaymentRequired {
			return fmt.Errorf("%w: %s", ErrInsufficientFunds, apiErr.Error())
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
