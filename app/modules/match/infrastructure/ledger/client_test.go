package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "secret"}, nil)
}

func TestClientBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/accounts/Wallet1/balance", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"lamports": 1_250_000_000})
	})

	got, err := client.Balance(context.Background(), "Wallet1")
	require.NoError(t, err)
	assert.Equal(t, int64(1_250_000_000), got)
}

func TestClientTokenBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/Treasury/tokens/Mint1", r.URL.Path)
		_, _ = w.Write([]byte(`{"amount":"18446744073709551615"}`))
	})

	got, err := client.TokenBalance(context.Background(), "Treasury", "Mint1")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), got)
}

func TestClientTransaction(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		wantDelta int64
	}{
		{
			name:      "confirmed transfer",
			status:    http.StatusOK,
			body:      `{"signature":"sig1","succeeded":true,"signers":["Player"],"balanceChanges":[{"account":"Treasury","preLamports":100,"postLamports":50000100}]}`,
			wantDelta: 50_000_000,
		},
		{
			name:    "unknown signature",
			status:  http.StatusNotFound,
			body:    `{"error":{"code":"not_found","message":"no such transaction"}}`,
			wantErr: ErrTransactionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/transactions/sig1", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			tx, err := client.Transaction(context.Background(), "sig1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tx.Succeeded)
			assert.True(t, tx.SignedBy("Player"))
			assert.False(t, tx.SignedBy("Other"))
			assert.Equal(t, tt.wantDelta, tx.DeltaFor("Treasury"))
			assert.Zero(t, tx.DeltaFor("Nobody"))
		})
	}
}

func TestClientTransfers(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		switch r.URL.Path {
		case "/v1/transfers":
			_, _ = w.Write([]byte(`{"signature":"solsig"}`))
		case "/v1/token-transfers":
			_, _ = w.Write([]byte(`{"signature":"tokensig"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	sig, err := client.TransferSOL(context.Background(), "Player", 45_000_000)
	require.NoError(t, err)
	assert.Equal(t, "solsig", sig)
	assert.Equal(t, "Player", gotBody["to"])
	assert.Equal(t, float64(45_000_000), gotBody["lamports"])

	sig, err = client.TransferToken(context.Background(), "Winner", "Mint1", 987654321)
	require.NoError(t, err)
	assert.Equal(t, "tokensig", sig)
	assert.Equal(t, "987654321", gotBody["amount"])
	assert.Equal(t, "Mint1", gotBody["mint"])
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name             string
		status           int
		body             string
		wantInsufficient bool
		wantCode         string
	}{
		{
			name:             "insufficient funds code",
			status:           http.StatusBadRequest,
			body:             `{"error":{"code":"insufficient_funds","message":"treasury too low"}}`,
			wantInsufficient: true,
		},
		{
			name:             "payment required status",
			status:           http.StatusPaymentRequired,
			body:             `nope`,
			wantInsufficient: true,
		},
		{
			name:     "other gateway error",
			status:   http.StatusBadGateway,
			body:     `{"error":{"code":"rpc_unavailable","message":"upstream down"}}`,
			wantCode: "rpc_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.TransferSOL(context.Background(), "Player", 1)
			require.Error(t, err)
			assert.Equal(t, tt.wantInsufficient, errors.Is(err, ErrInsufficientFunds))

			var apiErr *APIError
			if tt.wantCode != "" {
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				assert.Equal(t, tt.status, apiErr.StatusCode)
			}
		})
	}
}
