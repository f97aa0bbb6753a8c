package matchservice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Black-And-White-Club/quickdraw/app/modules/match/application/mocks"
	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/lease"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/ledger"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/observability"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"
)

var (
	testStart = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	treasury  = wallet("Treasury")
	payMint   = wallet("PayMint")
)

// wallet pads tag into a well-formed base58 address.
func wallet(tag string) string {
	return tag + strings.Repeat("1", 40-len(tag))
}

func ms(v int64) *int64 { return &v }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxPlayers = 4
	cfg.EntryFeeLamports = 100_000_000
	cfg.FixedTransferFeeLamports = 5_000
	cfg.TreasuryAddress = treasury
	cfg.TokenSymbol = "BONK"
	cfg.PayoutAssetMint = payMint
	cfg.PayoutAssetDecimals = 5
	return cfg
}

type harness struct {
	repo     *FakeMatchRepo
	ledger   *mocks.MockLedger
	exchange *mocks.MockExchange
	jobs     *mocks.MockJobScheduler
	clock    *fakeClock
	leases   *lease.MemoryStore
	archive  *fakeArchiver
	sleeps   []time.Duration
	svc      *MatchService
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithConfig(t, testConfig())
}

func newHarnessWithConfig(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{
		repo:     NewFakeMatchRepo(),
		ledger:   mocks.NewMockLedger(ctrl),
		exchange: mocks.NewMockExchange(ctrl),
		jobs:     mocks.NewMockJobScheduler(ctrl),
		clock:    newFakeClock(testStart),
		archive:  &fakeArchiver{},
	}
	h.leases = lease.NewMemoryStoreWithClock(h.clock.Now)
	h.svc = NewMatchService(
		h.repo,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewNoop(),
		noop.NewTracerProvider().Tracer("test"),
		nil,
		cfg,
		Dependencies{
			Ledger:   h.ledger,
			Exchange: h.exchange,
			Leases:   h.leases,
			Archive:  h.archive,
		},
		WithClock(h.clock.Now),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}),
	)
	return h
}

// withJobs makes the harness expect scheduling calls.
func (h *harness) withJobs() *harness {
	h.svc.SetJobScheduler(h.jobs)
	return h
}

func alivePlayer(addr string, joined time.Time) *matchdomain.Player {
	return &matchdomain.Player{
		Address:  addr,
		Status:   matchdomain.PlayerAlive,
		JoinedAt: joined,
		SolPaid:  testConfig().EntryFeeLamports,
	}
}

func actedPlayer(addr string, round int, rt int64) *matchdomain.Player {
	p := alivePlayer(addr, testStart.Add(-time.Minute))
	p.LastActionRound = round
	p.ResponseTimeMs = ms(rt)
	return p
}

// seedMatch stores a match with the given status and players.
func (h *harness) seedMatch(id string, status matchdomain.Status, round int, players ...*matchdomain.Player) *matchdb.Match {
	cfg := h.svc.cfg
	m := &matchdb.Match{
		ID:                   id,
		Number:               int64(len(h.repo.matches) + 1),
		Status:               status,
		Players:              map[string]*matchdomain.Player{},
		Round:                round,
		CountdownDurationSec: int(cfg.CountdownDuration.Seconds()),
		RoundDurationSec:     int(cfg.RoundDuration.Seconds()),
		MaxPlayers:           cfg.MaxPlayers,
		EntryFeeLamports:     cfg.EntryFeeLamports,
		TokenSymbol:          cfg.TokenSymbol,
		PayoutAssetMint:      cfg.PayoutAssetMint,
		PayoutAssetDecimals:  cfg.PayoutAssetDecimals,
		CreatedAt:            testStart.Add(-time.Hour),
		UpdatedAt:            testStart.Add(-time.Hour),
	}
	for _, p := range players {
		m.Players[p.Address] = p
		m.TotalCollected += p.SolPaid
		m.Payments = append(m.Payments, matchdomain.Payment{Player: p.Address, Signature: "sig-" + p.Address, AmountLamports: p.SolPaid, PaidAt: p.JoinedAt})
	}
	if status == matchdomain.StatusInProgress {
		start := h.clock.Now()
		m.RoundStartedAt = &start
	}
	if status == matchdomain.StatusLobby {
		start := h.clock.Now()
		m.CountdownStartedAt = &start
	}
	h.repo.Seed(m)
	return h.repo.Stored(id)
}

// paymentTx is a successful entry payment from player to the treasury.
func paymentTx(signature, player string, lamports int64) *ledger.Transaction {
	return &ledger.Transaction{
		Signature: signature,
		Succeeded: true,
		Signers:   []string{player},
		BalanceChanges: []ledger.BalanceChange{
			{Account: player, PreLamports: 5 * lamports, PostLamports: 4*lamports - 5_000},
			{Account: treasury, PreLamports: 10 * lamports, PostLamports: 11 * lamports},
		},
	}
}

// seat runs the paid join phase for player.
func (h *harness) seat(t *testing.T, player, signature string) (*JoinResponse, error) {
	t.Helper()
	h.ledger.EXPECT().Transaction(gomock.Any(), signature).Return(paymentTx(signature, player, h.svc.cfg.EntryFeeLamports), nil)
	return h.svc.JoinLobby(context.Background(), JoinRequest{PlayerAddress: player, PaymentSignature: signature})
}
