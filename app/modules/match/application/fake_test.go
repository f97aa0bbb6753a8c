package matchservice

import (
	"context"
	"sort"
	"sync"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Match Repo
// ------------------------

// FakeMatchRepo keeps matches in memory with the same version semantics as
// the bun repository. Any XxxFunc that is set replaces the default.
type FakeMatchRepo struct {
	mu      sync.Mutex
	trace   []string
	counter int64

	matches   map[string]*matchdb.Match
	receipts  map[string]*matchdb.PaymentReceipt
	summaries map[string]*matchdb.PaymentSummary

	GetByIDFunc              func(ctx context.Context, db bun.IDB, id string) (*matchdb.Match, error)
	UpdateFunc               func(ctx context.Context, db bun.IDB, match *matchdb.Match) error
	ListByStatusFunc         func(ctx context.Context, db bun.IDB, statuses []matchdomain.Status) ([]*matchdb.Match, error)
	FindActiveForPlayerFunc  func(ctx context.Context, db bun.IDB, address string) (*matchdb.Match, error)
	InsertPaymentSummaryFunc func(ctx context.Context, db bun.IDB, summary *matchdb.PaymentSummary) error
	EndStaleLobbiesFunc      func(ctx context.Context, db bun.IDB, cutoff time.Time) (int, error)
}

func NewFakeMatchRepo() *FakeMatchRepo {
	return &FakeMatchRepo{
		trace:     []string{},
		matches:   map[string]*matchdb.Match{},
		receipts:  map[string]*matchdb.PaymentReceipt{},
		summaries: map[string]*matchdb.PaymentSummary{},
	}
}

func (f *FakeMatchRepo) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// Seed stores m as-is.
func (f *FakeMatchRepo) Seed(m *matchdb.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.Version == 0 {
		m.Version = 1
	}
	m.RecountPlayers()
	f.matches[m.ID] = m.Clone()
}

// Stored returns a copy of the persisted match.
func (f *FakeMatchRepo) Stored(id string) *matchdb.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[id].Clone()
}

// --- Repository Interface Implementation ---

func (f *FakeMatchRepo) NextMatchNumber(ctx context.Context, db bun.IDB) (int64, error) {
	f.record("NextMatchNumber")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	return f.counter, nil
}

func (f *FakeMatchRepo) Create(ctx context.Context, db bun.IDB, match *matchdb.Match) error {
	f.record("Create")
	f.mu.Lock()
	defer f.mu.Unlock()
	match.Version = 1
	match.RecountPlayers()
	f.matches[match.ID] = match.Clone()
	return nil
}

func (f *FakeMatchRepo) GetByID(ctx context.Context, db bun.IDB, id string) (*matchdb.Match, error) {
	f.record("GetByID")
	if f.GetByIDFunc != nil {
		return f.GetByIDFunc(ctx, db, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, matchdb.ErrNotFound
	}
	return m.Clone(), nil
}

func (f *FakeMatchRepo) ListByStatus(ctx context.Context, db bun.IDB, statuses []matchdomain.Status) ([]*matchdb.Match, error) {
	f.record("ListByStatus")
	if f.ListByStatusFunc != nil {
		return f.ListByStatusFunc(ctx, db, statuses)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*matchdb.Match
	for _, m := range f.matches {
		for _, st := range statuses {
			if m.Status == st {
				out = append(out, m.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *FakeMatchRepo) FindOldestOpen(ctx context.Context, db bun.IDB) (*matchdb.Match, error) {
	f.record("FindOldestOpen")
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *matchdb.Match
	for _, m := range f.matches {
		if !m.Status.IsOpen() || m.PlayerCount >= m.MaxPlayers {
			continue
		}
		if best == nil || m.Number < best.Number {
			best = m
		}
	}
	if best == nil {
		return nil, matchdb.ErrNotFound
	}
	return best.Clone(), nil
}

func (f *FakeMatchRepo) FindActiveForPlayer(ctx context.Context, db bun.IDB, address string) (*matchdb.Match, error) {
	f.record("FindActiveForPlayer")
	if f.FindActiveForPlayerFunc != nil {
		return f.FindActiveForPlayerFunc(ctx, db, address)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.matches {
		if m.Status.IsTerminal() {
			continue
		}
		if _, ok := m.Players[address]; ok {
			return m.Clone(), nil
		}
	}
	return nil, matchdb.ErrNotFound
}

func (f *FakeMatchRepo) Update(ctx context.Context, db bun.IDB, match *matchdb.Match) error {
	f.record("Update")
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, db, match)
	}
	return f.defaultUpdate(match)
}

func (f *FakeMatchRepo) defaultUpdate(match *matchdb.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.matches[match.ID]
	if !ok || stored.Version != match.Version {
		return matchdb.ErrVersionConflict
	}
	match.Version++
	match.RecountPlayers()
	f.matches[match.ID] = match.Clone()
	return nil
}

func (f *FakeMatchRepo) InsertReceipt(ctx context.Context, db bun.IDB, receipt *matchdb.PaymentReceipt) error {
	f.record("InsertReceipt")
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.receipts[receipt.Signature]; ok {
		return matchdb.ErrReceiptExists
	}
	f.receipts[receipt.Signature] = receipt
	return nil
}

func (f *FakeMatchRepo) ReceiptExists(ctx context.Context, db bun.IDB, signature string) (bool, error) {
	f.record("ReceiptExists")
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.receipts[signature]
	return ok, nil
}

func (f *FakeMatchRepo) InsertPaymentSummary(ctx context.Context, db bun.IDB, summary *matchdb.PaymentSummary) error {
	f.record("InsertPaymentSummary")
	if f.InsertPaymentSummaryFunc != nil {
		return f.InsertPaymentSummaryFunc(ctx, db, summary)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.summaries[summary.MatchID]; !ok {
		f.summaries[summary.MatchID] = summary
	}
	return nil
}

func (f *FakeMatchRepo) ListPaymentSummaries(ctx context.Context, db bun.IDB, since time.Time) ([]*matchdb.PaymentSummary, error) {
	f.record("ListPaymentSummaries")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*matchdb.PaymentSummary, 0, len(f.summaries))
	for _, s := range f.summaries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

func (f *FakeMatchRepo) ListPrizes(ctx context.Context, db bun.IDB, ids []string) (map[string]*matchdomain.Prize, error) {
	f.record("ListPrizes")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*matchdomain.Prize, len(ids))
	for _, id := range ids {
		if m, ok := f.matches[id]; ok && m.Prize != nil {
			out[id] = m.Clone().Prize
		}
	}
	return out, nil
}

func (f *FakeMatchRepo) ListStuckTransfers(ctx context.Context, db bun.IDB) ([]*matchdb.Match, error) {
	f.record("ListStuckTransfers")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*matchdb.Match
	for _, m := range f.matches {
		if m.Status == matchdomain.StatusCompleted && m.Prize.NeedsTransfer() {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *FakeMatchRepo) EndStaleLobbies(ctx context.Context, db bun.IDB, cutoff time.Time) (int, error) {
	f.record("EndStaleLobbies")
	if f.EndStaleLobbiesFunc != nil {
		return f.EndStaleLobbiesFunc(ctx, db, cutoff)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.matches {
		if m.Status.IsOpen() && m.PlayerCount == 0 && m.CreatedAt.Before(cutoff) {
			m.Status = matchdomain.StatusEnded
			m.Version++
			n++
		}
	}
	return n, nil
}

func (f *FakeMatchRepo) TryAcquireLock(ctx context.Context, db bun.IDB, id, owner string, now, until time.Time) (bool, error) {
	f.record("TryAcquireLock")
	return true, nil
}

func (f *FakeMatchRepo) ReleaseLock(ctx context.Context, db bun.IDB, id, owner string) error {
	f.record("ReleaseLock")
	return nil
}

// --- Accessors for assertions ---

func (f *FakeMatchRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeMatchRepo) Count(step string) int {
	n := 0
	for _, s := range f.Trace() {
		if s == step {
			n++
		}
	}
	return n
}

// Ensure the fake actually satisfies the interface
var _ matchdb.Repository = (*FakeMatchRepo)(nil)

// ------------------------
// Fake Clock
// ------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ------------------------
// Fake Archiver
// ------------------------

type fakeArchiver struct {
	archived []string
}

func (a *fakeArchiver) ArchiveSummary(ctx context.Context, summary *matchdb.PaymentSummary) error {
	a.archived = append(a.archived, summary.MatchID)
	return nil
}
