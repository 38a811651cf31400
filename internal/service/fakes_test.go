package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the ledger tables. Transactions are
// serialized by txMu and roll back by restoring a snapshot, so tests built
// on it check ledger arithmetic, not row-lock behaviour; the conditional
// updates and FOR UPDATE statements are covered by the pgxmock repo tests.
// Post-commit writes fail on a cancelled context the way pgx does.
type memStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state memState
	seq   int64

	failTransferCreate error
	// loseDebitRace makes DecreaseCash miss as if a concurrent debit had
	// drained the row between lock and update.
	loseDebitRace bool
}

type memState struct {
	funds     map[int64]domain.Fund
	holds     map[int64]domain.Hold
	transfers map[int64]domain.Transfer
	actions   map[[2]int64]domain.Action
	settings  map[string]domain.Setting
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		funds:     map[int64]domain.Fund{},
		holds:     map[int64]domain.Hold{},
		transfers: map[int64]domain.Transfer{},
		actions:   map[[2]int64]domain.Action{},
		settings:  map[string]domain.Setting{},
	}}
}

func (st memState) clone() memState {
	c := memState{
		funds:     make(map[int64]domain.Fund, len(st.funds)),
		holds:     make(map[int64]domain.Hold, len(st.holds)),
		transfers: make(map[int64]domain.Transfer, len(st.transfers)),
		actions:   make(map[[2]int64]domain.Action, len(st.actions)),
		settings:  make(map[string]domain.Setting, len(st.settings)),
	}
	for k, v := range st.funds {
		c.funds[k] = v
	}
	for k, v := range st.holds {
		c.holds[k] = v
	}
	for k, v := range st.transfers {
		v.Extra = copyExtra(v.Extra)
		c.transfers[k] = v
	}
	for k, v := range st.actions {
		c.actions[k] = v
	}
	for k, v := range st.settings {
		c.settings[k] = v
	}
	return c
}

func copyExtra(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

// --- transactor ---

type memTx struct {
	pgx.Tx
	store    *memStore
	snapshot memState
	done     bool
}

func (s *memStore) Begin(_ context.Context) (pgx.Tx, error) {
	s.txMu.Lock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memTx{store: s, snapshot: s.state.clone()}, nil
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	t.store.state = t.snapshot
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

// --- funds ---

type memFunds struct{ s *memStore }

func (r memFunds) GetOrCreate(_ context.Context, _ pgx.Tx, userID uuid.UUID, currency string) (*domain.Fund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.state.funds {
		if f.UserID == userID && f.Currency == currency {
			return &f, nil
		}
	}
	f := domain.Fund{Model: domain.NewModel(time.Now().UTC()), UserID: userID, Currency: currency, Cash: decimal.Zero}
	f.ID = r.s.nextID()
	r.s.state.funds[f.ID] = f
	return &f, nil
}

func (r memFunds) GetByUser(_ context.Context, userID uuid.UUID, currency string) (*domain.Fund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.state.funds {
		if f.UserID == userID && f.Currency == currency {
			return &f, nil
		}
	}
	return nil, nil
}

func (r memFunds) GetByID(_ context.Context, _ pgx.Tx, id int64) (*domain.Fund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.state.funds[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (r memFunds) LockFunds(_ context.Context, _ pgx.Tx, ids ...int64) ([]*domain.Fund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var out []*domain.Fund
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		f, ok := r.s.state.funds[id]
		if !ok {
			return nil, fmt.Errorf("lock funds: fund %d not found", id)
		}
		out = append(out, &f)
	}
	return out, nil
}

func (r memFunds) IncreaseCash(_ context.Context, _ pgx.Tx, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.state.funds[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("increase cash: fund %d not found", id)
	}
	f.Cash = f.Cash.Add(amount)
	r.s.state.funds[id] = f
	return f.Cash, nil
}

func (r memFunds) DecreaseCash(_ context.Context, _ pgx.Tx, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.state.funds[id]
	if !ok || f.Cash.LessThan(amount) || r.s.loseDebitRace {
		return decimal.Zero, domain.ErrInsufficientCash
	}
	f.Cash = f.Cash.Sub(amount)
	r.s.state.funds[id] = f
	return f.Cash, nil
}

// --- holds ---

type memHolds struct{ s *memStore }

func (r memHolds) Create(_ context.Context, _ pgx.Tx, h *domain.Hold) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if h.OrderID != nil {
		for _, existing := range r.s.state.holds {
			if existing.OrderID != nil && *existing.OrderID == *h.OrderID {
				return domain.ErrDuplicate
			}
		}
	}
	h.ID = r.s.nextID()
	r.s.state.holds[h.ID] = *h
	return nil
}

func (r memHolds) byFund(fundID int64) []domain.Hold {
	var out []domain.Hold
	for _, h := range r.s.state.holds {
		if h.FundID == fundID {
			out = append(out, h)
		}
	}
	return out
}

func (r memHolds) LockByFund(_ context.Context, _ pgx.Tx, fundID int64) ([]domain.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.byFund(fundID)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiredAt.Equal(out[j].ExpiredAt) {
			return out[i].ExpiredAt.After(out[j].ExpiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r memHolds) ListByFund(ctx context.Context, fundID int64) ([]domain.Hold, error) {
	return r.LockByFund(ctx, nil, fundID)
}

func (r memHolds) UpdateAmount(_ context.Context, _ pgx.Tx, id int64, amount decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.state.holds[id]
	if !ok {
		return fmt.Errorf("update hold %d: not found", id)
	}
	h.Amount = amount
	r.s.state.holds[id] = h
	return nil
}

func (r memHolds) Delete(_ context.Context, _ pgx.Tx, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.holds[id]; !ok {
		return fmt.Errorf("delete hold %d: not found", id)
	}
	delete(r.s.state.holds, id)
	return nil
}

func (r memHolds) SumByFund(_ context.Context, _ pgx.Tx, fundID int64) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for _, h := range r.byFund(fundID) {
		sum = sum.Add(h.Amount)
	}
	return sum, nil
}

func (r memHolds) ExpiredFundIDs(_ context.Context, _ pgx.Tx, now time.Time, limit int) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[int64]bool{}
	var ids []int64
	for _, h := range r.s.state.holds {
		if h.IsExpired(now) && !seen[h.FundID] {
			seen[h.FundID] = true
			ids = append(ids, h.FundID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r memHolds) LockExpired(_ context.Context, _ pgx.Tx, fundIDs []int64, now time.Time) ([]domain.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range fundIDs {
		want[id] = true
	}
	var out []domain.Hold
	for _, h := range r.s.state.holds {
		if want[h.FundID] && h.IsExpired(now) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- transfers ---

type memTransfers struct{ s *memStore }

func (r memTransfers) Create(_ context.Context, _ pgx.Tx, t *domain.Transfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTransferCreate != nil {
		return r.s.failTransferCreate
	}
	if t.OrderID != nil {
		for _, existing := range r.s.state.transfers {
			if existing.Type == t.Type && existing.OrderID != nil && *existing.OrderID == *t.OrderID {
				return domain.ErrDuplicate
			}
		}
	}
	t.ID = r.s.nextID()
	stored := *t
	stored.Extra = copyExtra(t.Extra)
	r.s.state.transfers[t.ID] = stored
	return nil
}

func (r memTransfers) GetByUUID(_ context.Context, id uuid.UUID) (*domain.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.state.transfers {
		if t.UUID == id {
			t.Extra = copyExtra(t.Extra)
			return &t, nil
		}
	}
	return nil, nil
}

func (r memTransfers) GetByOrder(_ context.Context, transferType domain.TransferType, orderID string) (*domain.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.state.transfers {
		if t.Type == transferType && t.OrderID != nil && *t.OrderID == orderID {
			t.Extra = copyExtra(t.Extra)
			return &t, nil
		}
	}
	return nil, nil
}

func (r memTransfers) UpdateStatus(ctx context.Context, _ pgx.Tx, id int64, from, to domain.TransferStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.state.transfers[id]
	if !ok || t.Status != from {
		return domain.ErrStatusConflict
	}
	t.Status = to
	r.s.state.transfers[id] = t
	return nil
}

func (r memTransfers) MergeExtra(ctx context.Context, _ pgx.Tx, id int64, extra map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.state.transfers[id]
	if !ok {
		return fmt.Errorf("merge extra: transfer %d not found", id)
	}
	t.Extra = copyExtra(t.Extra)
	for k, v := range extra {
		t.Extra[k] = v
	}
	r.s.state.transfers[id] = t
	return nil
}

// --- actions ---

type memActions struct{ s *memStore }

func (r memActions) Upsert(_ context.Context, _ pgx.Tx, a *domain.Action) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]int64{a.FundID, a.TransferID}
	if existing, ok := r.s.state.actions[key]; ok {
		a.ID = existing.ID
	} else {
		a.ID = r.s.nextID()
	}
	r.s.state.actions[key] = *a
	return nil
}

func (r memActions) ListByFund(_ context.Context, p ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var entries []domain.LedgerEntry
	for _, a := range r.s.state.actions {
		if a.FundID != p.FundID {
			continue
		}
		t := r.s.state.transfers[a.TransferID]
		if p.Type != nil && t.Type != *p.Type {
			continue
		}
		if p.From != nil && a.CreatedAt.Before(*p.From) {
			continue
		}
		if p.To != nil && !a.CreatedAt.Before(*p.To) {
			continue
		}
		entries = append(entries, domain.LedgerEntry{Action: a, Transfer: t})
	}
	sort.Slice(entries, func(i, j int) bool {
		ai, aj := entries[i].Action, entries[j].Action
		if !ai.CreatedAt.Equal(aj.CreatedAt) {
			return ai.CreatedAt.After(aj.CreatedAt)
		}
		return ai.ID > aj.ID
	})

	total := int64(len(entries))
	start := (p.Page - 1) * p.PageSize
	if start >= len(entries) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + p.PageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end], total, nil
}

// --- settings ---

type memSettings struct{ s *memStore }

func (r memSettings) Get(_ context.Context, name string) (*domain.Setting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.state.settings[name]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r memSettings) Upsert(_ context.Context, name string, value decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.settings[name] = domain.Setting{Name: name, Value: value, UpdatedAt: time.Now().UTC()}
	return nil
}

// --- inspection helpers ---

func (s *memStore) fundOf(userID uuid.UUID) (domain.Fund, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.state.funds {
		if f.UserID == userID {
			return f, true
		}
	}
	return domain.Fund{}, false
}

func (s *memStore) heldBy(fundID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, h := range s.state.holds {
		if h.FundID == fundID {
			sum = sum.Add(h.Amount)
		}
	}
	return sum
}

// totalMoney is the sum of cash and holds across every fund.
func (s *memStore) totalMoney() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, f := range s.state.funds {
		sum = sum.Add(f.Cash)
	}
	for _, h := range s.state.holds {
		sum = sum.Add(h.Amount)
	}
	return sum
}

func (s *memStore) transferCount(typ domain.TransferType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.state.transfers {
		if t.Type == typ {
			n++
		}
	}
	return n
}

func (s *memStore) actionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.actions)
}

func (s *memStore) addHold(fundID int64, amount decimal.Decimal, expiredAt time.Time) domain.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := domain.Hold{Model: domain.NewModel(time.Now().UTC()), FundID: fundID, Amount: amount, ExpiredAt: expiredAt}
	h.ID = s.nextID()
	s.state.holds[h.ID] = h
	return h
}
