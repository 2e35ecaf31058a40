package credit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
)

// memRepo is an in-memory ledger with the same rules as CreditRepository.
type memRepo struct {
	mu       sync.Mutex
	known    map[uuid.UUID]bool
	balances map[uuid.UUID]*Balance
	log      []Transaction
}

func newMemRepo(users ...uuid.UUID) *memRepo {
	r := &memRepo{known: make(map[uuid.UUID]bool), balances: make(map[uuid.UUID]*Balance)}
	for _, u := range users {
		r.known[u] = true
	}
	return r
}

func (r *memRepo) seed(userID uuid.UUID, total, remaining int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[userID] = true
	r.balances[userID] = &Balance{UserID: userID, TotalCredits: total, RemainingCredits: remaining}
}

func (r *memRepo) balance(userID uuid.UUID) (*Balance, error) {
	if !r.known[userID] {
		return nil, ErrUserNotFound
	}
	b, ok := r.balances[userID]
	if !ok {
		b = &Balance{UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		r.balances[userID] = b
	}
	return b, nil
}

func (r *memRepo) Apply(_ context.Context, m Mutation) (*Result, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.balance(m.UserID)
	if err != nil {
		return nil, err
	}
	if m.ReferenceID != "" {
		for _, tx := range r.log {
			if tx.UserID == m.UserID && tx.ReferenceID != nil && *tx.ReferenceID == m.ReferenceID {
				if tx.Type != m.Type || tx.Amount != m.Signed() {
					return nil, ErrReferenceConflict
				}
				return &Result{Transaction: tx, Balance: *b, Replayed: true}, nil
			}
		}
	}
	if m.Type.IsDebit() && b.RemainingCredits < m.Amount {
		return nil, &InsufficientCreditsError{Current: b.RemainingCredits, Required: m.Amount}
	}
	if b.overflows(m) {
		return nil, fmt.Errorf("%w: balance would overflow", ErrInvalidAmount)
	}
	remaining := b.RemainingCredits + m.Signed()
	if m.ExpectedBalanceAfter != nil && *m.ExpectedBalanceAfter != remaining {
		return nil, ErrBalanceMismatch
	}

	b.RemainingCredits = remaining
	if m.Type.RaisesTotal() {
		b.TotalCredits += m.Amount
	}
	tx := Transaction{
		ID:           uuid.New(),
		UserID:       m.UserID,
		Type:         m.Type,
		Amount:       m.Signed(),
		BalanceAfter: remaining,
		Reason:       m.Reason,
		CreatedBy:    m.CreatedBy,
		CreatedAt:    time.Now(),
	}
	if m.ReferenceID != "" {
		ref := m.ReferenceID
		tx.ReferenceID = &ref
	}
	r.log = append(r.log, tx)
	return &Result{Transaction: tx, Balance: *b}, nil
}

func (r *memRepo) ApplyTx(ctx context.Context, _ *sqlx.Tx, m Mutation) (*Result, error) {
	return r.Apply(ctx, m)
}

func (r *memRepo) GetBalance(_ context.Context, userID uuid.UUID) (*Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.balance(userID)
	if err != nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func (r *memRepo) ListTransactions(_ context.Context, filter TransactionFilter) ([]Transaction, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for i := len(r.log) - 1; i >= 0; i-- {
		tx := r.log[i]
		if tx.UserID == filter.UserID && (filter.Type == "" || tx.Type == filter.Type) {
			out = append(out, tx)
		}
	}
	return out, len(out), nil
}

func (r *memRepo) ListUsersWithCredits(context.Context, UserFilter) ([]UserWithCredits, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []UserWithCredits
	for id, b := range r.balances {
		out = append(out, UserWithCredits{UserID: id, TotalCredits: b.TotalCredits, RemainingCredits: b.RemainingCredits})
	}
	return out, len(out), nil
}

func (r *memRepo) CreditStats(context.Context) (*CreditStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &CreditStats{}
	for _, b := range r.balances {
		stats.Total += b.RemainingCredits
	}
	return stats, nil
}

func (r *memRepo) SearchTransactions(context.Context, SearchFilter) ([]TransactionWithUser, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TransactionWithUser, len(r.log))
	for i, tx := range r.log {
		out[i] = TransactionWithUser{Transaction: tx}
	}
	return out, len(out), nil
}

func (r *memRepo) TypeBreakdown(context.Context) (map[TxType]TypeTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[TxType]TypeTotal)
	for _, tx := range r.log {
		t := out[tx.Type]
		t.Count++
		if tx.Amount < 0 {
			t.TotalAmount -= tx.Amount
		} else {
			t.TotalAmount += tx.Amount
		}
		out[tx.Type] = t
	}
	return out, nil
}

type fakeAuthz map[uuid.UUID]admin.Privilege

func (f fakeAuthz) Resolve(_ context.Context, userID uuid.UUID) (admin.Grant, error) {
	return admin.Grant{UserID: userID, Privilege: f[userID]}, nil
}

type auditEntry struct {
	adminID uuid.UUID
	action  string
	entity  string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (f *fakeAudit) LogAction(_ context.Context, adminID uuid.UUID, action, _, entityID string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{adminID: adminID, action: action, entity: entityID})
}

type fakeSettings map[string]int64

func (f fakeSettings) Int64(_ context.Context, key string, def int64) (int64, error) {
	if v, ok := f[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f fakeSettings) Bool(context.Context, string, bool) (bool, error) {
	return false, nil
}

type publishedEvent struct {
	userID    uuid.UUID
	eventType realtime.EventType
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishToUser(_ context.Context, userID uuid.UUID, eventType realtime.EventType, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, eventType: eventType})
	return nil
}

type testEnv struct {
	repo      *memRepo
	authz     fakeAuthz
	audit     *fakeAudit
	settings  fakeSettings
	publisher *fakePublisher
	svc       *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:      newMemRepo(),
		authz:     fakeAuthz{},
		audit:     &fakeAudit{},
		settings:  fakeSettings{},
		publisher: &fakePublisher{},
	}
	env.svc = NewService(env.repo, env.authz, env.audit, env.settings, env.publisher)
	return env
}

func (env *testEnv) user() uuid.UUID {
	id := uuid.New()
	env.repo.mu.Lock()
	env.repo.known[id] = true
	env.repo.mu.Unlock()
	return id
}

func (env *testEnv) adminUser(p admin.Privilege) uuid.UUID {
	id := env.user()
	env.authz[id] = p
	return id
}
