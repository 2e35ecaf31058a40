package generation

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/pkg/imagegen"
	"github.com/banana-studio/banana-api/internal/pkg/upload"
)

// memRepo keeps jobs in memory and tracks a balance per user.
type memRepo struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*Generation
	order    []uuid.UUID
	balances map[uuid.UUID]int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		jobs:     make(map[uuid.UUID]*Generation),
		balances: make(map[uuid.UUID]int64),
	}
}

func (m *memRepo) addUser(credits int64) uuid.UUID {
	id := uuid.New()
	m.mu.Lock()
	m.balances[id] = credits
	m.mu.Unlock()
	return id
}

func (m *memRepo) balance(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

func (m *memRepo) job(id uuid.UUID) Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

func (m *memRepo) mutate(userID uuid.UUID, t credit.TxType, amount int64, ref string) *credit.Result {
	delta := amount
	if t == credit.TxTypeSpend {
		delta = -amount
	}
	m.balances[userID] += delta
	return &credit.Result{
		Transaction: credit.Transaction{ID: uuid.New(), UserID: userID, Type: t, Amount: delta, BalanceAfter: m.balances[userID]},
		Balance:     credit.Balance{UserID: userID, RemainingCredits: m.balances[userID]},
	}
}

func (m *memRepo) CreateWithDebit(_ context.Context, g *Generation) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.balances[g.UserID]
	if !ok {
		return nil, credit.ErrUserNotFound
	}
	if current < g.Cost {
		return nil, &credit.InsufficientCreditsError{Current: current, Required: g.Cost}
	}

	g.ID = uuid.New()
	g.Status = StatusPending
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	cp := *g
	m.jobs[g.ID] = &cp
	m.order = append(m.order, g.ID)

	out := &Outcome{Generation: g}
	if g.Cost > 0 {
		out.Credit = m.mutate(g.UserID, credit.TxTypeSpend, g.Cost, SpendReference(g.ID))
	}
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]Generation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Generation
	for i := len(m.order) - 1; i >= 0; i-- {
		if g := m.jobs[m.order[i]]; g.UserID == userID {
			all = append(all, *g)
		}
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memRepo) ClaimNext(context.Context) (*Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		g := m.jobs[id]
		if g.Status == StatusPending {
			g.Status = StatusProcessing
			g.Attempts++
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) Complete(_ context.Context, id uuid.UUID, resultURL string) (*Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.jobs[id]
	if g == nil || g.Status != StatusProcessing {
		return nil, ErrNotProcessing
	}
	g.Status = StatusCompleted
	g.ResultURL = &resultURL
	cp := *g
	return &cp, nil
}

func (m *memRepo) Fail(_ context.Context, id uuid.UUID, reason string, maxAttempts int) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.jobs[id]
	if g == nil {
		return nil, ErrNotFound
	}
	if g.Status != StatusProcessing {
		return nil, ErrNotProcessing
	}
	g.Error = &reason
	g.Status = StatusPending
	out := &Outcome{}
	if g.Attempts >= maxAttempts {
		g.Status = StatusFailed
		if g.Cost > 0 {
			out.Credit = m.mutate(g.UserID, credit.TxTypeRefund, g.Cost, RefundReference(g.ID))
		}
	}
	cp := *g
	out.Generation = &cp
	return out, nil
}

func (m *memRepo) ResetStale(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type fakeCommitter struct {
	mu      sync.Mutex
	results []*credit.Result
}

func (f *fakeCommitter) Committed(_ context.Context, result *credit.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

type fakeSettings map[string]int64

func (f fakeSettings) Int64(_ context.Context, key string, def int64) (int64, error) {
	if v, ok := f[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f fakeSettings) Bool(_ context.Context, _ string, def bool) (bool, error) { return def, nil }

type fakePublisher struct {
	mu       sync.Mutex
	statuses []Status
}

func (f *fakePublisher) PublishToUser(_ context.Context, _ uuid.UUID, t realtime.EventType, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := data.(*Generation); ok && t == realtime.EventGenerationUpdated {
		f.statuses = append(f.statuses, g.Status)
	}
	return nil
}

type fakeUploader struct {
	mu         sync.Mutex
	categories []string
	err        error
}

func (f *fakeUploader) Image(_ context.Context, category string, ownerID uuid.UUID, reader io.Reader, _ bool) (*upload.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(reader); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.categories = append(f.categories, category)
	f.mu.Unlock()
	return &upload.Result{URL: "https://cdn.test/" + category + "/" + ownerID.String() + ".webp"}, nil
}

type fakeWaker struct {
	wakes int
}

func (f *fakeWaker) Wake(context.Context) { f.wakes++ }

// fakeGenerator fails the first failures calls, then succeeds.
type fakeGenerator struct {
	failures int
	calls    int
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, req imagegen.Request) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	if f.calls <= f.failures {
		return "", errors.New("model overloaded")
	}
	return "https://model.test/result.png", nil
}

func (f *fakeGenerator) Download(context.Context, string) ([]byte, error) {
	return []byte("png bytes"), nil
}

type testEnv struct {
	repo      *memRepo
	committer *fakeCommitter
	publisher *fakePublisher
	uploader  *fakeUploader
	waker     *fakeWaker
	svc       *Service
}

func newTestEnv(settings fakeSettings) *testEnv {
	env := &testEnv{
		repo:      newMemRepo(),
		committer: &fakeCommitter{},
		publisher: &fakePublisher{},
		uploader:  &fakeUploader{},
		waker:     &fakeWaker{},
	}
	env.svc = NewService(env.repo, Deps{
		Ledger:    env.committer,
		Settings:  settings,
		Publisher: env.publisher,
		Uploader:  env.uploader,
		Waker:     env.waker,
	})
	return env
}

func (env *testEnv) processor(gen Generator) *Processor {
	return NewProcessor(env.repo, ProcessorDeps{
		Generator: gen,
		Uploader:  env.uploader,
		Ledger:    env.committer,
		Publisher: env.publisher,
	})
}
