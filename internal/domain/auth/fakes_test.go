package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/user"
	"github.com/banana-studio/banana-api/internal/pkg/jwt"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*user.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]*user.User)}
}

func (f *fakeUsers) Create(ctx context.Context, u *user.User) error {
	return f.CreateTx(ctx, nil, u)
}

func (f *fakeUsers) CreateTx(_ context.Context, _ *sqlx.Tx, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[u.Email]; ok {
		return user.ErrEmailAlreadyExists
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

func (f *fakeUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byEmail[email]
	return ok, nil
}

// fakeCodes mirrors codeRepository over a slice.
type fakeCodes struct {
	mu        sync.Mutex
	codes     []*VerificationCode
	createErr error
}

func (f *fakeCodes) Create(_ context.Context, code *VerificationCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	code.ID = uuid.New()
	code.CreatedAt = time.Now().Add(time.Duration(len(f.codes)) * time.Millisecond)
	f.codes = append(f.codes, code)
	return nil
}

func (f *fakeCodes) LatestCreatedAt(_ context.Context, email string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *time.Time
	for _, c := range f.codes {
		if c.Email == email && (latest == nil || c.CreatedAt.After(*latest)) {
			t := c.CreatedAt
			latest = &t
		}
	}
	return latest, nil
}

func (f *fakeCodes) unused(email string) []*VerificationCode {
	var out []*VerificationCode
	for _, c := range f.codes {
		if c.Email == email && !c.Used {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeCodes) FindUnused(_ context.Context, email, codeHash string) (*VerificationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.unused(email) {
		if c.CodeHash == codeHash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrInvalidCode
}

func (f *fakeCodes) RecordMiss(_ context.Context, email string, maxAttempts int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := f.unused(email)
	if len(pending) == 0 {
		return 0, nil
	}
	pending[0].Attempts++
	attempts := pending[0].Attempts
	if attempts >= maxAttempts {
		for _, c := range pending {
			c.Used = true
		}
	}
	return attempts, nil
}

func (f *fakeCodes) MarkUsedTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.codes {
		if c.ID == id && !c.Used {
			now := time.Now()
			c.Used = true
			c.UsedAt = &now
			return nil
		}
	}
	return ErrInvalidCode
}

func (f *fakeCodes) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.codes {
		if c.ID == id {
			f.codes = append(f.codes[:i], f.codes[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeCooldown struct {
	mu    sync.Mutex
	taken map[string]bool
}

func (f *fakeCooldown) Acquire(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken == nil {
		f.taken = make(map[string]bool)
	}
	if f.taken[email] {
		return false, nil
	}
	f.taken[email] = true
	return true, nil
}

func (f *fakeCooldown) Release(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.taken, email)
	return nil
}

type fakeTokens struct {
	mu     sync.Mutex
	hashes map[string]uuid.UUID
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{hashes: make(map[string]uuid.UUID)}
}

func (f *fakeTokens) Save(_ context.Context, hash string, userID uuid.UUID, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[hash] = userID
	return nil
}

func (f *fakeTokens) Take(_ context.Context, hash string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.hashes[hash]
	if !ok {
		return uuid.Nil, ErrInvalidRefreshToken
	}
	delete(f.hashes, hash)
	return id, nil
}

func (f *fakeTokens) Delete(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hashes, hash)
	return nil
}

type fakeMailer struct {
	mu      sync.Mutex
	codes   map[string]string
	welcome []string
	err     error
}

func (f *fakeMailer) SendVerificationCode(_ context.Context, to, code string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes == nil {
		f.codes = make(map[string]string)
	}
	f.codes[to] = code
	return f.err
}

func (f *fakeMailer) SendWelcome(to string, _ int64, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.welcome = append(f.welcome, to)
}

type fakeLedger struct {
	mu       sync.Mutex
	applied  []credit.Mutation
	failWith error
}

func (f *fakeLedger) ApplyTx(_ context.Context, _ *sqlx.Tx, m credit.Mutation) (*credit.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.applied = append(f.applied, m)
	ref := m.ReferenceID
	return &credit.Result{
		Transaction: credit.Transaction{ID: uuid.New(), UserID: m.UserID, Type: m.Type, Amount: m.Amount, BalanceAfter: m.Amount, ReferenceID: &ref},
		Balance:     credit.Balance{UserID: m.UserID, TotalCredits: m.Amount, RemainingCredits: m.Amount},
	}, nil
}

type fakeCommitter struct {
	results []*credit.Result
}

func (f *fakeCommitter) Committed(_ context.Context, result *credit.Result) {
	f.results = append(f.results, result)
}

type fakeSettings map[string]int64

func (f fakeSettings) Int64(_ context.Context, key string, def int64) (int64, error) {
	if v, ok := f[key]; ok {
		return v, nil
	}
	return def, nil
}

func (f fakeSettings) Bool(_ context.Context, _ string, def bool) (bool, error) {
	return def, nil
}

type testEnv struct {
	users     *fakeUsers
	codes     *fakeCodes
	cooldown  *fakeCooldown
	tokens    *fakeTokens
	mailer    *fakeMailer
	ledger    *fakeLedger
	committer *fakeCommitter
	settings  fakeSettings
	jwt       *jwt.Service
	svc       *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		users:     newFakeUsers(),
		codes:     &fakeCodes{},
		cooldown:  &fakeCooldown{},
		tokens:    newFakeTokens(),
		mailer:    &fakeMailer{},
		ledger:    &fakeLedger{},
		committer: &fakeCommitter{},
		settings:  fakeSettings{},
		jwt:       jwt.NewService("test-secret", time.Hour, 24*time.Hour),
	}
	env.svc = NewService(Deps{
		Users:     env.users,
		Codes:     env.codes,
		Cooldown:  env.cooldown,
		Tokens:    env.tokens,
		JWT:       env.jwt,
		Mailer:    env.mailer,
		Ledger:    env.ledger,
		Committer: env.committer,
		Settings:  env.settings,
		RunTx: func(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
			return fn(nil)
		},
	})
	return env
}
