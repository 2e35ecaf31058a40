package recharge

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/domain/credit"
	"github.com/banana-studio/banana-api/internal/domain/realtime"
	"github.com/banana-studio/banana-api/internal/pkg/telegram"
	"github.com/banana-studio/banana-api/internal/pkg/upload"
)

// memRepo keeps records in memory and credits a per-user counter on
// completion.
type memRepo struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*Record
	order    []uuid.UUID
	credited map[uuid.UUID]int64
	users    map[uuid.UUID]bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		records:  make(map[uuid.UUID]*Record),
		credited: make(map[uuid.UUID]int64),
		users:    make(map[uuid.UUID]bool),
	}
}

func (m *memRepo) addUser() uuid.UUID {
	id := uuid.New()
	m.mu.Lock()
	m.users[id] = true
	m.mu.Unlock()
	return id
}

func (m *memRepo) insert(rec *Record) error {
	if !m.users[rec.UserID] {
		return ErrUserNotFound
	}
	rec.ID = uuid.New()
	rec.Status = StatusPending
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	cp := *rec
	m.records[rec.ID] = &cp
	m.order = append(m.order, rec.ID)
	return nil
}

func (m *memRepo) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(rec)
}

func (m *memRepo) CreateAndTransition(_ context.Context, rec *Record, t Transition) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insert(rec); err != nil {
		return nil, err
	}
	t.RecordID = rec.ID
	return m.transition(t)
}

func (m *memRepo) Transition(_ context.Context, t Transition) (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(t)
}

func (m *memRepo) transition(t Transition) (*Outcome, error) {
	if !t.To.Terminal() {
		return nil, ErrInvalidStatus
	}
	rec, ok := m.records[t.RecordID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	if rec.Status != StatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidTransition, rec.Status)
	}

	now := time.Now()
	rec.Status = t.To
	rec.ProcessedBy = t.ProcessedBy
	rec.ProcessedAt = &now
	if t.Notes != nil {
		rec.AdminNotes = t.Notes
	}

	out := &Outcome{Record: *rec}
	if t.To == StatusCompleted {
		m.credited[rec.UserID] += rec.CreditsAmount
		out.Credit = &credit.Result{
			Transaction: credit.Transaction{
				ID:           uuid.New(),
				UserID:       rec.UserID,
				Type:         credit.TxTypeRecharge,
				Amount:       rec.CreditsAmount,
				BalanceAfter: m.credited[rec.UserID],
			},
			Balance: credit.Balance{
				UserID:           rec.UserID,
				TotalCredits:     m.credited[rec.UserID],
				RemainingCredits: m.credited[rec.UserID],
			},
		}
	}
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*RecordWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &RecordWithUser{Record: *rec, UserEmail: "owner@test.banana"}, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for i := len(m.order) - 1; i >= 0; i-- {
		if rec := m.records[m.order[i]]; rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, len(out), nil
}

func (m *memRepo) Search(_ context.Context, filter Filter) ([]RecordWithUser, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RecordWithUser
	for _, id := range m.order {
		rec := m.records[id]
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, RecordWithUser{Record: *rec})
	}
	return out, len(out), nil
}

func (m *memRepo) StatusBreakdown(context.Context) (map[Status]StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Status]StatusCount)
	for _, rec := range m.records {
		c := out[rec.Status]
		c.Count++
		c.TotalAmount += rec.CreditsAmount
		out[rec.Status] = c
	}
	return out, nil
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

type fakeAudit struct {
	actions []string
}

func (f *fakeAudit) LogAction(_ context.Context, _ uuid.UUID, action, _, _ string, _ interface{}) {
	f.actions = append(f.actions, action)
}

type fakeSettings struct {
	autoApprove bool
	threshold   int64
}

func (f fakeSettings) Int64(context.Context, string, int64) (int64, error) { return f.threshold, nil }
func (f fakeSettings) Bool(context.Context, string, bool) (bool, error) { return f.autoApprove, nil }

type fakePayment struct{}

func (fakePayment) PaymentDetails(context.Context) (*admin.PaymentDetails, error) {
	qr := "https://cdn.test/qr.png"
	return &admin.PaymentDetails{QRCodeURL: &qr}, nil
}

type fakeNotifier struct {
	notices []telegram.RechargeNotice
}

func (f *fakeNotifier) NotifyRecharge(_ context.Context, n telegram.RechargeNotice) error {
	f.notices = append(f.notices, n)
	return nil
}

type fakePublisher struct {
	events []realtime.EventType
}

func (f *fakePublisher) PublishToUser(_ context.Context, _ uuid.UUID, t realtime.EventType, _ interface{}) error {
	f.events = append(f.events, t)
	return nil
}

type fakeUploader struct {
	categories []string
}

func (f *fakeUploader) Image(_ context.Context, category string, ownerID uuid.UUID, reader io.Reader, _ bool) (*upload.Result, error) {
	if _, err := io.ReadAll(reader); err != nil {
		return nil, err
	}
	f.categories = append(f.categories, category)
	return &upload.Result{URL: "https://cdn.test/" + category + "/" + ownerID.String() + ".webp"}, nil
}

type testEnv struct {
	repo      *memRepo
	committer *fakeCommitter
	audit     *fakeAudit
	notifier  *fakeNotifier
	publisher *fakePublisher
	uploader  *fakeUploader
	svc       *Service
}

func newTestEnv(settings fakeSettings) *testEnv {
	env := &testEnv{
		repo:      newMemRepo(),
		committer: &fakeCommitter{},
		audit:     &fakeAudit{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		uploader:  &fakeUploader{},
	}
	env.svc = NewService(env.repo, Deps{
		Ledger:    env.committer,
		Audit:     env.audit,
		Settings:  settings,
		Payment:   fakePayment{},
		Notifier:  env.notifier,
		Publisher: env.publisher,
		Uploader:  env.uploader,
	})
	return env
}
