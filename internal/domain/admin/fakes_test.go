package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banana-studio/banana-api/internal/pkg/upload"
)

type fakeRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*Profile
	settings map[string]json.RawMessage
	audit    []AuditLog
	err      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles: make(map[uuid.UUID]*Profile),
		settings: make(map[string]json.RawMessage),
	}
}

func (f *fakeRepo) addAdmin(role string) uuid.UUID {
	id := uuid.New()
	now := time.Now()
	f.profiles[id] = &Profile{UserID: id, Email: id.String()[:8] + "@test.banana", Role: role, CreatedAt: now, UpdatedAt: now}
	return id
}

func (f *fakeRepo) GetProfile(_ context.Context, userID uuid.UUID) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) ListProfiles(_ context.Context, filter ListAdminsFilter) ([]Profile, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Profile
	for _, p := range f.profiles {
		if filter.Role == "" || p.Role == filter.Role {
			out = append(out, *p)
		}
	}
	return out, len(out), f.err
}

func (f *fakeRepo) CountByRole(context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, p := range f.profiles {
		counts[p.Role]++
	}
	return counts, f.err
}

func (f *fakeRepo) UpdateProfile(_ context.Context, userID uuid.UUID, update ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return ErrAdminNotFound
	}
	if update.QRCodeURL != nil {
		p.QRCodeURL = update.QRCodeURL
	}
	if update.RechargeInstructions != nil {
		p.RechargeInstructions = update.RechargeInstructions
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) LatestPaymentProfile(context.Context) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *Profile
	for _, p := range f.profiles {
		if p.QRCodeURL == nil {
			continue
		}
		if latest == nil || p.UpdatedAt.After(latest.UpdatedAt) {
			latest = p
		}
	}
	return latest, nil
}

func (f *fakeRepo) GetSetting(_ context.Context, key string) (*Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.settings[key]
	if !ok {
		return nil, nil
	}
	return &Setting{Key: key, Value: v}, nil
}

func (f *fakeRepo) ListSettings(context.Context) ([]Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Setting
	for k, v := range f.settings {
		out = append(out, Setting{Key: k, Value: v})
	}
	return out, nil
}

func (f *fakeRepo) UpsertSettings(_ context.Context, values map[string]json.RawMessage, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		f.settings[k] = v
	}
	return nil
}

func (f *fakeRepo) CreateAuditLog(_ context.Context, entry *AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, *entry)
	return nil
}

func (f *fakeRepo) ListAuditLogs(context.Context, AuditFilter) ([]AuditLog, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audit, len(f.audit), nil
}

type fakeUploader struct {
	got []byte
	err error
}

func (u *fakeUploader) Image(_ context.Context, category string, ownerID uuid.UUID, reader io.Reader, _ bool) (*upload.Result, error) {
	if u.err != nil {
		return nil, u.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	u.got = buf.Bytes()
	key := category + "/" + ownerID.String() + "/qr.png"
	return &upload.Result{Key: key, URL: "https://cdn.test/" + key, ContentType: "image/png"}, nil
}

var errLookup = errors.New("lookup failed")
