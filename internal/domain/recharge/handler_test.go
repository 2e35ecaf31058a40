package recharge

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banana-studio/banana-api/internal/domain/admin"
	"github.com/banana-studio/banana-api/internal/middleware"
)

type authorizerFunc func(ctx context.Context, userID uuid.UUID) (admin.Grant, error)

func (f authorizerFunc) Resolve(ctx context.Context, userID uuid.UUID) (admin.Grant, error) {
	return f(ctx, userID)
}

func newTestRouter(env *testEnv, callerID uuid.UUID, privilege admin.Privilege) http.Handler {
	authz := authorizerFunc(func(_ context.Context, userID uuid.UUID) (admin.Grant, error) {
		return admin.Grant{UserID: userID, Privilege: privilege}, nil
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), callerID, "caller@test.banana")))
		})
	})
	NewHandler(env.svc).Mount(r, authz)
	return r
}

func serve(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]json.RawMessage
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestCreateRequestJSON(t *testing.T) {
	env := newTestEnv(fakeSettings{})
	userID := env.repo.addUser()
	h := newTestRouter(env, userID, admin.Viewer)

	req := httptest.NewRequest(http.MethodPost, "/create-recharge-request",
		strings.NewReader(`{"plan_id": "credits_100", "payment_method": "wechat"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body := serve(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Record
	require.NoError(t, json.Unmarshal(body["data"], &created))
	assert.Equal(t, int64(100), created.CreditsAmount)
	assert.Equal(t, StatusPending, created.Status)

	req = httptest.NewRequest(http.MethodPost, "/create-recharge-request",
		strings.NewReader(`{"credits_amount": 10, "payment_method": "paypal"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, _ = serve(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequestMultipart(t *testing.T) {
	env := newTestEnv(fakeSettings{})
	userID := env.repo.addUser()
	h := newTestRouter(env, userID, admin.Viewer)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("credits_amount", "120"))
	require.NoError(t, mw.WriteField("payment_method", "alipay"))
	part, err := mw.CreateFormFile("payment_screenshot", "shot.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/create-recharge-request", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, body := serve(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Record
	require.NoError(t, json.Unmarshal(body["data"], &created))
	assert.Equal(t, int64(120), created.CreditsAmount)
	require.NotNil(t, created.PaymentScreenshotURL)
}

func TestAdminRechargeRoutes(t *testing.T) {
	env := newTestEnv(fakeSettings{})
	userID := env.repo.addUser()

	rec, err := env.svc.CreateRequest(context.Background(), userID, &CreateRequest{CreditsAmount: 300, PaymentMethod: MethodWeChat}, nil)
	require.NoError(t, err)

	body := `{"recharge_id": "` + rec.ID.String() + `", "status": "completed"}`
	post := func(h http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin-update-recharge-status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := serve(h, req)
		return resp
	}

	assert.Equal(t, http.StatusForbidden, post(newTestRouter(env, userID, admin.Viewer)).Code)

	h := newTestRouter(env, uuid.New(), admin.Admin)
	assert.Equal(t, http.StatusOK, post(h).Code)

	again := post(h)
	assert.Equal(t, http.StatusBadRequest, again.Code)
	assert.Contains(t, again.Body.String(), "INVALID_TRANSITION")
	assert.Equal(t, int64(300), env.repo.credited[userID])

	req := httptest.NewRequest(http.MethodGet, "/admin-get-recharge-records?status=completed&min_amount=x", nil)
	resp, _ := serve(h, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin-get-recharge-records?status=completed", nil)
	resp, data := serve(h, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(data["data"], &list))
	assert.Len(t, list.Recharges, 1)
}

func TestManualAddRoute(t *testing.T) {
	env := newTestEnv(fakeSettings{})
	userID := env.repo.addUser()
	h := newTestRouter(env, uuid.New(), admin.Admin)

	req := httptest.NewRequest(http.MethodPost, "/admin-add-recharge",
		strings.NewReader(`{"user_id": "`+userID.String()+`", "credits_amount": 80, "payment_amount": "8.00", "payment_method": "bank_transfer"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, body := serve(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp TransitionResponse
	require.NoError(t, json.Unmarshal(body["data"], &resp))
	assert.Equal(t, StatusCompleted, resp.Record.Status)
	assert.Equal(t, int64(80), resp.CreditsAdded)
}

func TestGetMyRecordsAndPlans(t *testing.T) {
	env := newTestEnv(fakeSettings{})
	userID := env.repo.addUser()
	_, err := env.svc.CreateRequest(context.Background(), userID, &CreateRequest{CreditsAmount: 10, PaymentMethod: MethodWeChat}, nil)
	require.NoError(t, err)
	h := newTestRouter(env, userID, admin.Viewer)

	rec, body := serve(h, httptest.NewRequest(http.MethodGet, "/get-my-recharge-records", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body["meta"]), `"total":1`)

	rec, body = serve(h, httptest.NewRequest(http.MethodGet, "/get-recharge-plans", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []Plan
	require.NoError(t, json.Unmarshal(body["data"], &plans))
	assert.Len(t, plans, 4)

	rec, _ = serve(h, httptest.NewRequest(http.MethodGet, "/get-payment-info", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
