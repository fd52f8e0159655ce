package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"undertow/internal/auth"
	"undertow/internal/core"
	"undertow/internal/forecast"
	"undertow/internal/storage"
)

// memStore is an in-memory Store and forecast.Source for handler tests.
type memStore struct {
	mu           sync.Mutex
	nextID       int64
	users        []storage.User
	recurring    map[int64][]core.RecurringDefinition
	paychecks    map[int64]*core.PaycheckStream
	balances     map[int64]*core.StartingBalance
	transactions map[int64][]core.Transaction
}

func newMemStore() *memStore {
	return &memStore{
		recurring:    make(map[int64][]core.RecurringDefinition),
		paychecks:    make(map[int64]*core.PaycheckStream),
		balances:     make(map[int64]*core.StartingBalance),
		transactions: make(map[int64][]core.Transaction),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(ctx context.Context, email, passwordHash string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return storage.User{}, fmt.Errorf("unique constraint: %s", email)
		}
	}
	u := storage.User{ID: m.id(), Email: email, PasswordHash: passwordHash}
	m.users = append(m.users, u)
	return u, nil
}

func (m *memStore) FindUserByEmail(ctx context.Context, email string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (m *memStore) GetUser(ctx context.Context, id int64) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (m *memStore) CreateRecurring(ctx context.Context, userID int64, def core.RecurringDefinition) (core.RecurringDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def.ID = m.id()
	m.recurring[userID] = append(m.recurring[userID], def)
	return def, nil
}

func (m *memStore) ListRecurring(ctx context.Context, userID int64) ([]core.RecurringDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.RecurringDefinition(nil), m.recurring[userID]...), nil
}

func (m *memStore) UpdateRecurring(ctx context.Context, userID int64, def core.RecurringDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.recurring[userID] {
		if d.ID == def.ID {
			m.recurring[userID][i] = def
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) DeleteRecurring(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defs := m.recurring[userID]
	for i, d := range defs {
		if d.ID == id {
			m.recurring[userID] = append(defs[:i], defs[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) UpsertPaycheckStream(ctx context.Context, userID int64, ps core.PaycheckStream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paychecks[userID] = &ps
	return nil
}

func (m *memStore) GetPaycheckStream(ctx context.Context, userID int64) (*core.PaycheckStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paychecks[userID], nil
}

func (m *memStore) UpsertStartingBalance(ctx context.Context, userID int64, amount core.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = &core.StartingBalance{Amount: amount}
	return nil
}

func (m *memStore) GetStartingBalance(ctx context.Context, userID int64) (*core.StartingBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *memStore) CreateTransaction(ctx context.Context, userID int64, tx core.Transaction) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.ID = m.id()
	m.transactions[userID] = append(m.transactions[userID], tx)
	return tx, nil
}

func (m *memStore) ListTransactions(ctx context.Context, userID int64, from, to time.Time) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Transaction
	for _, tx := range m.transactions[userID] {
		if !tx.Date.Before(from) && !tx.Date.After(to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTransaction(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := m.transactions[userID]
	for i, tx := range txs {
		if tx.ID == id {
			m.transactions[userID] = append(txs[:i], txs[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := newMemStore()
	authSvc := auth.NewService("test-secret-at-least-16-chars", time.Hour)
	builder := forecast.NewBuilder(store, nil)
	srv := NewServer(":0", store, builder, authSvc, nil, 16, time.Minute, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func signupToken(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "user@example.com",
		"password": "long enough password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSignupLoginVerify(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	// Duplicate signup conflicts.
	rec := doJSON(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "user@example.com", "password": "long enough password",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Wrong password rejected.
	rec = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "not the password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct login issues a token.
	rec = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "long enough password",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Verify resolves the account behind the token.
	rec = doJSON(t, srv, http.MethodGet, "/api/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify struct {
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verify))
	assert.Equal(t, "user@example.com", verify.Email)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/recurring"},
		{http.MethodGet, "/api/calendar/month?year=2025&month=2"},
		{http.MethodPut, "/api/balance"},
	} {
		rec := doJSON(t, srv, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
}

func TestRecurringValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"bad amount", map[string]string{
			"name": "Rent", "amount": "abc", "kind": "expense",
			"frequency": "monthly", "startDate": "2025-01-01"}},
		{"bad frequency", map[string]string{
			"name": "Rent", "amount": "500", "kind": "expense",
			"frequency": "hourly", "startDate": "2025-01-01"}},
		{"bad date", map[string]string{
			"name": "Rent", "amount": "500", "kind": "expense",
			"frequency": "monthly", "startDate": "01/01/2025"}},
		{"negative amount", map[string]string{
			"name": "Rent", "amount": "-500", "kind": "expense",
			"frequency": "monthly", "startDate": "2025-01-01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/recurring", token, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCalendarMonthFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	rec := doJSON(t, srv, http.MethodPut, "/api/balance", token, map[string]string{"amount": "1000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/recurring", token, map[string]string{
		"name": "Rent", "amount": "500", "kind": "expense",
		"frequency": "monthly", "startDate": "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/calendar/month?year=2025&month=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proj core.MonthProjection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proj))
	require.Len(t, proj.Days, 28)
	assert.Equal(t, int64(50000), proj.Days[0].EndBalance.Cents)
	assert.Equal(t, int64(50000), proj.Summary.EndingBalance.Cents)

	// A recorded actual must show up on the next read, proving the cached
	// projection was invalidated by the write.
	rec = doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]string{
		"description": "Rent", "amount": "-520", "date": "2025-02-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/calendar/month?year=2025&month=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proj))
	day1 := proj.Days[0]
	require.Len(t, day1.Events, 1)
	assert.False(t, day1.Events[0].Projected)
	assert.Equal(t, int64(52000), day1.ExpenseTotal.Cents)
	assert.Equal(t, int64(48000), day1.EndBalance.Cents)
}

func TestCalendarMonthRejectsBadPeriod(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	for _, path := range []string{
		"/api/calendar/month?year=2025&month=13",
		"/api/calendar/month?year=abc&month=2",
		"/api/calendar/month?month=2",
	} {
		rec := doJSON(t, srv, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestCalendarYearChains(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	rec := doJSON(t, srv, http.MethodPut, "/api/balance", token, map[string]string{"amount": "1000"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/recurring", token, map[string]string{
		"name": "Rent", "amount": "500", "kind": "expense",
		"frequency": "monthly", "startDate": "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/calendar/year?year=2025", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var forecastResp core.YearForecast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forecastResp))
	require.Len(t, forecastResp.Months, 12)
	for m := 1; m < 12; m++ {
		assert.Equal(t,
			forecastResp.Months[m-1].Summary.EndingBalance.Cents,
			forecastResp.Months[m].StartingBalance.Cents)
	}
}

func TestCalendarMonthStartingBalanceOverride(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	rec := doJSON(t, srv, http.MethodPut, "/api/balance", token, map[string]string{"amount": "1000"})
	require.Equal(t, http.StatusOK, rec.Code)

	// The override wins over the stored balance and must not poison the cache.
	rec = doJSON(t, srv, http.MethodGet, "/api/calendar/month?year=2025&month=2&startingBalance=-50", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proj core.MonthProjection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proj))
	assert.Equal(t, int64(-5000), proj.StartingBalance.Cents)

	rec = doJSON(t, srv, http.MethodGet, "/api/calendar/month?year=2025&month=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proj))
	assert.Equal(t, int64(100000), proj.StartingBalance.Cents)

	rec = doJSON(t, srv, http.MethodGet, "/api/calendar/month?year=2025&month=2&startingBalance=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarExportUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/calendar/export?year=2025&month=2", token, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestPaycheckAndBalanceRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/paycheck", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/paycheck", token, map[string]string{
		"amount": "1500.50", "frequency": "biweekly", "startDate": "2025-01-03",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodGet, "/api/paycheck", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ps paycheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ps))
	assert.Equal(t, int64(150050), ps.AmountCents)
	assert.Equal(t, "biweekly", ps.Frequency)

	// Balance defaults to zero before any write.
	rec = doJSON(t, srv, http.MethodGet, "/api/balance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bal balanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, int64(0), bal.AmountCents)

	rec = doJSON(t, srv, http.MethodPut, "/api/balance", token, map[string]string{"amount": "-12.34"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodGet, "/api/balance", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, int64(-1234), bal.AmountCents)
}

func TestTransactionsListAndDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signupToken(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]string{
		"description": "Groceries", "amount": "-84.50", "category": "food", "date": "2025-02-10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(-8450), created.AmountCents)

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions?year=2025&month=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
