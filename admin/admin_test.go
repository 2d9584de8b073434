package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"agentsite/auth"
	"agentsite/common"
	"agentsite/database"
	"agentsite/logging"
	"agentsite/metrics"
	"agentsite/models"
	"agentsite/newsletter"
	"agentsite/subscribers"
)

const testSecret = "admin-test-secret-0123456789"

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := common.OpenMemoryDb()
	require.NoError(t, err)
	nullLogger, _ := test.NewNullLogger()
	require.NoError(t, database.RunMigrations(db, logging.Wrap(nullLogger)))
	return db
}

func setupTestRouter(t *testing.T, subs SubscriberStore, signups SignupLister) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	nullLogger, _ := test.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())
	gate := auth.NewGate(auth.AdminIdentity{Username: "admin", Password: "s3cret"}, 24*time.Hour, false)
	adminModule := NewAdminModule(subs, signups, gate, logging.Wrap(nullLogger), m)

	router := gin.New()
	router.Use(auth.AdminSessions(auth.NewAdminSessionStore([]byte(testSecret), 24*time.Hour, false)))
	adminModule.RegisterRoutes(router)
	return router, m
}

func setupWithDB(t *testing.T) (*gin.Engine, *subscribers.Store, *newsletter.Store, *metrics.Metrics) {
	db := setupTestDB(t)
	subs := subscribers.NewStore(db)
	signups := newsletter.NewStore(db)
	router, m := setupTestRouter(t, subs, signups)
	return router, subs, signups, m
}

func doRequest(router *gin.Engine, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginAdmin(t *testing.T, router *gin.Engine) *http.Cookie {
	t.Helper()
	w := doRequest(router, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.AdminSessionCookie {
			return ck
		}
	}
	t.Fatal("admin login did not set a session cookie")
	return nil
}

func listSubscribers(t *testing.T, router *gin.Engine, ck *http.Cookie) []models.Subscriber {
	t.Helper()
	w := doRequest(router, http.MethodGet, "/api/admin/subscribers", "", ck)
	require.Equal(t, http.StatusOK, w.Code)
	var subs []models.Subscriber
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &subs))
	return subs
}

func paidByEmail(subs []models.Subscriber) map[string]int {
	out := make(map[string]int, len(subs))
	for _, s := range subs {
		out[s.Email] = s.Paid
	}
	return out
}

func TestAdminRoutes_RequireSession(t *testing.T) {
	router, _, _, _ := setupWithDB(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/admin/subscribers", ""},
		{http.MethodPatch, "/api/admin/subscribers", `{"email":"a@b.com","paid":1}`},
		{http.MethodGet, "/api/admin/signups", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
		})
	}
}

func TestAdminLogin_WrongCredentials(t *testing.T) {
	router, _, _, m := setupWithDB(t)

	w := doRequest(router, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"guess"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, w.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("admin", "rejected")))
}

func TestAdminLogin_SubscriberCredentialsDoNotWork(t *testing.T) {
	router, subs, _, _ := setupWithDB(t)
	hash, err := subscribers.HashPassword("pw1", 4)
	require.NoError(t, err)
	_, err = subs.CreateSubscriber(context.Background(), "sub@b.com", &hash)
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/api/admin/login", `{"username":"sub@b.com","password":"pw1"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetPaid_ShowsInList(t *testing.T) {
	router, subs, _, m := setupWithDB(t)
	ctx := context.Background()
	_, err := subs.CreateSubscriber(ctx, "a@b.com", nil)
	require.NoError(t, err)
	_, err = subs.CreateSubscriber(ctx, "c@d.com", nil)
	require.NoError(t, err)

	ck := loginAdmin(t, router)

	w := doRequest(router, http.MethodPatch, "/api/admin/subscribers", `{"email":"c@d.com","paid":1}`, ck)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	paid := paidByEmail(listSubscribers(t, router, ck))
	assert.Equal(t, 1, paid["c@d.com"])
	assert.Equal(t, 0, paid["a@b.com"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaidUpdatesTotal))
}

func TestSetPaid_Idempotent(t *testing.T) {
	router, subs, _, _ := setupWithDB(t)
	_, err := subs.CreateSubscriber(context.Background(), "a@b.com", nil)
	require.NoError(t, err)
	ck := loginAdmin(t, router)

	for i := 0; i < 2; i++ {
		w := doRequest(router, http.MethodPatch, "/api/admin/subscribers", `{"email":"a@b.com","paid":true}`, ck)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 1, paidByEmail(listSubscribers(t, router, ck))["a@b.com"])

	w := doRequest(router, http.MethodPatch, "/api/admin/subscribers", `{"email":"a@b.com","paid":false}`, ck)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, paidByEmail(listSubscribers(t, router, ck))["a@b.com"])
}

func TestSetPaid_BadRequests(t *testing.T) {
	router, subs, _, _ := setupWithDB(t)
	_, err := subs.CreateSubscriber(context.Background(), "a@b.com", nil)
	require.NoError(t, err)
	ck := loginAdmin(t, router)

	bodies := []string{
		`{"email":"a@b.com"}`,
		`{"email":"a@b.com","paid":2}`,
		`{"email":"a@b.com","paid":"1"}`,
		`{"email":"a@b.com","paid":null}`,
		`{"paid":1}`,
		`{"email":"a@b.com","paid":`,
	}
	for _, body := range bodies {
		w := doRequest(router, http.MethodPatch, "/api/admin/subscribers", body, ck)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, 0, paidByEmail(listSubscribers(t, router, ck))["a@b.com"])
}

func TestSetPaid_UnknownEmail(t *testing.T) {
	router, _, _, _ := setupWithDB(t)
	ck := loginAdmin(t, router)

	w := doRequest(router, http.MethodPatch, "/api/admin/subscribers", `{"email":"ghost@b.com","paid":1}`, ck)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSubscribers_ETag(t *testing.T) {
	router, subs, _, _ := setupWithDB(t)
	_, err := subs.CreateSubscriber(context.Background(), "a@b.com", nil)
	require.NoError(t, err)
	ck := loginAdmin(t, router)

	w := doRequest(router, http.MethodGet, "/api/admin/subscribers", "", ck)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/subscribers", nil)
	req.Header.Set("If-None-Match", etag)
	req.AddCookie(ck)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = doRequest(router, http.MethodPatch, "/api/admin/subscribers", `{"email":"a@b.com","paid":1}`, ck)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/subscribers", nil)
	req.Header.Set("If-None-Match", etag)
	req.AddCookie(ck)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, etag, w.Header().Get("ETag"))
}

func TestListSubscribers_HidesPasswordHash(t *testing.T) {
	router, subs, _, _ := setupWithDB(t)
	hash := "$2a$04$abcdefghijklmnopqrstuv"
	_, err := subs.CreateSubscriber(context.Background(), "a@b.com", &hash)
	require.NoError(t, err)
	ck := loginAdmin(t, router)

	w := doRequest(router, http.MethodGet, "/api/admin/subscribers", "", ck)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), hash)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.ElementsMatch(t, []string{"id", "email", "created_at", "paid"}, keys(rows[0]))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestListSignups(t *testing.T) {
	router, _, signups, _ := setupWithDB(t)
	ctx := context.Background()
	_, err := signups.AddEmailSignup(ctx, "n1@b.com")
	require.NoError(t, err)
	_, err = signups.AddEmailSignup(ctx, "n2@b.com")
	require.NoError(t, err)
	ck := loginAdmin(t, router)

	w := doRequest(router, http.MethodGet, "/api/admin/signups", "", ck)

	require.Equal(t, http.StatusOK, w.Code)
	var rows []models.EmailSignup
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "n2@b.com", rows[0].Email)
}

func TestAdminLogout_EndsSession(t *testing.T) {
	router, _, _, _ := setupWithDB(t)
	ck := loginAdmin(t, router)

	w := doRequest(router, http.MethodPost, "/api/admin/logout", "", ck)
	require.Equal(t, http.StatusOK, w.Code)

	var cleared *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.AdminSessionCookie {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	w = doRequest(router, http.MethodGet, "/api/admin/subscribers", "", cleared)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutes_BareSentinelCookieRejected(t *testing.T) {
	router, _, _, _ := setupWithDB(t)

	w := doRequest(router, http.MethodGet, "/api/admin/subscribers", "",
		&http.Cookie{Name: auth.AdminSessionCookie, Value: "true"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type failingStore struct{}

func (failingStore) ListSubscribers(context.Context) ([]models.Subscriber, error) {
	return nil, &subscribers.StorageError{Op: "test", Err: errors.New("disk I/O error")}
}

func (failingStore) SetPaidStatus(context.Context, string, bool) error {
	return &subscribers.StorageError{Op: "test", Err: errors.New("disk I/O error")}
}

func (failingStore) ListEmailSignups(context.Context) ([]models.EmailSignup, error) {
	return nil, errors.New("disk I/O error")
}

func TestAdminRoutes_StorageFailure(t *testing.T) {
	router, _ := setupTestRouter(t, failingStore{}, failingStore{})
	ck := loginAdmin(t, router)

	w := doRequest(router, http.MethodGet, "/api/admin/subscribers", "", ck)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))

	w = doRequest(router, http.MethodPatch, "/api/admin/subscribers", `{"email":"a@b.com","paid":0}`, ck)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = doRequest(router, http.MethodGet, "/api/admin/signups", "", ck)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestParsePaidFlag(t *testing.T) {
	tests := []struct {
		raw  string
		paid bool
		ok   bool
	}{
		{"1", true, true},
		{"true", true, true},
		{" 0 ", false, true},
		{"false", false, true},
		{"2", false, false},
		{`"1"`, false, false},
		{"1.0", false, false},
		{"null", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		paid, ok := parsePaidFlag(json.RawMessage(tt.raw))
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.paid, paid, tt.raw)
	}
}
