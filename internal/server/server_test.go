package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/inventory/internal/clock"
	"github.com/smallbiznis/inventory/internal/config"
	"github.com/smallbiznis/inventory/internal/host/dedup"
	hostdomain "github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/smallbiznis/inventory/internal/host/match"
	"github.com/smallbiznis/inventory/internal/host/repository"
	hostservice "github.com/smallbiznis/inventory/internal/host/service"
	"github.com/smallbiznis/inventory/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAccount = "000501"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine *gin.Engine
	svc    hostdomain.Service
	clock  *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&hostdomain.Host{}))

	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	builder := match.NewBuilder()
	store := repository.NewStore(repository.StoreParams{DB: db, Repo: repo, Builder: builder, Clock: clk})

	svc := hostservice.New(hostservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     repo,
		Store:    store,
		Builder:  builder,
		Resolver: dedup.NewResolver(store, zap.NewNop()),
		Locker:   lock.NewLocalLocker(func() lock.Settings { return lock.Settings{TTL: time.Second, Wait: time.Second} }),
		Clock:    clk,
		Ingest:   config.NewStaticIngestConfigHolder(config.DefaultIngestConfig()),
	})

	return newTestServerWith(t, svc, clk)
}

func newTestServerWith(t *testing.T, svc hostdomain.Service, clk *clock.FakeClock) *testServer {
	t.Helper()

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:     r,
		Cfg:     config.Config{Environment: "test"},
		Log:     zap.NewNop(),
		HostSvc: svc,
	})
	return &testServer{engine: r, svc: svc, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, apiPrefix+path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdentity, EncodeIdentity(testAccount))

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) seed(t *testing.T, rec hostdomain.HostRecord) hostdomain.Host {
	t.Helper()
	if rec.Account == "" {
		rec.Account = testAccount
	}
	res, err := s.svc.AddHost(t.Context(), rec)
	require.NoError(t, err)
	s.clock.Advance(time.Minute)
	return res.Host
}

type listBody struct {
	Count   int                      `json:"count"`
	Page    int                      `json:"page"`
	PerPage int                      `json:"per_page"`
	Total   int64                    `json:"total"`
	Results []map[string]interface{} `json:"results"`
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) listBody {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"missing":        "",
		"not_base64":     "%%%",
		"not_json":       "bm90IGpzb24=",
		"empty_account":  EncodeIdentity(""),
		"no_identity":    "e30=",
		"whitespace_acc": EncodeIdentity("   "),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, apiPrefix+"/hosts", nil)
			if header != "" {
				req.Header.Set(HeaderIdentity, header)
			}
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "unauthorized", decodeError(t, w).Type)
		})
	}
}

func TestListHostsFlattensCanonicalFacts(t *testing.T) {
	s := newTestServer(t)
	insightsID := uuid.NewString()
	s.seed(t, hostdomain.HostRecord{InsightsID: insightsID, FQDN: "web01.example.com"})

	body := decodeList(t, s.do(t, http.MethodGet, "/hosts", nil))
	require.Len(t, body.Results, 1)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 50, body.PerPage)
	assert.EqualValues(t, 1, body.Total)

	host := body.Results[0]
	assert.Equal(t, insightsID, host["insights_id"])
	assert.Equal(t, "web01.example.com", host["fqdn"])
	assert.Equal(t, "web01.example.com", host["display_name"])
	assert.Contains(t, host, "bios_uuid")
	assert.Nil(t, host["bios_uuid"])
}

func TestListHostsFilters(t *testing.T) {
	s := newTestServer(t)
	insightsID := uuid.NewString()
	web := s.seed(t, hostdomain.HostRecord{FQDN: "web01.example.com", DisplayName: "Web Server", InsightsID: insightsID})
	db := s.seed(t, hostdomain.HostRecord{FQDN: "db01.example.com", DisplayName: "Database"})

	cases := []struct {
		name  string
		query string
		want  []uuid.UUID
	}{
		{name: "fqdn", query: "fqdn=db01.example.com", want: []uuid.UUID{db.ID}},
		{name: "display_name_case_insensitive", query: "display_name=web%20SERVER", want: []uuid.UUID{web.ID}},
		{name: "hostname_or_id_by_name", query: "hostname_or_id=db01", want: []uuid.UUID{db.ID}},
		{name: "hostname_or_id_by_id", query: "hostname_or_id=" + web.ID.String(), want: []uuid.UUID{web.ID}},
		{name: "insights_id", query: "insights_id=" + insightsID, want: []uuid.UUID{web.ID}},
		{name: "registered_with", query: "registered_with=insights", want: []uuid.UUID{web.ID}},
		{name: "branch_id_is_ignored", query: "branch_id=1234", want: []uuid.UUID{db.ID, web.ID}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := decodeList(t, s.do(t, http.MethodGet, "/hosts?"+tc.query, nil))
			got := make([]uuid.UUID, 0, len(body.Results))
			for _, h := range body.Results {
				got = append(got, uuid.MustParse(h["id"].(string)))
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListHostsRejectsBadParameters(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		query string
		field string
	}{
		{query: "order_by=fqdn", field: "order_by"},
		{query: "order_by=updated&order_how=asc", field: "order_how"},
		{query: "order_how=ASC", field: "order_how"},
		{query: "insights_id=not-a-uuid", field: "insights_id"},
		{query: "registered_with=satellite", field: "registered_with"},
		{query: "page=0", field: "page"},
		{query: "page=abc", field: "page"},
		{query: "per_page=0", field: "per_page"},
		{query: "per_page=101", field: "per_page"},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/hosts?"+tc.query, nil)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			payload := decodeError(t, w)
			assert.Equal(t, "validation_error", payload.Type)
			require.Len(t, payload.Errors, 1)
			assert.Equal(t, tc.field, payload.Errors[0].Field)
		})
	}
}

func TestListHostsOrdering(t *testing.T) {
	s := newTestServer(t)
	a := s.seed(t, hostdomain.HostRecord{FQDN: "a.example.com", DisplayName: "bravo"})
	b := s.seed(t, hostdomain.HostRecord{FQDN: "b.example.com", DisplayName: "alpha"})

	ids := func(body listBody) []string {
		out := make([]string, 0, len(body.Results))
		for _, h := range body.Results {
			out = append(out, h["id"].(string))
		}
		return out
	}

	assert.Equal(t, []string{b.ID.String(), a.ID.String()}, ids(decodeList(t, s.do(t, http.MethodGet, "/hosts", nil))))
	assert.Equal(t, []string{a.ID.String(), b.ID.String()}, ids(decodeList(t, s.do(t, http.MethodGet, "/hosts?order_by=updated&order_how=ASC", nil))))
	assert.Equal(t, []string{b.ID.String(), a.ID.String()}, ids(decodeList(t, s.do(t, http.MethodGet, "/hosts?order_by=display_name", nil))))
}

func TestListHostsPaging(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		s.seed(t, hostdomain.HostRecord{FQDN: fmt.Sprintf("h%d.example.com", i)})
	}

	body := decodeList(t, s.do(t, http.MethodGet, "/hosts?page=2&per_page=2", nil))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 2, body.PerPage)
	assert.EqualValues(t, 3, body.Total)
}

func TestGetHostsByIDs(t *testing.T) {
	s := newTestServer(t)
	a := s.seed(t, hostdomain.HostRecord{FQDN: "a.example.com"})
	b := s.seed(t, hostdomain.HostRecord{FQDN: "b.example.com"})

	hyphenless := strings.ReplaceAll(a.ID.String(), "-", "")
	missing := uuid.NewString()
	body := decodeList(t, s.do(t, http.MethodGet, "/hosts/"+hyphenless+","+b.ID.String()+","+missing, nil))
	assert.EqualValues(t, 2, body.Total)
	assert.Len(t, body.Results, 2)

	for _, list := range []string{"not-a-uuid", a.ID.String() + ",", a.ID.String() + ",,x"} {
		w := s.do(t, http.MethodGet, "/hosts/"+list, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, list)
		payload := decodeError(t, w)
		require.Len(t, payload.Errors, 1)
		assert.Equal(t, "host_id_list", payload.Errors[0].Field)
	}
}

func TestGetHostSystemProfiles(t *testing.T) {
	s := newTestServer(t)
	a := s.seed(t, hostdomain.HostRecord{
		FQDN:          "a.example.com",
		DisplayName:   "zeta",
		SystemProfile: map[string]interface{}{"arch": "x86_64"},
	})
	b := s.seed(t, hostdomain.HostRecord{FQDN: "b.example.com", DisplayName: "alpha"})
	ids := a.ID.String() + "," + b.ID.String() + "," + uuid.NewString()

	w := s.do(t, http.MethodGet, "/hosts/"+ids+"/system_profile?order_by=display_name", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Total   int64 `json:"total"`
		Count   int   `json:"count"`
		Results []struct {
			ID            string                 `json:"id"`
			SystemProfile map[string]interface{} `json:"system_profile"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body.Total)
	require.Len(t, body.Results, 2)
	assert.Equal(t, b.ID.String(), body.Results[0].ID)
	assert.Empty(t, body.Results[0].SystemProfile)
	assert.Equal(t, a.ID.String(), body.Results[1].ID)
	assert.Equal(t, "x86_64", body.Results[1].SystemProfile["arch"])

	cases := map[string]string{
		"?order_by=fqdn":                  "order_by",
		"?order_how=ASC":                  "order_how",
		"?per_page=0":                     "per_page",
		"?order_how=asc&order_by=updated": "order_how",
	}
	for query, field := range cases {
		w := s.do(t, http.MethodGet, "/hosts/"+ids+"/system_profile"+query, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
		payload := decodeError(t, w)
		require.Len(t, payload.Errors, 1, query)
		assert.Equal(t, field, payload.Errors[0].Field, query)
	}

	w = s.do(t, http.MethodGet, "/hosts/not-a-uuid/system_profile", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type addHostsBody struct {
	Total  int `json:"total"`
	Errors int `json:"errors"`
	Data   []struct {
		Status int                    `json:"status"`
		Host   map[string]interface{} `json:"host"`
		Detail string                 `json:"detail"`
	} `json:"data"`
}

func TestAddHostsReportsPerHostStatus(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, hostdomain.HostRecord{FQDN: "existing.example.com"})

	w := s.do(t, http.MethodPost, "/hosts", []map[string]interface{}{
		{"fqdn": "new.example.com"},
		{"fqdn": "existing.example.com", "display_name": "renamed"},
		{"display_name": "no facts"},
		{"account": "999999", "fqdn": "other.example.com"},
		{"fqdn": 12},
	})
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())

	var body addHostsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, 3, body.Errors)
	require.Len(t, body.Data, 5)

	assert.Equal(t, http.StatusCreated, body.Data[0].Status)
	assert.Equal(t, testAccount, body.Data[0].Host["account"])
	assert.Equal(t, http.StatusOK, body.Data[1].Status)
	assert.Equal(t, "renamed", body.Data[1].Host["display_name"])
	assert.Equal(t, http.StatusBadRequest, body.Data[2].Status)
	assert.Equal(t, hostdomain.ErrNoCanonicalFacts.Error(), body.Data[2].Detail)
	assert.Equal(t, http.StatusBadRequest, body.Data[3].Status)
	assert.Equal(t, http.StatusBadRequest, body.Data[4].Status)

	list := decodeList(t, s.do(t, http.MethodGet, "/hosts", nil))
	assert.EqualValues(t, 2, list.Total)
}

func TestAddHostsRejectsMalformedBatch(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []interface{}{map[string]string{"fqdn": "x"}, []interface{}{}} {
		w := s.do(t, http.MethodPost, "/hosts", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

type failingService struct {
	hostdomain.Service
	err error
}

func (f failingService) AddHost(ctx context.Context, rec hostdomain.HostRecord) (hostdomain.AddHostResult, error) {
	return hostdomain.AddHostResult{}, f.err
}

func TestAddHostsTransientFailureAbortsBatch(t *testing.T) {
	cases := map[error]int{
		hostdomain.ErrConflict:        http.StatusConflict,
		lock.ErrLockTimeout:           http.StatusServiceUnavailable,
		errors.New("connection lost"): http.StatusInternalServerError,
	}
	for err, status := range cases {
		s := newTestServerWith(t, failingService{err: err}, nil)
		w := s.do(t, http.MethodPost, "/hosts", []map[string]interface{}{{"fqdn": "a.example.com"}})
		assert.Equal(t, status, w.Code, err.Error())
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(hostdomain.ErrInvalidOrderBy)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_order_by", code)

	errType, code = classifyErrorForLog(&hostdomain.FieldError{Field: "insights_id", Reason: "uuid"})
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_insights_id", code)

	errType, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal_error", errType)
	assert.Empty(t, code)
}
