package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/pdvhub/internal/adapters/cache"
	"github.com/phenrril/pdvhub/internal/adapters/repo/postgres"
	"github.com/phenrril/pdvhub/internal/domain"
	"github.com/phenrril/pdvhub/internal/usecase"
)

type testEnv struct {
	handler  http.Handler
	db       *gorm.DB
	tenantID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Tenant{}, &domain.Product{}, &domain.Customer{},
		&domain.Order{}, &domain.OrderItem{},
		&domain.Debt{}, &domain.DebtItem{}, &domain.DebtPayment{},
	))

	tn := domain.Tenant{ID: uuid.New(), Name: "shop", Slug: "shop", Active: true}
	require.NoError(t, db.Create(&tn).Error)

	orders := postgres.NewOrderRepo(db)
	customers := postgres.NewCustomerRepo(db)
	debts := postgres.NewDebtRepo(db)
	products := postgres.NewProductRepo(db)
	tenants := postgres.NewTenantRepo(db)

	syncUC := usecase.NewSyncUC(orders, customers, debts, usecase.SyncOptions{MaxLimit: 100, DefaultLimit: 50})
	h := New(
		syncUC,
		&usecase.ProductUC{Products: products},
		usecase.NewMetricsUC(orders, cache.NewMemory(16), 0),
		customers, debts, tenants,
	)
	return &testEnv{handler: h, db: db, tenantID: tn.ID}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, tenantHeader string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tenantHeader != "" {
		req.Header.Set("X-Tenant-Id", tenantHeader)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedProduct(t *testing.T, code string, price float64) uuid.UUID {
	t.Helper()
	p := domain.Product{ID: uuid.New(), TenantID: e.tenantID, Code: code, Name: "product " + code, SalePrice: price, Active: true}
	require.NoError(t, e.db.Create(&p).Error)
	return p.ID
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/sync/ping", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decodeBody(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["server_time"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestPushPullRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	pid := env.seedProduct(t, "P1", 10)
	orderID := uuid.NewString()

	w := env.do(t, http.MethodPost, "/api/sync/push", map[string]any{
		"events": []map[string]any{{
			"outbox_id": 1,
			"entity":    "order",
			"operation": "upsert",
			"payload": map[string]any{
				"id":             orderID,
				"payment_method": "cash",
				"items": []map[string]any{
					{"product_id": pid.String(), "quantity": 2, "unit_price": 10, "subtotal": 20},
				},
			},
		}},
	}, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	var pushResp struct {
		Results []domain.PushResult `json:"results"`
	}
	decodeBody(t, w, &pushResp)
	require.Len(t, pushResp.Results, 1)
	assert.True(t, pushResp.Results[0].OK)

	w = env.do(t, http.MethodGet, "/api/sync/pull", nil, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	var feed domain.PullFeed
	decodeBody(t, w, &feed)
	require.Len(t, feed.Orders, 1)
	assert.Equal(t, orderID, feed.Orders[0].ID.String())
	assert.NotEmpty(t, feed.NextSince)
	assert.Equal(t, 50, feed.Limit)
}

func TestPullBadCursorRejected(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/sync/pull?since=!!!bad!!!", nil, env.tenantID.String())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	decodeBody(t, w, &body)
	assert.Equal(t, "invalid_payload", body["error"])
}

func TestPullLimitClamped(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/sync/pull?limit=9999", nil, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	var feed domain.PullFeed
	decodeBody(t, w, &feed)
	assert.Equal(t, 100, feed.Limit)
}

func TestTenantHeaderFallback(t *testing.T) {
	env := newTestEnv(t)

	// no header: the first active tenant serves single-store installs
	w := env.do(t, http.MethodGet, "/api/sync/pull", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/sync/pull", nil, "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTenantHeaderIsolates(t *testing.T) {
	env := newTestEnv(t)
	pid := env.seedProduct(t, "P1", 10)

	w := env.do(t, http.MethodPost, "/api/sync/push", map[string]any{
		"events": []map[string]any{{
			"outbox_id": 1,
			"entity":    "order",
			"payload": map[string]any{
				"id":             uuid.NewString(),
				"payment_method": "cash",
				"items": []map[string]any{
					{"product_id": pid.String(), "quantity": 1, "unit_price": 10, "subtotal": 10},
				},
			},
		}},
	}, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	other := domain.Tenant{ID: uuid.New(), Name: "other", Slug: "other", Active: true}
	require.NoError(t, env.db.Create(&other).Error)

	w = env.do(t, http.MethodGet, "/api/sync/pull", nil, other.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var feed domain.PullFeed
	decodeBody(t, w, &feed)
	assert.Empty(t, feed.Orders)
}

func TestProductUpsertAndList(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/products/upsert", map[string]any{
		"code": "RICE-1", "name": "Rice 1kg", "sale_price": 3.5,
	}, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	// validation failures come back as invalid_payload
	w = env.do(t, http.MethodPost, "/api/products/upsert", map[string]any{
		"name": "No code", "sale_price": 1,
	}, env.tenantID.String())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/products?q=rice", nil, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []domain.Product `json:"items"`
		Total int64            `json:"total"`
	}
	decodeBody(t, w, &body)
	assert.Equal(t, int64(1), body.Total)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "RICE-1", body.Items[0].Code)
}

func TestProductLookup(t *testing.T) {
	env := newTestEnv(t)
	pid := env.seedProduct(t, "RICE-1", 3.5)

	w := env.do(t, http.MethodGet, "/api/products/"+pid.String(), nil, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var p domain.Product
	decodeBody(t, w, &p)
	assert.Equal(t, "RICE-1", p.Code)

	// code lookup for terminals that only know the natural code
	w = env.do(t, http.MethodGet, "/api/products/RICE-1", nil, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/products/"+uuid.NewString(), nil, env.tenantID.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomersCreateAndList(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/customers", map[string]any{
		"name": "Ana", "phone": "555-0101",
	}, env.tenantID.String())
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/customers", nil, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []domain.Customer `json:"items"`
	}
	decodeBody(t, w, &body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Ana", body.Items[0].Name)
}

func TestDebtPaymentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pid := env.seedProduct(t, "P1", 50)
	debtID := uuid.NewString()

	w := env.do(t, http.MethodPost, "/api/sync/push", map[string]any{
		"events": []map[string]any{{
			"outbox_id": 1,
			"entity":    "debt",
			"payload": map[string]any{
				"id": debtID,
				"items": []map[string]any{
					{"product_id": pid.String(), "quantity": 1, "unit_price": 50, "subtotal": 50},
				},
			},
		}},
	}, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	paymentID := uuid.NewString()
	w = env.do(t, http.MethodPost, "/api/debts/"+debtID+"/payments", map[string]any{
		"id": paymentID, "amount": 50, "method": "cash",
	}, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	var d domain.Debt
	decodeBody(t, w, &d)
	assert.Equal(t, domain.DebtStatusSettled, d.Status)
	assert.Equal(t, 50.0, d.PaidAmount)

	// replaying the same payment id changes nothing
	w = env.do(t, http.MethodPost, "/api/debts/"+debtID+"/payments", map[string]any{
		"id": paymentID, "amount": 50, "method": "cash",
	}, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &d)
	assert.Equal(t, 50.0, d.PaidAmount)

	// an id-less payment is rejected
	w = env.do(t, http.MethodPost, "/api/debts/"+debtID+"/payments", map[string]any{
		"amount": 10, "method": "cash",
	}, env.tenantID.String())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// an unknown debt is a 404
	w = env.do(t, http.MethodPost, "/api/debts/"+uuid.NewString()+"/payments", map[string]any{
		"id": uuid.NewString(), "amount": 10, "method": "cash",
	}, env.tenantID.String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebtsOpenFiltersSettled(t *testing.T) {
	env := newTestEnv(t)
	pid := env.seedProduct(t, "P1", 50)

	openID := uuid.NewString()
	settledID := uuid.NewString()
	w := env.do(t, http.MethodPost, "/api/sync/push", map[string]any{
		"events": []map[string]any{
			{
				"outbox_id": 1,
				"entity":    "debt",
				"payload": map[string]any{
					"id": openID,
					"items": []map[string]any{
						{"product_id": pid.String(), "quantity": 1, "unit_price": 50, "subtotal": 50},
					},
				},
			},
			{
				"outbox_id": 2,
				"entity":    "debt",
				"payload": map[string]any{
					"id": settledID,
					"items": []map[string]any{
						{"product_id": pid.String(), "quantity": 1, "unit_price": 50, "subtotal": 50},
					},
					"payments": []map[string]any{
						{"id": uuid.NewString(), "amount": 50, "method": "cash"},
					},
				},
			},
		},
	}, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/debts/open", nil, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []domain.DebtView `json:"items"`
	}
	decodeBody(t, w, &body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, openID, body.Items[0].ID.String())
}

func TestSalesDayEndpoint(t *testing.T) {
	env := newTestEnv(t)
	pid := env.seedProduct(t, "P1", 10)

	w := env.do(t, http.MethodPost, "/api/sync/push", map[string]any{
		"events": []map[string]any{{
			"outbox_id": 1,
			"entity":    "order",
			"payload": map[string]any{
				"id":             uuid.NewString(),
				"payment_method": "cash",
				"items": []map[string]any{
					{"product_id": pid.String(), "quantity": 3, "unit_price": 10, "subtotal": 30},
				},
			},
		}},
	}, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/metrics/sales-day", nil, env.tenantID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	decodeBody(t, w, &body)
	assert.Equal(t, 30.0, body["total"])

	w = env.do(t, http.MethodGet, "/api/metrics/sales-day?date=20-bad", nil, env.tenantID.String())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/sync/push", nil, env.tenantID.String())
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	w = env.do(t, http.MethodPost, "/api/sync/pull", nil, env.tenantID.String())
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
