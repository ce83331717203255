package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/ezpc-api/internal/middleware"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/repository"
	"github.com/flicky/ezpc-api/internal/service"
)

const testSecret = "handler-test-secret"

func init() { gin.SetMode(gin.TestMode) }

func bearer(t *testing.T, userID uuid.UUID, role model.Role) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(r http.Handler, method, path, auth string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrProductNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: bad", service.ErrValidation), http.StatusBadRequest},
		{service.ErrSessionExpired, http.StatusUnauthorized},
		{service.ErrAdminOnly, http.StatusForbidden},
		{service.ErrNotDelivered, http.StatusForbidden},
		{service.ErrAlreadyReviewed, http.StatusConflict},
		{service.ErrStatusChanged, http.StatusConflict},
		{fmt.Errorf("%w: x", service.ErrInvalidStateTransition), http.StatusBadRequest},
		{fmt.Errorf("%w: redis", service.ErrUpstream), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("create order: %w", repository.ErrNotFound), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	h := NewHealthHandler().
		Register("postgres", func(context.Context) error { return nil }).
		Register("redis", func(context.Context) error { return errors.New("down") })

	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/healthz", "", nil).Code)

	w := doJSON(r, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "connected", body["postgres"])
	assert.Equal(t, "unavailable", body["redis"])
}

type memSettingsRepo struct {
	mu sync.Mutex
	s  *model.Settings
}

func (r *memSettingsRepo) Get(context.Context) (*model.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s == nil {
		return nil, nil
	}
	cp := *r.s
	return &cp, nil
}

func (r *memSettingsRepo) Save(_ context.Context, s *model.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.s = &cp
	return nil
}

func TestSettingsHandler(t *testing.T) {
	h := NewSettingsHandler(service.NewSettingsService(&memSettingsRepo{}))
	r := gin.New()
	r.GET("/settings", h.Get)
	r.PUT("/admin/settings", middleware.AuthMiddleware(testSecret), middleware.AdminOnly(), h.Put)

	w := doJSON(r, http.MethodGet, "/settings", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store_name":"EZPC_"`)

	body := map[string]any{"store_name": "EZPC", "contact_email": "hello@ezpc.ph", "shipping_fee": "99", "free_shipping_threshold": "3000"}
	assert.Equal(t, http.StatusForbidden, doJSON(r, http.MethodPut, "/admin/settings", bearer(t, uuid.New(), model.RoleUser), body).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodPut, "/admin/settings", "", body).Code)

	w = doJSON(r, http.MethodPut, "/admin/settings", bearer(t, uuid.New(), model.RoleAdmin), body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, doJSON(r, http.MethodGet, "/settings", "", nil).Body.String(), `"store_name":"EZPC"`)

	body["shipping_fee"] = "-1"
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPut, "/admin/settings", bearer(t, uuid.New(), model.RoleAdmin), body).Code)

	body["shipping_fee"] = "99"
	body["contact_email"] = "not-an-email"
	w = doJSON(r, http.MethodPut, "/admin/settings", bearer(t, uuid.New(), model.RoleAdmin), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ContactEmail")

	body["contact_email"] = ""
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPut, "/admin/settings", bearer(t, uuid.New(), model.RoleAdmin), body).Code)
}

// memCartRepo only tracks increments; product lookups are never needed for a
// non-positive delta.
type memCartRepo struct {
	repository.CartRepository
	mu    sync.Mutex
	calls []int
}

func (r *memCartRepo) Increment(_ context.Context, _, _ uuid.UUID, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, delta)
	return 0, nil
}

func TestCartHandler_AddItemZeroDelta(t *testing.T) {
	carts := &memCartRepo{}
	h := NewCartHandler(service.NewCartService(carts, nil))
	r := gin.New()
	r.POST("/cart/items", middleware.AuthMiddleware(testSecret), h.AddItem)
	auth := bearer(t, uuid.New(), model.RoleUser)

	w := doJSON(r, http.MethodPost, "/cart/items", auth, map[string]any{"product_id": uuid.New(), "quantity": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"quantity":0`)

	w = doJSON(r, http.MethodPost, "/cart/items", auth, map[string]any{"product_id": uuid.New()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []int{0, 0}, carts.calls)

	w = doJSON(r, http.MethodPost, "/cart/items", auth, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*model.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (r *memOrderRepo) Create(_ context.Context, o *model.Order, _ model.CartClearScope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = uuid.New()
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) List(context.Context, model.OrderFilter) ([]model.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *memOrderRepo) HasDelivered(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func newOrderRouter(repo *memOrderRepo) *gin.Engine {
	svc := service.NewOrderService(repo, nil, nil, service.CartClearAll, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewOrderHandler(svc)

	r := gin.New()
	orders := r.Group("/orders", middleware.AuthMiddleware(testSecret))
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/cancel", h.CancelOrder)

	admin := r.Group("/admin", middleware.AuthMiddleware(testSecret), middleware.AdminOnly())
	admin.GET("/orders", h.AdminListOrders)
	admin.PATCH("/orders/:id/status", h.UpdateStatus)
	return r
}

func codOrderBody() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"product_id": uuid.NewString(), "name": "RTX 4060", "price": "18995", "quantity": 1},
		},
		"shipping_address": map[string]any{"recipient": "Juan", "line1": "1 Ayala Ave", "city": "Makati"},
		"payment_method":   "cod",
		"total_amount":     "19145",
	}
}

func TestOrderHandler_CreateAndFetch(t *testing.T) {
	repo := newMemOrderRepo()
	r := newOrderRouter(repo)
	userID := uuid.New()
	auth := bearer(t, userID, model.RoleUser)

	w := doJSON(r, http.MethodPost, "/orders", auth, codOrderBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID          uuid.UUID         `json:"id"`
		Status      model.OrderStatus `json:"status"`
		TotalAmount decimal.Decimal   `json:"total_amount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, model.OrderStatusPending, created.Status)
	assert.True(t, created.TotalAmount.Equal(decimal.NewFromInt(19145)))

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/orders/"+created.ID.String(), auth, nil).Code)
	assert.Equal(t, http.StatusForbidden, doJSON(r, http.MethodGet, "/orders/"+created.ID.String(), bearer(t, uuid.New(), model.RoleUser), nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/orders/"+uuid.NewString(), auth, nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/orders/not-a-uuid", auth, nil).Code)
}

func TestOrderHandler_Validation(t *testing.T) {
	r := newOrderRouter(newMemOrderRepo())
	auth := bearer(t, uuid.New(), model.RoleUser)

	body := codOrderBody()
	body["payment_method"] = "paypal"
	w := doJSON(r, http.MethodPost, "/orders", auth, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = codOrderBody()
	delete(body, "shipping_address")
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/orders", auth, body).Code)

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodPost, "/orders", "", codOrderBody()).Code)
}

func TestOrderHandler_StatusLifecycle(t *testing.T) {
	repo := newMemOrderRepo()
	r := newOrderRouter(repo)
	userAuth := bearer(t, uuid.New(), model.RoleUser)
	adminAuth := bearer(t, uuid.New(), model.RoleAdmin)

	w := doJSON(r, http.MethodPost, "/orders", userAuth, codOrderBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/admin/orders/" + created.ID.String() + "/status"

	assert.Equal(t, http.StatusForbidden, doJSON(r, http.MethodPatch, path, userAuth, map[string]string{"status": "processing"}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPatch, path, adminAuth, map[string]string{"status": "lost"}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPatch, path, adminAuth, map[string]string{"status": "delivered"}).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPatch, path, adminAuth, map[string]string{"status": "processing"}).Code)

	// owners may only cancel pending orders
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/orders/"+created.ID.String()+"/cancel", userAuth, nil).Code)

	w = doJSON(r, http.MethodGet, "/admin/orders?status=processing", adminAuth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}
