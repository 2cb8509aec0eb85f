package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/internal/repository"
	"storefront/internal/service/pricedrop"
	"storefront/internal/utils"
	pkgutils "storefront/pkg/utils"
)

type routerFixture struct {
	engine       *gin.Engine
	auth         *MockAuthService
	favorite     *MockFavoriteService
	notification *MockNotificationService
	detector     *MockDetector
	orders       *MockOrderService
	catalog      *MockCatalogService
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func newRouterFixture(t *testing.T, customize func(*Router)) *routerFixture {
	t.Helper()
	f := &routerFixture{
		auth:         &MockAuthService{},
		favorite:     &MockFavoriteService{},
		notification: &MockNotificationService{},
		detector:     &MockDetector{},
		orders:       &MockOrderService{},
		catalog:      &MockCatalogService{},
	}
	f.auth.On("ValidateToken", mock.Anything, "user-token").
		Return(&utils.JWTClaims{UserID: 5, Role: string(model.RoleUser)}, nil)
	f.auth.On("ValidateToken", mock.Anything, "admin-token").
		Return(&utils.JWTClaims{UserID: 1, Role: string(model.RoleAdmin)}, nil)
	f.auth.On("ValidateToken", mock.Anything, mock.Anything).
		Return(nil, pkgutils.NewError(pkgutils.CodeUnauthorized, "invalid or expired token"))

	cfg := Router{
		Auth:         NewAuthHandler(f.auth),
		Favorite:     NewFavoriteHandler(f.favorite),
		Notification: NewNotificationHandler(f.notification, f.detector),
		Order:        NewOrderHandler(f.orders),
		Product:      NewProductHandler(f.catalog),
		Health:       NewHealthHandler("test", nil),
		Validator:    f.auth,
	}
	if customize != nil {
		customize(&cfg)
	}
	f.engine = NewRouter(cfg)
	return f
}

func (f *routerFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestRouter_Guards(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		setup      func(*routerFixture)
		wantStatus int
	}{
		{
			name: "catalog is public", method: http.MethodGet, path: "/api/v1/products",
			setup: func(f *routerFixture) {
				f.catalog.On("ListProducts", mock.Anything, repository.ProductFilter{}, 1, 20).Return([]*model.Product{}, int64(0), nil)
			},
			wantStatus: http.StatusOK,
		},
		{name: "favorites need a token", method: http.MethodGet, path: "/api/v1/favorites", wantStatus: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/api/v1/favorites", token: "forged", wantStatus: http.StatusUnauthorized},
		{
			name: "favorites with a token", method: http.MethodGet, path: "/api/v1/favorites", token: "user-token",
			setup: func(f *routerFixture) {
				f.favorite.On("ListFavorites", mock.Anything, uint64(5)).Return([]*model.FavoriteView{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{name: "product edits are admin only", method: http.MethodDelete, path: "/api/v1/products/9", token: "user-token", wantStatus: http.StatusForbidden},
		{
			name: "admin deletes a product", method: http.MethodDelete, path: "/api/v1/products/9", token: "admin-token",
			setup: func(f *routerFixture) {
				f.catalog.On("DeleteProduct", mock.Anything, uint64(9)).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{name: "purge is admin only", method: http.MethodPost, path: "/api/v1/notifications/purge", token: "user-token", wantStatus: http.StatusForbidden},
		{name: "order admin view is admin only", method: http.MethodGet, path: "/api/v1/orders", token: "user-token", wantStatus: http.StatusForbidden},
		{
			name: "own orders for any user", method: http.MethodGet, path: "/api/v1/orders/mine", token: "user-token",
			setup: func(f *routerFixture) {
				f.orders.On("ListMyOrders", mock.Anything, uint64(5)).Return([]*model.Order{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "anonymous favorite check", method: http.MethodGet, path: "/api/v1/favorites/check/9",
			wantStatus: http.StatusOK,
		},
		{
			name: "favorite check ignores a bad token", method: http.MethodGet, path: "/api/v1/favorites/check/9", token: "forged",
			wantStatus: http.StatusOK,
		},
		{name: "health outside the api group", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "ping inside the api group", method: http.MethodGet, path: "/api/v1/ping", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, nil)
			if tt.setup != nil {
				tt.setup(f)
			}

			w := f.do(tt.method, tt.path, tt.token)

			assert.Equal(t, tt.wantStatus, w.Code)
			f.catalog.AssertExpectations(t)
			f.favorite.AssertExpectations(t)
			f.orders.AssertExpectations(t)
		})
	}
}

func TestRouter_AnonymousFavoriteCheckSkipsStore(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/favorites/check/9", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"favorited":false}`, string(decodeEnvelope(t, w).Data))
	f.favorite.AssertNotCalled(t, "IsFavorited", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouter_PriceCheckLimiter(t *testing.T) {
	f := newRouterFixture(t, func(r *Router) {
		r.PriceCheckLimiter = denyAll{}
	})

	w := f.do(http.MethodPost, "/api/v1/notifications/check", "user-token")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	f.detector.AssertNotCalled(t, "CheckUser", mock.Anything, mock.Anything)

	// the limiter only guards the check
	f.notification.On("ListUnread", mock.Anything, uint64(5)).Return([]*model.Notification{}, nil)
	w = f.do(http.MethodGet, "/api/v1/notifications", "user-token")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_PriceCheckWithoutLimiter(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.detector.On("CheckUser", mock.Anything, uint64(5)).Return(pricedrop.BatchResult{Evaluated: 1}, nil)

	w := f.do(http.MethodPost, "/api/v1/notifications/check", "user-token")

	assert.Equal(t, http.StatusOK, w.Code)
	f.detector.AssertExpectations(t)
}

func TestRouter_GlobalLimiterCoversAPIOnly(t *testing.T) {
	f := newRouterFixture(t, func(r *Router) {
		r.GlobalLimiter = denyAll{}
	})

	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/api/v1/ping", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/ping", "").Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	metrics := monitor.NewMetricsCollector("router_test")
	f := newRouterFixture(t, func(r *Router) {
		r.Metrics = metrics
		r.MetricsPath = "/internal/metrics"
	})

	f.do(http.MethodGet, "/api/v1/ping", "")
	w := f.do(http.MethodGet, "/internal/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `router_test_http_requests_total{method="GET",path="/api/v1/ping",status="200"} 1`)
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	f := newRouterFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
