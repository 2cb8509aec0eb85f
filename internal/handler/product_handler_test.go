package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service/catalog"
	"storefront/pkg/utils"
)

func productRouter(svc *MockCatalogService) *gin.Engine {
	h := NewProductHandler(svc)
	r := gin.New()
	r.GET("/products", h.ListProducts)
	r.GET("/products/best-sellers", h.BestSellers)
	r.GET("/products/:id", h.GetProduct)
	r.POST("/products", h.CreateProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
	return r
}

func TestProductHandler_ListProducts(t *testing.T) {
	t.Run("no filter", func(t *testing.T) {
		svc := &MockCatalogService{}
		svc.On("ListProducts", mock.Anything, repository.ProductFilter{}, 1, 20).
			Return([]*model.Product{{ID: 1, Name: "Lamp", Price: decimal.RequireFromString("14.99")}}, int64(1), nil)

		w := doJSON(t, productRouter(svc), http.MethodGet, "/products", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		data := string(decodeEnvelope(t, w).Data)
		assert.Contains(t, data, `"name":"Lamp"`)
		assert.Contains(t, data, `"size":20`)
	})

	t.Run("search and sort reach the catalog", func(t *testing.T) {
		svc := &MockCatalogService{}
		svc.On("ListProducts", mock.Anything, mock.MatchedBy(func(f repository.ProductFilter) bool {
			return f.Query == "desk lamp" && f.Category == "lighting" &&
				f.MinPrice != nil && f.MinPrice.Equal(decimal.RequireFromString("9.5")) &&
				f.MaxPrice != nil && f.MaxPrice.Equal(decimal.NewFromInt(100)) &&
				f.Sort == repository.SortPriceAsc
		}), 2, 5).Return([]*model.Product{}, int64(0), nil)

		w := doJSON(t, productRouter(svc), http.MethodGet,
			"/products?q=desk+lamp&category=lighting&min_price=9.5&max_price=100&sort=price_asc&page=2&pageSize=5", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("bad parameters", func(t *testing.T) {
		tests := []struct {
			query   string
			message string
		}{
			{query: "?sort=cheapest", message: "sort must be one of: price_asc price_desc newest"},
			{query: "?min_price=ten", message: "min_price"},
		}
		for _, tt := range tests {
			svc := &MockCatalogService{}

			w := doJSON(t, productRouter(svc), http.MethodGet, "/products"+tt.query, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code, tt.query)
			assert.Contains(t, decodeEnvelope(t, w).Message, tt.message)
			svc.AssertNotCalled(t, "ListProducts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		}
	})
}

func TestProductHandler_GetProduct(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &MockCatalogService{}
		svc.On("GetProduct", mock.Anything, uint64(9)).Return(&model.Product{ID: 9, Name: "Lamp"}, nil)

		w := doJSON(t, productRouter(svc), http.MethodGet, "/products/9", nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		svc := &MockCatalogService{}
		svc.On("GetProduct", mock.Anything, uint64(9)).Return(nil, utils.NotFound("product 9 not found"))

		w := doJSON(t, productRouter(svc), http.MethodGet, "/products/9", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, string(utils.KindNotFound), decodeEnvelope(t, w).Kind)
	})

	t.Run("negative id", func(t *testing.T) {
		svc := &MockCatalogService{}

		w := doJSON(t, productRouter(svc), http.MethodGet, "/products/-1", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})
}

func TestProductHandler_BestSellers(t *testing.T) {
	tests := []struct {
		name  string
		query string
		limit int
	}{
		{name: "explicit limit", query: "?limit=3", limit: 3},
		{name: "default left to the service", query: "", limit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockCatalogService{}
			svc.On("BestSellers", mock.Anything, tt.limit).
				Return([]*model.BestSeller{{Product: model.Product{ID: 1}, LineCount: 7}}, nil)

			w := doJSON(t, productRouter(svc), http.MethodGet, "/products/best-sellers"+tt.query, nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, string(decodeEnvelope(t, w).Data), `"line_count":7`)
			svc.AssertExpectations(t)
		})
	}
}

func TestProductHandler_CreateProduct(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := &MockCatalogService{}
		svc.On("CreateProduct", mock.Anything, mock.MatchedBy(func(r *catalog.CreateProductRequest) bool {
			return r.Name == "Lamp" && r.Price.Equal(decimal.RequireFromString("19.99")) && r.Stock == 5
		})).Return(&model.Product{ID: 1, Name: "Lamp"}, nil)

		w := doJSON(t, productRouter(svc), http.MethodPost, "/products", `{"name":"Lamp","price":"19.99","stock":5}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("rejected by the catalog", func(t *testing.T) {
		svc := &MockCatalogService{}
		svc.On("CreateProduct", mock.Anything, mock.Anything).Return(nil, utils.Validation("price must be positive"))

		w := doJSON(t, productRouter(svc), http.MethodPost, "/products", `{"name":"Lamp","price":"0","stock":5}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "price must be positive", decodeEnvelope(t, w).Message)
	})
}

func TestProductHandler_CreateProductBindingRules(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "blank name", body: `{"name":"   ","price":"1.00","stock":1}`, message: "name must not be blank"},
		{name: "negative price", body: `{"name":"Lamp","price":"-1.00","stock":1}`, message: "price must be non-negative"},
		{name: "negative stock", body: `{"name":"Lamp","price":"1.00","stock":-2}`, message: "stock must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockCatalogService{}

			w := doJSON(t, productRouter(svc), http.MethodPost, "/products", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decodeEnvelope(t, w).Message)
			svc.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
		})
	}
}

func TestProductHandler_UpdateProduct(t *testing.T) {
	svc := &MockCatalogService{}
	svc.On("UpdateProduct", mock.Anything, uint64(9), mock.MatchedBy(func(r *catalog.UpdateProductRequest) bool {
		return r.Price != nil && r.Price.Equal(decimal.RequireFromString("9.99")) && r.Name == nil
	})).Return(&model.Product{ID: 9, Price: decimal.RequireFromString("9.99")}, nil)

	w := doJSON(t, productRouter(svc), http.MethodPut, "/products/9", `{"price":"9.99"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	svc := &MockCatalogService{}
	svc.On("DeleteProduct", mock.Anything, uint64(9)).Return(nil)

	w := doJSON(t, productRouter(svc), http.MethodDelete, "/products/9", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":true}`, string(decodeEnvelope(t, w).Data))
}
