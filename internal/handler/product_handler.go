package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/repository"
	"storefront/internal/service/catalog"
	"storefront/pkg/utils"
)

// productQuery search and sort parameters of GET /products
type productQuery struct {
	Q        string `form:"q" binding:"max=100"`
	Category string `form:"category" binding:"max=50"`
	MinPrice string `form:"min_price" binding:"omitempty,numeric"`
	MaxPrice string `form:"max_price" binding:"omitempty,numeric"`
	Sort     string `form:"sort" binding:"omitempty,oneof=price_asc price_desc newest"`
}

func (q productQuery) filter() (repository.ProductFilter, error) {
	filter := repository.ProductFilter{
		Query:    q.Q,
		Category: q.Category,
		Sort:     repository.ProductSort(q.Sort),
	}
	var err error
	if filter.MinPrice, err = optionalPrice("min_price", q.MinPrice); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = optionalPrice("max_price", q.MaxPrice); err != nil {
		return filter, err
	}
	return filter, nil
}

func optionalPrice(name, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, utils.NewError(utils.CodeInvalidParam, name+" must be a number")
	}
	return &d, nil
}

// ProductHandler public catalog reads and admin edits
type ProductHandler struct {
	catalogService catalog.CatalogService
}

func NewProductHandler(catalogService catalog.CatalogService) *ProductHandler {
	return &ProductHandler{catalogService: catalogService}
}

// ListProducts pages the catalog; q, category, min_price, max_price and sort
// narrow and order it
func (h *ProductHandler) ListProducts(c *gin.Context) {
	page, pageSize := pageParams(c)

	var query productQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.HandleError(c, utils.FormatValidationError(err))
		return
	}
	filter, err := query.filter()
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	products, total, err := h.catalogService.ListProducts(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessPageResponse(c, products, total, page, pageSize)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, product)
}

// BestSellers ranks products by order lines; ?limit defaults to 10
func (h *ProductHandler) BestSellers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	list, err := h.catalogService.BestSellers(c.Request.Context(), limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, list)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req catalog.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.catalogService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.CreatedResponse(c, product)
}

// UpdateProduct applies a partial edit; a lower price notifies favoriters
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req catalog.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.catalogService.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteProduct(c.Request.Context(), id); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"deleted": true})
}
