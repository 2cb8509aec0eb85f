package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/pkg/utils"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

// currentUser writes a 401 and returns false for anonymous requests
func currentUser(c *gin.Context) (uint64, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, utils.ErrUnauthorized.Message)
	}
	return userID, ok
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := utils.ValidateID(c.Param(name))
	if err != nil {
		utils.HandleError(c, err)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		utils.HandleError(c, utils.FormatValidationError(err))
		return false
	}
	return true
}

// pageParams reads page and pageSize; garbage falls back to the defaults
// and out-of-range values are left for the service to reject
func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	if err != nil {
		page = defaultPage
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(defaultPageSize)))
	if err != nil {
		pageSize = defaultPageSize
	}
	return page, pageSize
}
