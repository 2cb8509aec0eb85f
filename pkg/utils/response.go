package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/pkg/log"
)

// Response standard response structure
type Response struct {
	Code      int         `json:"code"`
	Kind      string      `json:"kind,omitempty"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      int(CodeSuccess),
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// CreatedResponse returns 201 with the created resource
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:      int(CodeSuccess),
		Message:   "created",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Error writes an error envelope for the code and aborts the chain
func Error(c *gin.Context, code ResponseCode, message string) {
	c.AbortWithStatusJSON(code.HTTPStatus(), Response{
		Code:      int(code),
		Kind:      string(code.Kind()),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// HandleError maps err to status and envelope. Non-AppErrors are logged and
// reported as a generic internal failure.
func HandleError(c *gin.Context, err error) {
	appErr, ok := IsAppError(err)
	if !ok {
		log.WithFields(map[string]interface{}{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"error":  err.Error(),
		}).Error("Unhandled error")
		Error(c, CodeInternalError, ErrInternalError.Message)
		return
	}

	if appErr.Code == CodeInternalError && appErr.Err != nil {
		log.WithFields(map[string]interface{}{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"error":  appErr.Err.Error(),
		}).Error(appErr.Message)
	}

	c.AbortWithStatusJSON(appErr.Code.HTTPStatus(), Response{
		Code:      int(appErr.Code),
		Kind:      string(appErr.Kind()),
		Message:   appErr.Message,
		Data:      appErr.Details,
		Timestamp: time.Now().Unix(),
	})
}

// PageResponse page response structure
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// SuccessPageResponse returns success page response
func SuccessPageResponse(c *gin.Context, list interface{}, total int64, page, size int) {
	SuccessResponse(c, PageResponse{
		List:  list,
		Total: total,
		Page:  page,
		Size:  size,
	})
}
