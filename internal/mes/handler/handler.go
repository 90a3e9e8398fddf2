package handler

import (
	"errors"
	"strconv"

	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Auth      *AuthHandler
	Operation *OperationHandler
	BuildBOM  *BuildBOMHandler
	WorkOrder *WorkOrderHandler
	Routing   *RoutingHandler
	Inventory *InventoryHandler
	Drawing   *DrawingHandler
	Admin     *AdminHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth),
		Operation: NewOperationHandler(svc.Lifecycle, svc.Progress),
		BuildBOM:  NewBuildBOMHandler(svc.BuildBOM, svc.Routing),
		WorkOrder: NewWorkOrderHandler(svc.WorkOrder),
		Routing:   NewRoutingHandler(svc.Routing),
		Inventory: NewInventoryHandler(svc.Inventory),
		Drawing:   NewDrawingHandler(svc.Drawing),
		Admin:     NewAdminHandler(svc.Admin),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondServiceError 按错误类别映射响应
func RespondServiceError(c *gin.Context, err error) {
	var progressErr *service.OpProgressError
	var validationErr *service.ValidationError

	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "Record not found")
	case errors.As(err, &progressErr):
		BadRequest(c, progressErr.Message)
	case errors.As(err, &validationErr):
		BadRequest(c, validationErr.Message)
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// IsAdmin 从上下文获取管理员标记
func IsAdmin(c *gin.Context) bool {
	return c.GetBool("is_admin")
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}
