package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/lk2023060901/linkedin-discovery/internal/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`              // 业务错误码(0 表示成功)
	Message string      `json:"message,omitempty"` // 提示信息
	Data    interface{} `json:"data"`              // 实际数据(可能为空对象 {})
}

// Success 成功响应(200)
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, apperrors.Success, "", data)
}

// Created 创建资源成功(201)
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, apperrors.Success, "", data)
}

// HandleError 统一错误处理, 非 AppError 按内部错误返回
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code := apperrors.ExtractCode(err)
	write(c, apperrors.GetHTTPStatus(code), code, apperrors.FormatError(code, apperrors.GetDetails(err)), nil)
}

// ErrorWithCode 使用错误码的错误响应
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	write(c, apperrors.GetHTTPStatus(code), code, apperrors.FormatError(code, details...), nil)
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
