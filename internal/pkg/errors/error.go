package errors

import (
	"errors"
	"fmt"
)

// AppError 带业务错误码的错误
type AppError struct {
	Code    int    // 业务错误码
	Message string // 错误码对应的默认提示
	Err     error  // 原始错误
	Details string // 补充说明, 返回给调用方
}

func (e *AppError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	case e.Details != "":
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	default:
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status mapped to the error code
func (e *AppError) HTTPStatus() int {
	return GetHTTPStatus(e.Code)
}

// New 创建 AppError
func New(code int, details ...string) *AppError {
	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Details: firstDetail(details),
	}
}

// Wrap 给错误附加错误码; 已经是 AppError 的保持原错误码, 仅覆盖 Details
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if d := firstDetail(details); d != "" {
			appErr.Details = d
		}
		return appErr
	}

	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Err:     err,
		Details: firstDetail(details),
	}
}

// ExtractCode 提取错误码, 非 AppError 视为内部错误
func ExtractCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

// GetDetails 提取返回给调用方的补充说明
func GetDetails(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return appErr.Details
		}
		if appErr.Err != nil {
			return appErr.Err.Error()
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Rule maps every error matching Target (errors.Is) to Code
type Rule struct {
	Target error
	Code   int
}

// Mapper 将领域层哨兵错误翻译为业务错误码, 按顺序匹配
type Mapper []Rule

// Wrap wraps err with the code of the first matching rule, or fallback
func (m Mapper) Wrap(err error, fallback int) *AppError {
	if err == nil {
		return nil
	}
	for _, r := range m {
		if errors.Is(err, r.Target) {
			return Wrap(err, r.Code)
		}
	}
	return Wrap(err, fallback)
}

func firstDetail(details []string) string {
	if len(details) > 0 {
		return details[0]
	}
	return ""
}
