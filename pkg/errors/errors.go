package errors

import "errors"

// Error 带业务码的错误
type Error struct {
	Code     int    `json:"code"`    // 业务错误码
	Message  string `json:"message"` // 对外展示的错误信息
	HttpCode int    `json:"-"`       // http 状态码
	Err      error  `json:"-"`       // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 实现 errors.Unwrap 接口
func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建新的错误
// httpCode 可选，默认 500
func New(code int, message string, httpCode ...int) *Error {
	hc := 500
	if len(httpCode) > 0 {
		hc = httpCode[0]
	}
	return &Error{
		Code:     code,
		HttpCode: hc,
		Message:  message,
	}
}

// WithError 附加原始错误（返回新实例，预定义错误保持不变）
func (e *Error) WithError(err error) *Error {
	return &Error{
		Code:     e.Code,
		HttpCode: e.HttpCode,
		Message:  e.Message,
		Err:      err,
	}
}

// WithMessage 替换错误信息（返回新实例）
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Code:     e.Code,
		HttpCode: e.HttpCode,
		Message:  message,
		Err:      e.Err,
	}
}

// Is 当 target 也是 *Error 时按 Code 比较
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// From 从错误链中取出 *Error
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus 返回错误对应的 http 状态码，非 *Error 一律 500
func HTTPStatus(err error) int {
	if e, ok := From(err); ok && e.HttpCode != 0 {
		return e.HttpCode
	}
	return 500
}

// As 转换为指定类型的错误
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is 检查错误链中是否包含 target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join 合并多个错误
func Join(errs ...error) error {
	return errors.Join(errs...)
}
