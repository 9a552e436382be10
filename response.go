package pushgate

// Response 统一响应结构 {"code","data","message"}
type Response struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// CodeSuccess 成功的业务码
const CodeSuccess = 0

// NewResponse 创建响应
func NewResponse(code int, data any, message string) *Response {
	return &Response{Code: code, Data: data, Message: message}
}

// Success 成功响应
func Success(data any) *Response {
	return NewResponse(CodeSuccess, data, "success")
}

// Fail 失败响应
func Fail(code int, message string) *Response {
	return NewResponse(code, nil, message)
}
