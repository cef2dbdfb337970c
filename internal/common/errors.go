package common

import "fmt"

// AppError 应用级错误结构
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// 错误码常量，对应错误处理策略表里的各个类别
const (
	ErrCodeTransport    = "TRANSPORT_ERROR"    // 网络/HTTP 失败：记日志跳过该源或阶段
	ErrCodeParse        = "PARSE_ERROR"        // RSS/JSON 解析失败：先修复，修不了走兜底
	ErrCodeValidation   = "VALIDATION_ERROR"   // 生成后缺字段：补默认值，不中断
	ErrCodeRateLimit    = "RATE_LIMIT_ERROR"   // LLM 限流：换备用模型重试一次
	ErrCodeConstraint   = "CONSTRAINT_ERROR"   // 唯一约束冲突：静默丢弃
	ErrCodeAIProcessing = "AI_PROCESSING_ERROR"
	ErrCodeDatabase     = "DATABASE_ERROR" // 存储不可用：致命，中止批次
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)
