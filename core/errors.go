package core

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INVALID_GESTURE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "learn", "queue"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError，如果不是则返回 nil。
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误。
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound       = "NOT_FOUND"       // 资源不存在
	ErrorCodeInvalidGesture = "INVALID_GESTURE" // 手势不在权重表中，拒绝记录
	ErrorCodeUnavailable    = "UNAVAILABLE"     // 外部存储不可用，可重试
	ErrorCodeNotSupported   = "NOT_SUPPORTED"   // 操作不支持
	ErrorCodeInternalError  = "INTERNAL_ERROR"  // 内部错误
)

// 模块名称常量
const (
	ModuleStore   = "store"
	ModuleFeature = "feature"
	ModuleLearn   = "learn"
	ModuleQueue   = "queue"
	ModuleBatch   = "batch"
)

// IsNotFound 检查错误是否为 NOT_FOUND。
func IsNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsInvalidGesture 检查错误是否为 INVALID_GESTURE。
func IsInvalidGesture(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeInvalidGesture
	}
	return false
}

// IsUnavailable 检查错误是否为 UNAVAILABLE（调用方可重试）。
func IsUnavailable(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeUnavailable
	}
	return false
}
