package service

import "fmt"

// OpProgressError 业务规则错误, operator-facing rule violation. Handlers map
// these to HTTP 400 with the message intact.
type OpProgressError struct {
	Message string
}

func (e *OpProgressError) Error() string {
	return e.Message
}

// NewOpProgressError 创建业务规则错误
func NewOpProgressError(format string, args ...interface{}) *OpProgressError {
	return &OpProgressError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError 输入校验错误
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError 创建输入校验错误
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
