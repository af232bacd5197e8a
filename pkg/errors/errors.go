package errors

import (
	"errors"
	"fmt"
)

// ErrorType 提交流水线的错误分类，同时作为运维通知的错误类型标签
type ErrorType string

const (
	DataParseError   ErrorType = "DataParseError"
	ValidationError  ErrorType = "ValidationError"
	SheetUnavailable ErrorType = "SheetUnavailable"
	PermissionDenied ErrorType = "PermissionDenied"
	RowLimitReached  ErrorType = "RowLimitReached"
	UnknownError     ErrorType = "UnknownError"
)

// Notifiable 是否需要通知运维（校验失败属于用户可修正错误，不通知）
func (t ErrorType) Notifiable() bool {
	return t != ValidationError
}

// IntakeError 带分类的流水线错误
// Message 仅用于内部日志与运维通知，不会返回给调用方
type IntakeError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *IntakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *IntakeError) Unwrap() error { return e.Err }

// New 创建分类错误
func New(t ErrorType, message string, err error) *IntakeError {
	return &IntakeError{Type: t, Message: message, Err: err}
}

// TypeOf 提取错误分类，未分类的错误视为 UnknownError
func TypeOf(err error) ErrorType {
	var ie *IntakeError
	if errors.As(err, &ie) {
		return ie.Type
	}
	return UnknownError
}
