package one

import (
	"errors"
	"fmt"
)

// 远端调用失败的分类，调用方用 errors.Is 判断。
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("user not authorized")
	ErrNotFound       = errors.New("resource not found")
	ErrState          = errors.New("resource in wrong state")
	ErrRetrieval      = errors.New("resource retrieval failed")
)

// 远端返回的错误码。
const (
	codeAuthentication = 0x0100
	codeAuthorization  = 0x0200
	codeNoExists       = 0x0400
	codeAction         = 0x0800
)

// Error 描述一次失败的远端调用。
type Error struct {
	Kind    error
	Method  string
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Method, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Method, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// kindForCode 将错误码映射为错误分类，未知错误码一律视为检索失败。
func kindForCode(code int) error {
	switch code {
	case codeAuthentication:
		return ErrAuthentication
	case codeAuthorization:
		return ErrAuthorization
	case codeNoExists:
		return ErrNotFound
	case codeAction:
		return ErrState
	default:
		return ErrRetrieval
	}
}

// IsRetrievalFailure 判断错误是否属于远端检索失败（五类之一）。
func IsRetrievalFailure(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrAuthorization) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrRetrieval)
}
