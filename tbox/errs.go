package tbox

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/1357310795/tboxdav/davkit"
)

// Error 带后端返回信息的错误, 统一从Result转换而来
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend error, code:%s, status:%d, msg:%s", e.Code, e.Status, e.Message)
}

// Unwrap 将后端错误折叠进通用错误分类
func (e *Error) Unwrap() error {
	switch {
	case e.Code == CodeNotFound || e.Status == http.StatusNotFound:
		return davkit.ErrNotFound
	case e.Code == CodeSameNameExists || e.Status == http.StatusConflict:
		return davkit.ErrConflict
	case e.Status == http.StatusForbidden || e.Code == CodeQuotaExceeded:
		return davkit.ErrForbidden
	case e.Status >= 500 || e.Status == http.StatusTooManyRequests:
		return davkit.ErrBackendTransient
	default:
		return davkit.ErrBackendPermanent
	}
}

func (r *Result) AsError() error {
	if r.Success {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message, Status: r.Status}
}

// IsTransient 判断是否值得重试
func IsTransient(err error) bool {
	if errors.Is(err, davkit.ErrBackendTransient) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}

// IsSameNameExists 建目录时同名冲突, 上层按成功处理
func IsSameNameExists(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Code == CodeSameNameExists
}
