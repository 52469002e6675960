package davkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound             = errors.New("resource not found")
	ErrConflict             = errors.New("conflict")
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrLocked               = errors.New("resource locked")
	ErrForbidden            = errors.New("forbidden")
	ErrBadRequest           = errors.New("bad request")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrBackendTransient     = errors.New("backend transient failure")
	ErrBackendPermanent     = errors.New("backend permanent failure")
)

// StatusOf 将错误归类映射为http状态码
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrLocked):
		return http.StatusLocked
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrBackendTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 0 //客户端已断开, 无需写回
	default:
		return http.StatusInternalServerError
	}
}

func StatusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}
