package middleware

import (
	"net/http"

	"github.com/1357310795/tboxdav/auth"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// MustAuthMiddleware 认证模式非None时要求每个请求带合法凭证
func MustAuthMiddleware(mode auth.Mode, users auth.UserQueryFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if mode == auth.ModeNone {
			return
		}
		for _, impl := range auth.AuthList() {
			if !impl.IsMatchAuthType(ctx) {
				continue
			}
			user, err := impl.Auth(ctx, users)
			if err != nil {
				logutil.GetLogger(ctx.Request.Context()).Warn("auth failed",
					zap.String("auth", impl.Name()), zap.Error(err))
				break
			}
			ctx.Set("user", user)
			return
		}
		ctx.Header("WWW-Authenticate", `Basic realm="tboxdav"`)
		ctx.AbortWithStatus(http.StatusUnauthorized)
	}
}
