package webdav

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func (h *WebdavHandler) handleMkcol(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Request.ContentLength != 0 {
		// MKCOL不接受请求体
		c.AbortWithStatus(http.StatusUnsupportedMediaType)
		return
	}
	location, err := h.buildSrcPath(c)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if !h.validateLockToken(c, location) {
		c.AbortWithStatus(http.StatusLocked)
		return
	}
	status, err := h.st.CreateCollection(ctx, location, false)
	if err != nil {
		logutil.GetLogger(ctx).Error("create collection failed", zap.String("path", location), zap.Error(err))
		c.AbortWithStatus(status)
		return
	}
	c.Status(status)
}
