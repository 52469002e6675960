package webdav

import (
	"github.com/1357310795/tboxdav/server/model"
	"github.com/1357310795/tboxdav/store"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func (h *WebdavHandler) handleMove(c *gin.Context) {
	h.handleCopyMove(c, true)
}

func (h *WebdavHandler) doMove(c *gin.Context, it *store.ItemInfo, dst string, overwrite bool) {
	ctx := c.Request.Context()
	if h.st.SupportsFastMove(it.FullPath, dst) {
		status, err := h.st.MoveItem(ctx, it.FullPath, dst, overwrite)
		if err != nil {
			logutil.GetLogger(ctx).Error("move failed",
				zap.String("src", it.FullPath), zap.String("dst", dst), zap.Error(err))
			c.AbortWithStatus(status)
			return
		}
		h.lm.ReleaseResource(it.UniqueKey)
		c.Status(status)
		return
	}
	// 后端不支持服务端rename时退化为拷贝加删除
	status, err := h.prepareTreeDestination(ctx, dst, overwrite)
	if err != nil {
		h.failErr(c, err)
		return
	}
	var failures []*model.Response
	h.copyTree(ctx, it, dst, &failures)
	if len(failures) > 0 {
		ms := model.NewMultistatus()
		ms.Responses = append(ms.Responses, failures...)
		if err := h.writeDavResponse(c, ms); err != nil {
			h.failErr(c, err)
		}
		return
	}
	if err := h.st.DeleteItem(ctx, it.FullPath); err != nil {
		h.failErr(c, err)
		return
	}
	h.lm.ReleaseResource(it.UniqueKey)
	c.Status(status)
}
