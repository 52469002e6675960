package webdav

import (
	"fmt"
	"net/http"

	"github.com/1357310795/tboxdav/davkit"

	"github.com/gin-gonic/gin"
)

func (h *WebdavHandler) handleUnlock(c *gin.Context) {
	ctx := c.Request.Context()
	location, err := h.buildSrcPath(c)
	if err != nil {
		h.failErr(c, err)
		return
	}
	token, ok := davkit.ParseTaggedToken(c.GetHeader("Lock-Token"))
	if !ok {
		h.failErr(c, fmt.Errorf("%w: no lock token header", davkit.ErrBadRequest))
		return
	}
	key := location
	if it, err := h.st.GetItem(ctx, location); err == nil {
		key = it.UniqueKey
	}
	c.Status(h.lm.Unlock(key, token))
}
