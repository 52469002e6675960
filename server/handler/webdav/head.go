package webdav

import (
	"net/http"
	"strconv"

	"github.com/1357310795/tboxdav/server/httpkit"

	"github.com/gin-gonic/gin"
)

func (h *WebdavHandler) handleHead(c *gin.Context) {
	ctx := c.Request.Context()
	location, err := h.buildSrcPath(c)
	if err != nil {
		h.failErr(c, err)
		return
	}
	it, err := h.st.GetItem(ctx, location)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if it.IsDir {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	httpkit.SetItemHeader(c, it)
	c.Writer.Header().Set("Content-Length", strconv.FormatInt(it.Size, 10))
	c.Status(http.StatusOK)
}
