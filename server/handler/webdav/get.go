package webdav

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/1357310795/tboxdav/server/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func (h *WebdavHandler) handleGet(c *gin.Context) {
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
		// 不提供目录listing
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	rng, err := httpkit.ParseRange(c.GetHeader("Range"), it.Size)
	if err != nil {
		c.Writer.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", it.Size))
		c.AbortWithStatus(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	httpkit.SetItemHeader(c, it)
	var offset, length int64 = 0, 0
	status := http.StatusOK
	total := it.Size
	if rng != nil {
		offset, length = rng.Start, rng.Length()
		status = http.StatusPartialContent
		c.Writer.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, it.Size))
		total = length
	}
	stream, err := h.st.OpenRead(ctx, location, offset, length)
	if err != nil {
		h.failErr(c, err)
		return
	}
	defer stream.Close()
	c.Writer.Header().Set("Content-Length", strconv.FormatInt(total, 10))
	c.Writer.WriteHeader(status)
	if _, err := io.Copy(c.Writer, stream); err != nil {
		logutil.GetLogger(ctx).Error("stream body failed", zap.String("path", location), zap.Error(err))
	}
}
