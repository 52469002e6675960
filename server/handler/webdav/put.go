package webdav

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/1357310795/tboxdav/davkit"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func (h *WebdavHandler) handlePut(c *gin.Context) {
	ctx := c.Request.Context()
	location, err := h.buildSrcPath(c)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if !h.validateLockToken(c, location) {
		c.AbortWithStatus(http.StatusLocked)
		return
	}
	length := c.Request.ContentLength
	reader := io.Reader(c.Request.Body)
	var cleanup func()
	if length < 0 {
		// chunked编码: 先落临时文件拿到总长, 分片数依赖总大小
		reader, length, cleanup, err = spoolBody(c.Request.Body)
		if err != nil {
			h.failErr(c, fmt.Errorf("spool request body failed, err:%w", err))
			return
		}
		defer cleanup()
	}
	status, err := h.st.UploadFromStream(ctx, location, reader, length)
	if err != nil {
		logutil.GetLogger(ctx).Error("upload failed",
			zap.String("path", location), zap.Int64("size", length), zap.Error(err))
		h.failErr(c, err)
		return
	}
	if status != http.StatusCreated && status != http.StatusNoContent {
		h.failErr(c, fmt.Errorf("%w: unexpected upload status:%d", davkit.ErrBackendPermanent, status))
		return
	}
	c.Status(status)
}

func spoolBody(r io.Reader) (io.Reader, int64, func(), error) {
	f, err := os.CreateTemp("", "tboxdav-put-*")
	if err != nil {
		return nil, 0, nil, err
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}
	n, err := io.Copy(f, r)
	if err != nil {
		cleanup()
		return nil, 0, nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, 0, nil, err
	}
	return f, n, cleanup, nil
}
