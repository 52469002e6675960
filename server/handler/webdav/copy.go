package webdav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/server/model"
	"github.com/1357310795/tboxdav/store"

	"github.com/gin-gonic/gin"
)

func (h *WebdavHandler) handleCopy(c *gin.Context) {
	h.handleCopyMove(c, false)
}

// handleCopyMove COPY与MOVE共用的外层: 解析Destination/Overwrite/Depth,
// 做目标合法性检查后分派
func (h *WebdavHandler) handleCopyMove(c *gin.Context, isMove bool) {
	ctx := c.Request.Context()
	src, err := h.buildSrcPath(c)
	if err != nil {
		h.failErr(c, err)
		return
	}
	dst, err := h.tryBuildDstPath(c)
	if err != nil {
		h.failErr(c, err)
		return
	}
	overwrite := c.GetHeader("Overwrite") != "F"
	depth, err := davkit.ParseDepth(c.GetHeader("Depth"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	if src == dst || strings.HasPrefix(dst, src+"/") {
		// 目标不能是源本身或其后代
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	it, err := h.st.GetItem(ctx, src)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if isMove {
		if depth != davkit.DepthInfinity {
			h.failErr(c, fmt.Errorf("%w: move requires infinite depth", davkit.ErrBadRequest))
			return
		}
		if !h.validateLockToken(c, src) || !h.validateLockToken(c, dst) {
			c.AbortWithStatus(http.StatusLocked)
			return
		}
		h.doMove(c, it, dst, overwrite)
		return
	}
	if !h.validateLockToken(c, dst) {
		c.AbortWithStatus(http.StatusLocked)
		return
	}
	h.doCopy(c, it, dst, overwrite, depth)
}

func (h *WebdavHandler) doCopy(c *gin.Context, it *store.ItemInfo, dst string, overwrite bool, depth int) {
	ctx := c.Request.Context()
	if !it.IsDir || depth == davkit.DepthZero {
		// 单个条目(或depth 0的空集合拷贝)直接走后端
		status, err := h.copySingle(ctx, it, dst, overwrite)
		if err != nil {
			h.failErr(c, err)
			return
		}
		c.Status(status)
		return
	}
	// 树拷贝: 逐子best-effort, 失败子项收207
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
	c.Status(status)
}

func (h *WebdavHandler) copySingle(ctx context.Context, it *store.ItemInfo, dst string, overwrite bool) (int, error) {
	if it.IsDir {
		return h.st.CreateCollection(ctx, dst, overwrite)
	}
	return h.st.CopyItem(ctx, it.FullPath, dst, overwrite)
}

// prepareTreeDestination 树操作前处理Overwrite语义, 返回成功时的整体状态码
func (h *WebdavHandler) prepareTreeDestination(ctx context.Context, dst string, overwrite bool) (int, error) {
	_, err := h.st.GetItem(ctx, dst)
	if err != nil {
		if errors.Is(err, davkit.ErrNotFound) {
			return http.StatusCreated, nil
		}
		return davkit.StatusOf(err), err
	}
	if !overwrite {
		return http.StatusPreconditionFailed, davkit.ErrPreconditionFailed
	}
	if err := h.st.DeleteItem(ctx, dst); err != nil {
		return davkit.StatusOf(err), err
	}
	return http.StatusNoContent, nil
}

func (h *WebdavHandler) copyTree(ctx context.Context, it *store.ItemInfo, dst string, failures *[]*model.Response) {
	if !it.IsDir {
		if _, err := h.st.CopyItem(ctx, it.FullPath, dst, true); err != nil {
			*failures = append(*failures, &model.Response{
				Href:   h.buildHref(it.FullPath, it.IsDir),
				Status: davkit.StatusLine(davkit.StatusOf(err)),
			})
		}
		return
	}
	if _, err := h.st.CreateCollection(ctx, dst, true); err != nil {
		*failures = append(*failures, &model.Response{
			Href:   h.buildHref(it.FullPath, it.IsDir),
			Status: davkit.StatusLine(davkit.StatusOf(err)),
		})
		return
	}
	children, err := h.st.GetChildren(ctx, it.FullPath)
	if err != nil {
		*failures = append(*failures, &model.Response{
			Href:   h.buildHref(it.FullPath, it.IsDir),
			Status: davkit.StatusLine(davkit.StatusOf(err)),
		})
		return
	}
	for _, child := range children {
		h.copyTree(ctx, child, path.Join(dst, child.Name), failures)
	}
}
