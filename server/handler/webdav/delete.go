package webdav

import (
	"context"
	"net/http"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/server/model"
	"github.com/1357310795/tboxdav/store"

	"github.com/gin-gonic/gin"
)

func (h *WebdavHandler) handleDelete(c *gin.Context) {
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
	it, err := h.st.GetItem(ctx, location)
	if err != nil {
		h.failErr(c, err)
		return
	}
	depth, err := davkit.ParseDepth(c.GetHeader("Depth"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	if it.IsDir && depth != davkit.DepthInfinity {
		// 集合删除只接受Depth: infinity
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	if !it.IsDir {
		if err := h.st.DeleteItem(ctx, location); err != nil {
			h.failErr(c, err)
			return
		}
		h.lm.ReleaseResource(it.UniqueKey)
		c.Status(http.StatusNoContent)
		return
	}
	// 逐子删除, 失败子项收进207; 全部成功时整体204
	var failures []*model.Response
	h.deleteTree(ctx, it, &failures)
	if len(failures) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	ms := model.NewMultistatus()
	ms.Responses = append(ms.Responses, failures...)
	// 父本体未删除, 报424 Failed Dependency
	ms.Responses = append(ms.Responses, &model.Response{
		Href:   h.buildHref(it.FullPath, it.IsDir),
		Status: davkit.StatusLine(http.StatusFailedDependency),
	})
	if err := h.writeDavResponse(c, ms); err != nil {
		h.failErr(c, err)
		return
	}
}

// deleteTree 后序遍历, 子项失败时跳过父目录本体的删除
func (h *WebdavHandler) deleteTree(ctx context.Context, it *store.ItemInfo, failures *[]*model.Response) bool {
	if it.IsDir {
		children, err := h.st.GetChildren(ctx, it.FullPath)
		if err != nil {
			*failures = append(*failures, &model.Response{
				Href:   h.buildHref(it.FullPath, it.IsDir),
				Status: davkit.StatusLine(davkit.StatusOf(err)),
			})
			return false
		}
		ok := true
		for _, child := range children {
			if !h.deleteTree(ctx, child, failures) {
				ok = false
			}
		}
		if !ok {
			return false
		}
	}
	if err := h.st.DeleteItem(ctx, it.FullPath); err != nil {
		*failures = append(*failures, &model.Response{
			Href:   h.buildHref(it.FullPath, it.IsDir),
			Status: davkit.StatusLine(davkit.StatusOf(err)),
		})
		return false
	}
	h.lm.ReleaseResource(it.UniqueKey)
	return true
}
