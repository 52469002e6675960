package webdav

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/lock"
	"github.com/1357310795/tboxdav/prop"
	"github.com/1357310795/tboxdav/server/model"
	"github.com/1357310795/tboxdav/utils"

	"github.com/gin-gonic/gin"
)

func (h *WebdavHandler) handleLock(c *gin.Context) {
	ctx := c.Request.Context()
	location, err := h.buildSrcPath(c)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if h.lm == nil {
		c.AbortWithStatus(http.StatusPreconditionFailed)
		return
	}
	it, err := h.st.GetItem(ctx, location)
	if err != nil {
		if errors.Is(err, davkit.ErrNotFound) {
			c.AbortWithStatus(http.StatusPreconditionFailed)
			return
		}
		h.failErr(c, err)
		return
	}
	timeouts := davkit.ParseTimeout(c.GetHeader("Timeout"))
	depth, err := davkit.ParseDepth(c.GetHeader("Depth"))
	if err != nil || depth == davkit.DepthOne {
		h.failErr(c, fmt.Errorf("%w: lock depth must be 0 or infinity", davkit.ErrBadRequest))
		return
	}

	// If头携带已知token时按刷新处理
	if token, ok := davkit.ParseIfToken(c.GetHeader("If")); ok {
		l, status := h.lm.Refresh(it.UniqueKey, token, timeouts)
		if status != http.StatusOK {
			c.AbortWithStatus(status)
			return
		}
		h.writeLockResponse(c, l, false)
		return
	}

	li, err := readLockInfo(c.Request.Body)
	if err != nil {
		h.failErr(c, err)
		return
	}
	scope := lock.ScopeExclusive
	if li.Shared != nil {
		scope = lock.ScopeShared
	}
	l, status := h.lm.Lock(it.UniqueKey, it.FullPath, li.Owner.InnerXML, scope, depth, timeouts)
	if status != http.StatusOK {
		c.AbortWithStatus(status)
		return
	}
	h.writeLockResponse(c, l, true)
}

// readLockInfo 空body说明是不带If头的刷新请求, 这里视为畸形;
// 只支持write类型
func readLockInfo(r io.Reader) (*model.LockInfo, error) {
	cr := &utils.CountingReader{R: r}
	li := &model.LockInfo{}
	if err := xml.NewDecoder(cr).Decode(li); err != nil {
		if errors.Is(err, io.EOF) && cr.N == 0 {
			return nil, fmt.Errorf("%w: empty lock body without if header", davkit.ErrBadRequest)
		}
		return nil, fmt.Errorf("%w: decode lockinfo failed, err:%v", davkit.ErrBadRequest, err)
	}
	if li.Write == nil || (li.Exclusive == nil && li.Shared == nil) {
		return nil, fmt.Errorf("%w: unsupported lock info", davkit.ErrBadRequest)
	}
	return li, nil
}

// writeLockResponse 200加lockdiscovery体; 新建锁才带Lock-Token头
func (h *WebdavHandler) writeLockResponse(c *gin.Context, l *lock.Lock, fresh bool) {
	if fresh {
		c.Writer.Header().Set("Lock-Token", "<"+l.Token+">")
	}
	body := &model.LockResponse{
		XMLNSD: "DAV:",
		XMLNSZ: "urn:schemas-microsoft-com:",
		Inner:  "<D:lockdiscovery>" + prop.RenderActiveLock(l, time.Now()) + "</D:lockdiscovery>",
	}
	raw, err := xml.Marshal(body)
	if err != nil {
		h.failErr(c, err)
		return
	}
	c.Writer.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	c.Writer.WriteHeader(http.StatusOK)
	_, _ = c.Writer.WriteString(xml.Header)
	_, _ = c.Writer.Write(raw)
}
