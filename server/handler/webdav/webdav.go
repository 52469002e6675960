package webdav

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/lock"
	"github.com/1357310795/tboxdav/prop"
	"github.com/1357310795/tboxdav/server/model"
	"github.com/1357310795/tboxdav/store"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi/proxyutil"
	"go.uber.org/zap"
)

type WebdavHandler struct {
	st        store.IStore
	lm        *lock.Manager
	itemProps *prop.Manager
	collProps *prop.Manager
	prefix    string
	readOnly  bool
}

func NewWebdavHandler(st store.IStore, lm *lock.Manager, prefix string, readOnly bool) *WebdavHandler {
	builder := prop.NewBuilder(lm, readOnly)
	return &WebdavHandler{
		st:        st,
		lm:        lm,
		itemProps: builder.ForItem(),
		collProps: builder.ForCollection(),
		prefix:    strings.TrimSuffix(prefix, "/"),
		readOnly:  readOnly,
	}
}

// Handler 按方法分发; handler内未捕获的panic折叠成500空响应
func (h *WebdavHandler) Handler(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			logutil.GetLogger(c.Request.Context()).Error("handler panic",
				zap.String("method", c.Request.Method), zap.Any("panic", r))
			c.AbortWithStatus(http.StatusInternalServerError)
		}
	}()
	if h.readOnly && isMutating(c.Request.Method) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	switch c.Request.Method {
	case http.MethodOptions:
		h.handleOption(c)
	case http.MethodGet:
		h.handleGet(c)
	case http.MethodHead:
		h.handleHead(c)
	case http.MethodPut:
		h.handlePut(c)
	case http.MethodDelete:
		h.handleDelete(c)
	case "PROPFIND":
		h.handlePropfind(c)
	case "PROPPATCH":
		h.handlePropPatch(c)
	case "MKCOL":
		h.handleMkcol(c)
	case "COPY":
		h.handleCopy(c)
	case "MOVE":
		h.handleMove(c)
	case "LOCK":
		h.handleLock(c)
	case "UNLOCK":
		h.handleUnlock(c)
	default:
		c.AbortWithStatus(http.StatusNotImplemented)
		logutil.GetLogger(c.Request.Context()).Error("unsupported method", zap.String("method", c.Request.Method))
	}
}

// buildSrcPath 请求路径 -> 存储键
func (h *WebdavHandler) buildSrcPath(c *gin.Context) (string, error) {
	p := c.Request.URL.EscapedPath()
	if len(h.prefix) > 0 {
		p = strings.TrimPrefix(p, h.prefix)
	}
	return davkit.NormalizePath(p)
}

// tryBuildDstPath 解析Destination头, 仅接受同authority的绝对URL
func (h *WebdavHandler) tryBuildDstPath(c *gin.Context) (string, error) {
	dstlink := c.GetHeader("Destination")
	if len(dstlink) == 0 {
		return "", fmt.Errorf("%w: no destination header", davkit.ErrBadRequest)
	}
	dsturi, err := url.Parse(dstlink)
	if err != nil {
		return "", fmt.Errorf("%w: parse destination failed, err:%v", davkit.ErrBadRequest, err)
	}
	if len(dsturi.Host) > 0 && dsturi.Host != c.Request.Host {
		return "", fmt.Errorf("%w: destination on other authority", davkit.ErrBadRequest)
	}
	p := dsturi.EscapedPath()
	if len(h.prefix) > 0 {
		p = strings.TrimPrefix(p, h.prefix)
	}
	return davkit.NormalizePath(p)
}

// buildHref 存储键 -> 响应href, 集合补尾斜杠
func (h *WebdavHandler) buildHref(p string, isDir bool) string {
	href := h.prefix + davkit.EncodePath(p)
	if isDir && !strings.HasSuffix(href, "/") {
		href += "/"
	}
	return href
}

func (h *WebdavHandler) propsFor(it *store.ItemInfo) *prop.Manager {
	if it.IsDir {
		return h.collProps
	}
	return h.itemProps
}

// validateLockToken 资源被锁时要求If头携带有效token
func (h *WebdavHandler) validateLockToken(c *gin.Context, p string) bool {
	key := p
	if it, err := h.st.GetItem(c.Request.Context(), p); err == nil {
		key = it.UniqueKey
	}
	var tokens []string
	if token, ok := davkit.ParseIfToken(c.GetHeader("If")); ok {
		tokens = append(tokens, token)
	}
	return h.lm.Validate(key, p, tokens)
}

// writeDavResponse 207多状态响应, utf-8无BOM
func (h *WebdavHandler) writeDavResponse(c *gin.Context, ms *model.Multistatus) error {
	raw, err := xml.Marshal(ms)
	if err != nil {
		return fmt.Errorf("marshal multistatus failed, err:%w", err)
	}
	c.Writer.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	c.Writer.WriteHeader(http.StatusMultiStatus)
	if _, err := c.Writer.WriteString(xml.Header); err != nil {
		return err
	}
	if _, err := c.Writer.Write(raw); err != nil {
		return err
	}
	return nil
}

func (h *WebdavHandler) failErr(c *gin.Context, err error) {
	status := davkit.StatusOf(err)
	if status == 0 {
		// 客户端已断开
		c.Abort()
		return
	}
	proxyutil.FailStatus(c, status, err)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPut, http.MethodDelete, "PROPPATCH", "MKCOL", "COPY", "MOVE":
		return true
	default:
		return false
	}
}
