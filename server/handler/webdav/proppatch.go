package webdav

import (
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/server/model"

	"github.com/gin-gonic/gin"
)

func (h *WebdavHandler) handlePropPatch(c *gin.Context) {
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
	update := &model.PropertyUpdate{}
	if err := xml.NewDecoder(c.Request.Body).Decode(update); err != nil {
		h.failErr(c, fmt.Errorf("%w: decode propertyupdate failed, err:%v", davkit.ErrBadRequest, err))
		return
	}
	it, err := h.st.GetItem(ctx, location)
	if err != nil {
		h.failErr(c, err)
		return
	}
	pm := h.propsFor(it)

	rsp := &model.Response{Href: h.buildHref(it.FullPath, it.IsDir)}
	groups := make(map[int]*model.Propstat)
	put := func(status int, name xml.Name) {
		g, ok := groups[status]
		if !ok {
			g = &model.Propstat{Status: davkit.StatusLine(status)}
			groups[status] = g
			rsp.Propstats = append(rsp.Propstats, g)
		}
		g.Prop.Elements = append(g.Prop.Elements, model.NewPropElement(model.PrefixedName(name.Space, name.Local), ""))
	}
	// set/remove按文档顺序执行, 单项失败不影响其余项
	for _, op := range update.Ops {
		switch op.XMLName.Local {
		case "set":
			for _, el := range op.Prop.Names {
				put(pm.SetProperty(ctx, it, el.XMLName, el.Inner), el.XMLName)
			}
		case "remove":
			for _, el := range op.Prop.Names {
				// 没有死属性存储: 移除未知属性是no-op成功, 活属性拒绝
				if pm.Find(el.XMLName) == nil {
					put(http.StatusOK, el.XMLName)
					continue
				}
				put(http.StatusForbidden, el.XMLName)
			}
		}
	}
	ms := model.NewMultistatus()
	ms.Responses = append(ms.Responses, rsp)
	if err := h.writeDavResponse(c, ms); err != nil {
		h.failErr(c, err)
		return
	}
}
