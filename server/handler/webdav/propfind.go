package webdav

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/server/model"
	"github.com/1357310795/tboxdav/store"
	"github.com/1357310795/tboxdav/utils"

	"github.com/gin-gonic/gin"
)

type propfindMode int

const (
	modeAllprop propfindMode = iota
	modePropname
	modeProp
)

type propfindPlan struct {
	mode    propfindMode
	names   []xml.Name //modeProp时的显式列表
	include []xml.Name //allprop附带的include
}

func (h *WebdavHandler) handlePropfind(c *gin.Context) {
	ctx := c.Request.Context()
	location, err := h.buildSrcPath(c)
	if err != nil {
		h.failErr(c, err)
		return
	}
	depth, err := davkit.ParseDepth(c.GetHeader("Depth"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	plan, err := parsePropfindBody(c.Request.Body)
	if err != nil {
		h.failErr(c, err)
		return
	}
	base, err := h.st.GetItem(ctx, location)
	if err != nil {
		h.failErr(c, err)
		return
	}
	if depth == davkit.DepthInfinity && base.IsDir {
		switch h.st.InfiniteDepthMode() {
		case store.InfiniteDepthRejected:
			h.failErr(c, fmt.Errorf("%w: infinite depth propfind rejected", davkit.ErrForbidden))
			return
		case store.InfiniteDepthAssume0:
			depth = davkit.DepthZero
		case store.InfiniteDepthAssume1:
			depth = davkit.DepthOne
		}
	}
	ms := model.NewMultistatus()
	if err := h.walkPropfind(ctx, ms, base, plan, depth); err != nil {
		h.failErr(c, err)
		return
	}
	if err := h.writeDavResponse(c, ms); err != nil {
		h.failErr(c, err)
		return
	}
}

// parsePropfindBody 空body按allprop处理, 畸形body报400
func parsePropfindBody(r io.Reader) (*propfindPlan, error) {
	cr := &utils.CountingReader{R: r}
	req := &model.PropfindRequest{}
	if err := xml.NewDecoder(cr).Decode(req); err != nil {
		if errors.Is(err, io.EOF) && cr.N == 0 {
			return &propfindPlan{mode: modeAllprop}, nil
		}
		return nil, fmt.Errorf("%w: decode propfind body failed, err:%v", davkit.ErrBadRequest, err)
	}
	switch {
	case req.Propname != nil:
		return &propfindPlan{mode: modePropname}, nil
	case req.Prop != nil:
		names := make([]xml.Name, 0, len(req.Prop.Names))
		for _, el := range req.Prop.Names {
			names = append(names, el.XMLName)
		}
		return &propfindPlan{mode: modeProp, names: names}, nil
	case req.Allprop != nil:
		plan := &propfindPlan{mode: modeAllprop}
		if req.Include != nil {
			for _, el := range req.Include.Names {
				plan.include = append(plan.include, el.XMLName)
			}
		}
		return plan, nil
	default:
		return nil, fmt.Errorf("%w: empty propfind body", davkit.ErrBadRequest)
	}
}

// walkPropfind 先父后子, 兄弟沿GetChildren顺序
func (h *WebdavHandler) walkPropfind(ctx context.Context, ms *model.Multistatus, it *store.ItemInfo, plan *propfindPlan, depth int) error {
	ms.Responses = append(ms.Responses, h.buildPropfindResponse(ctx, it, plan))
	if !it.IsDir || depth == davkit.DepthZero {
		return nil
	}
	children, err := h.st.GetChildren(ctx, it.FullPath)
	if err != nil {
		return err
	}
	childDepth := davkit.DepthZero
	if depth == davkit.DepthInfinity {
		childDepth = davkit.DepthInfinity
	}
	for _, child := range children {
		if err := h.walkPropfind(ctx, ms, child, plan, childDepth); err != nil {
			return err
		}
	}
	return nil
}

func (h *WebdavHandler) buildPropfindResponse(ctx context.Context, it *store.ItemInfo, plan *propfindPlan) *model.Response {
	pm := h.propsFor(it)
	rsp := &model.Response{Href: h.buildHref(it.FullPath, it.IsDir)}
	// 按状态分组的propstat
	groups := make(map[int]*model.Propstat)
	put := func(status int, el *model.PropElement) {
		g, ok := groups[status]
		if !ok {
			g = &model.Propstat{Status: davkit.StatusLine(status)}
			groups[status] = g
			rsp.Propstats = append(rsp.Propstats, g)
		}
		g.Prop.Elements = append(g.Prop.Elements, el)
	}
	switch plan.mode {
	case modePropname:
		for _, p := range pm.All() {
			put(http.StatusOK, model.NewPropElement(model.PrefixedName(p.Name.Space, p.Name.Local), ""))
		}
	case modeProp:
		for _, name := range plan.names {
			value, status := pm.GetProperty(ctx, it, name)
			put(status, model.NewPropElement(model.PrefixedName(name.Space, name.Local), value))
		}
	case modeAllprop:
		for _, p := range pm.Default() {
			value, status := pm.GetProperty(ctx, it, p.Name)
			put(status, model.NewPropElement(model.PrefixedName(p.Name.Space, p.Name.Local), value))
		}
		for _, name := range plan.include {
			if pm.Find(name) == nil {
				continue
			}
			value, status := pm.GetProperty(ctx, it, name)
			put(status, model.NewPropElement(model.PrefixedName(name.Space, name.Local), value))
		}
	}
	return rsp
}
