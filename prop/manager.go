package prop

import (
	"context"
	"encoding/xml"
	"net/http"

	"github.com/1357310795/tboxdav/store"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Manager 某一类条目(文件/集合)的属性表, 启动后只读
type Manager struct {
	props []*Property
	index map[xml.Name]*Property
}

func NewManager(props []*Property) *Manager {
	m := &Manager{
		props: props,
		index: make(map[xml.Name]*Property, len(props)),
	}
	for _, p := range props {
		m.index[p.Name] = p
	}
	return m
}

func (m *Manager) Find(name xml.Name) *Property {
	return m.index[name]
}

// All 全部属性描述符, 按注册顺序
func (m *Manager) All() []*Property {
	return m.props
}

// Default allprop可见的属性(剔除expensive项)
func (m *Manager) Default() []*Property {
	rs := make([]*Property, 0, len(m.props))
	for _, p := range m.props {
		if p.IsExpensive {
			continue
		}
		rs = append(rs, p)
	}
	return rs
}

// GetProperty 取值并编码; 未知属性404, getter出错500
func (m *Manager) GetProperty(ctx context.Context, it *store.ItemInfo, name xml.Name) (string, int) {
	p := m.Find(name)
	if p == nil {
		return "", http.StatusNotFound
	}
	value, err := p.Render(ctx, it)
	if err != nil {
		logutil.GetLogger(ctx).Error("render property failed",
			zap.String("prop", name.Local), zap.String("path", it.FullPath), zap.Error(err))
		return "", http.StatusInternalServerError
	}
	return value, http.StatusOK
}

// SetProperty 写属性; 只读属性403, 未知属性403(成功set未知属性也按403)
func (m *Manager) SetProperty(ctx context.Context, it *store.ItemInfo, name xml.Name, raw string) int {
	p := m.Find(name)
	if p == nil || p.Setter == nil {
		return http.StatusForbidden
	}
	v, err := p.Conv.Decode(raw)
	if err != nil {
		return http.StatusBadRequest
	}
	if err := p.Setter(ctx, it, v); err != nil {
		logutil.GetLogger(ctx).Error("set property failed",
			zap.String("prop", name.Local), zap.String("path", it.FullPath), zap.Error(err))
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
