package prop

import (
	"context"
	"encoding/xml"

	"github.com/1357310795/tboxdav/store"
)

type GetterFunc func(ctx context.Context, it *store.ItemInfo) (interface{}, error)
type SetterFunc func(ctx context.Context, it *store.ItemInfo, v interface{}) error

// Property 单个DAV属性的描述符: 限定名 + 取值回调 + 类型转换器。
// Setter为nil表示只读
type Property struct {
	Name        xml.Name
	IsExpensive bool //allprop跳过
	IsComputed  bool
	Conv        IConverter
	Getter      GetterFunc
	Setter      SetterFunc
}

// Render 取值并编码为元素内容
func (p *Property) Render(ctx context.Context, it *store.ItemInfo) (string, error) {
	v, err := p.Getter(ctx, it)
	if err != nil {
		return "", err
	}
	return p.Conv.Encode(v)
}

func davName(local string) xml.Name {
	return xml.Name{Space: "DAV:", Local: local}
}

func msName(local string) xml.Name {
	return xml.Name{Space: "urn:schemas-microsoft-com:", Local: local}
}

// 工厂函数按值类型绑定转换器

func newRFC1123Prop(name xml.Name, getter GetterFunc, setter SetterFunc) *Property {
	return &Property{Name: name, Conv: rfc1123Converter{}, Getter: getter, Setter: setter}
}

func newISO8601Prop(name xml.Name, getter GetterFunc, setter SetterFunc) *Property {
	return &Property{Name: name, Conv: iso8601Converter{}, Getter: getter, Setter: setter}
}

func newBoolProp(name xml.Name, getter GetterFunc) *Property {
	return &Property{Name: name, Conv: boolConverter{}, Getter: getter}
}

func newInt64Prop(name xml.Name, getter GetterFunc) *Property {
	return &Property{Name: name, Conv: int64Converter{}, Getter: getter}
}

func newStringProp(name xml.Name, getter GetterFunc) *Property {
	return &Property{Name: name, Conv: stringConverter{}, Getter: getter}
}

func newXmlProp(name xml.Name, expensive bool, getter GetterFunc) *Property {
	return &Property{Name: name, IsExpensive: expensive, IsComputed: true, Conv: xmlConverter{}, Getter: getter}
}
