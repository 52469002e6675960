package model

import "encoding/xml"

// Multistatus 是 WebDAV 返回的根结构, D/Z两个命名空间前缀
// 都要声明在根上, win7客户端不认局部声明
type Multistatus struct {
	XMLName   xml.Name    `xml:"D:multistatus"`
	XMLNSD    string      `xml:"xmlns:D,attr"`
	XMLNSZ    string      `xml:"xmlns:Z,attr"`
	Responses []*Response `xml:"D:response"`
}

func NewMultistatus() *Multistatus {
	return &Multistatus{
		XMLNSD: "DAV:",
		XMLNSZ: "urn:schemas-microsoft-com:",
	}
}

// Response 代表每个资源的信息; 树操作的失败子项只带Status,
// PROPFIND/PROPPATCH的条目带若干按状态分组的Propstat
type Response struct {
	Href      string      `xml:"D:href"`
	Propstats []*Propstat `xml:"D:propstat,omitempty"`
	Status    string      `xml:"D:status,omitempty"`
}

// Propstat 同一状态下的一组属性
type Propstat struct {
	Prop   Prop   `xml:"D:prop"`
	Status string `xml:"D:status"`
}

// Prop 任意属性元素的集合
type Prop struct {
	Elements []*PropElement `xml:",any"`
}

// PropElement 单个属性元素, 元素名带前缀, 内容为已编码好的XML
type PropElement struct {
	XMLName xml.Name
	Inner   string `xml:",innerxml"`
}

func NewPropElement(prefixed string, inner string) *PropElement {
	return &PropElement{
		XMLName: xml.Name{Local: prefixed},
		Inner:   inner,
	}
}

// PrefixedName DAV属性用D:前缀, 微软扩展用Z:前缀
func PrefixedName(space, local string) string {
	if space == "urn:schemas-microsoft-com:" {
		return "Z:" + local
	}
	return "D:" + local
}

// LockResponse LOCK成功时的 <prop><lockdiscovery> 响应体,
// Inner需携带完整的lockdiscovery元素
type LockResponse struct {
	XMLName xml.Name `xml:"D:prop"`
	XMLNSD  string   `xml:"xmlns:D,attr"`
	XMLNSZ  string   `xml:"xmlns:Z,attr"`
	Inner   string   `xml:",innerxml"`
}

// ---- 请求体 ----

// PropfindRequest PROPFIND的五种形态: 空body/allprop/propname/prop/allprop+include
type PropfindRequest struct {
	XMLName  xml.Name  `xml:"DAV: propfind"`
	Allprop  *struct{} `xml:"DAV: allprop"`
	Propname *struct{} `xml:"DAV: propname"`
	Prop     *PropList `xml:"DAV: prop"`
	Include  *PropList `xml:"DAV: include"`
}

// PropList 请求里的属性名列表, 只关心限定名
type PropList struct {
	Names []RawElement `xml:",any"`
}

type RawElement struct {
	XMLName xml.Name
	Inner   string `xml:",innerxml"`
}

// PropertyUpdate PROPPATCH请求体, set/remove按文档顺序混排
type PropertyUpdate struct {
	XMLName xml.Name   `xml:"DAV: propertyupdate"`
	Ops     []UpdateOp `xml:",any"`
}

// UpdateOp XMLName.Local为set或remove
type UpdateOp struct {
	XMLName xml.Name
	Prop    PropList `xml:"prop"`
}

// LockInfo LOCK请求体, 只支持write类型
type LockInfo struct {
	XMLName   xml.Name  `xml:"DAV: lockinfo"`
	Exclusive *struct{} `xml:"lockscope>exclusive"`
	Shared    *struct{} `xml:"lockscope>shared"`
	Write     *struct{} `xml:"locktype>write"`
	Owner     Owner     `xml:"owner"`
}

// Owner 客户端提交的任意XML片段, 原样保存回显
type Owner struct {
	InnerXML string `xml:",innerxml"`
}
