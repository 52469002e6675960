package davkit

import "strings"

// ParseIfToken 解析If头的最小子集:
//
//	If: (<opaquelocktoken:xxx>)
//	If: <resource> (<opaquelocktoken:xxx>)
//
// 完整的tagged-list文法这里不需要, windows/finder只会发送单token形态
func ParseIfToken(h string) (string, bool) {
	h = strings.TrimSpace(h)
	if len(h) == 0 {
		return "", false
	}
	start := strings.Index(h, "(")
	if start < 0 {
		return "", false
	}
	end := strings.Index(h[start:], ")")
	if end < 0 {
		return "", false
	}
	inner := strings.TrimSpace(h[start+1 : start+end])
	if !strings.HasPrefix(inner, "<") || !strings.HasSuffix(inner, ">") {
		return "", false
	}
	token := strings.TrimSuffix(strings.TrimPrefix(inner, "<"), ">")
	if len(token) == 0 {
		return "", false
	}
	return token, true
}

// ParseTaggedToken 解析Lock-Token头, 形如 <opaquelocktoken:xxx>
func ParseTaggedToken(h string) (string, bool) {
	h = strings.TrimSpace(h)
	if !strings.HasPrefix(h, "<") || !strings.HasSuffix(h, ">") {
		return "", false
	}
	token := strings.TrimSuffix(strings.TrimPrefix(h, "<"), ">")
	return token, len(token) > 0
}
