package davkit

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath 将请求路径规整为存储键: 百分号解码, NFC归一化,
// 消除 . 与 .. 段, 统一为以/开头且不带尾斜杠(根除外)
func NormalizePath(p string) (string, error) {
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return "", fmt.Errorf("%w: unescape path failed, path:%s", ErrBadRequest, p)
	}
	decoded = norm.NFC.String(decoded)
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}
	cleaned := path.Clean(decoded)
	if strings.Contains(cleaned, "\x00") {
		return "", fmt.Errorf("%w: nul in path", ErrBadRequest)
	}
	return cleaned, nil
}

// EncodePath 按段做pchar编码, 段间的/保留原样, 用于href输出
func EncodePath(p string) string {
	if p == "/" {
		return "/"
	}
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = encodeSegment(seg)
	}
	return strings.Join(segs, "/")
}

// pchar = unreserved / pct-encoded / sub-delims / ":" / "@"
func encodeSegment(seg string) string {
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if isPchar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(fmt.Sprintf("%%%02X", c))
	}
	return b.String()
}

func isPchar(c byte) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
		return true
	}
	switch c {
	case '-', '.', '_', '~': // unreserved
		return true
	case '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=': // sub-delims
		return true
	case ':', '@':
		return true
	}
	return false
}

// SplitPath 拆出父路径与末段名称
func SplitPath(p string) (dir string, name string) {
	dir = path.Dir(p)
	name = path.Base(p)
	return dir, name
}

// IsValidName 校验单段名称, 拒绝空串/分隔符/NUL/点段
func IsValidName(name string) bool {
	if len(name) == 0 || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
