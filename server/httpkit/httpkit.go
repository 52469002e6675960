package httpkit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/1357310795/tboxdav/store"
	"github.com/gin-gonic/gin"
)

// ByteRange 单区间的Range请求, 解析后保证 0 <= Start <= End < size
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ParseRange 解析单区间Range头: bytes=a-b / bytes=a- / bytes=-n。
// 不带Range头时返回nil; 语法或区间非法时返回错误(上层回416)
func ParseRange(h string, size int64) (*ByteRange, error) {
	if len(h) == 0 {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(h, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, fmt.Errorf("unsupported range:%s", h)
	}
	idx := strings.Index(spec, "-")
	if idx < 0 {
		return nil, fmt.Errorf("invalid range:%s", h)
	}
	left, right := strings.TrimSpace(spec[:idx]), strings.TrimSpace(spec[idx+1:])
	if len(left) == 0 {
		// 后缀形态: 最后n字节
		n, err := strconv.ParseInt(right, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid suffix range:%s", h)
		}
		if size == 0 {
			return nil, fmt.Errorf("empty content, range:%s", h)
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1}, nil
	}
	start, err := strconv.ParseInt(left, 10, 64)
	if err != nil || start < 0 {
		return nil, fmt.Errorf("invalid range start:%s", h)
	}
	if start >= size {
		return nil, fmt.Errorf("range start out of size:%s", h)
	}
	end := size - 1
	if len(right) > 0 {
		end, err = strconv.ParseInt(right, 10, 64)
		if err != nil || end < start {
			return nil, fmt.Errorf("invalid range end:%s", h)
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return &ByteRange{Start: start, End: end}, nil
}

// SetItemHeader 下载/探测类响应的公共头
func SetItemHeader(c *gin.Context, it *store.ItemInfo) {
	c.Writer.Header().Set("Content-Type", it.MimeType)
	c.Writer.Header().Set("Last-Modified", it.LastModifiedTime.UTC().Format(http.TimeFormat))
	if len(it.ETag) > 0 {
		c.Writer.Header().Set("ETag", it.ETag)
	}
	c.Writer.Header().Set("Accept-Ranges", "bytes")
}
