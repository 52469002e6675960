package store

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/tbox"
	"github.com/cespare/xxhash/v2"
)

// InfiniteDepthMode 集合对Depth:infinity遍历的态度
type InfiniteDepthMode int

const (
	InfiniteDepthAllowed InfiniteDepthMode = iota
	InfiniteDepthRejected
	InfiniteDepthAssume0
	InfiniteDepthAssume1
)

// ItemInfo 文件或集合的元信息
type ItemInfo struct {
	Name             string
	FullPath         string
	UniqueKey        string
	MimeType         string
	Size             int64
	CreationTime     time.Time
	LastModifiedTime time.Time
	LastAccessTime   time.Time
	ETag             string
	IsDir            bool
	// Win32Attributes windows客户端通过PROPPATCH写入的属性位, 十六进制文本
	Win32Attributes string
}

// IStore webdav核心依赖的存储面, 纯适配层, 不承载业务规则
type IStore interface {
	GetItem(ctx context.Context, path string) (*ItemInfo, error)
	GetChildren(ctx context.Context, path string) ([]*ItemInfo, error)
	CreateCollection(ctx context.Context, path string, overwrite bool) (int, error)
	DeleteItem(ctx context.Context, path string) error
	MoveItem(ctx context.Context, src, dst string, overwrite bool) (int, error)
	CopyItem(ctx context.Context, src, dst string, overwrite bool) (int, error)
	UploadFromStream(ctx context.Context, path string, r io.Reader, length int64) (int, error)
	OpenRead(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error)
	EnsureDirectoryExists(ctx context.Context, path string) error
	SupportsFastMove(src, dst string) bool
	InfiniteDepthMode() InfiniteDepthMode
}

// FromObjectInfo 后端对象元信息转换为存储条目。
// uniqueKey优先取后端稳定id, 没有就退化为全路径;
// etag同理, 后端缺省时用路径|大小|修改时间派生
func FromObjectInfo(obj *tbox.ObjectInfo, fullPath string) *ItemInfo {
	it := &ItemInfo{
		Name:             obj.Name,
		FullPath:         fullPath,
		UniqueKey:        obj.ID,
		Size:             obj.Size,
		CreationTime:     obj.CreationTime,
		LastModifiedTime: obj.ModifyTime,
		LastAccessTime:   obj.ModifyTime,
		ETag:             obj.ETag,
		IsDir:            obj.IsDir,
	}
	if len(it.UniqueKey) == 0 {
		it.UniqueKey = fullPath
	}
	if it.IsDir {
		it.Size = 0
		it.MimeType = davkit.MimeTypeDirectory
	} else {
		it.MimeType = detectMimeType(obj.Name)
	}
	if len(it.ETag) == 0 {
		sum := xxhash.Sum64String(fmt.Sprintf("%s|%d|%d", fullPath, it.Size, it.LastModifiedTime.UnixMilli()))
		it.ETag = fmt.Sprintf("W/\"%x\"", sum)
	}
	return it
}

func detectMimeType(name string) string {
	mt := mime.TypeByExtension(path.Ext(name))
	if len(mt) == 0 {
		return davkit.MimeTypeFallback
	}
	return mt
}
