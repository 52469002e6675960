package prop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/1357310795/tboxdav/lock"
	"github.com/1357310795/tboxdav/store"
)

// Builder 构建条目类型对应的属性表
type Builder struct {
	lm       *lock.Manager
	readOnly bool
}

func NewBuilder(lm *lock.Manager, readOnly bool) *Builder {
	return &Builder{lm: lm, readOnly: readOnly}
}

// ForItem 文件条目的属性表
func (b *Builder) ForItem() *Manager {
	props := []*Property{
		b.displayName(),
		newInt64Prop(davName("getcontentlength"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.Size, nil
		}),
	}
	props = append(props, b.common()...)
	return NewManager(props)
}

// ForCollection 集合条目的属性表, 没有getcontentlength
func (b *Builder) ForCollection() *Manager {
	props := []*Property{b.displayName()}
	props = append(props, b.common()...)
	return NewManager(props)
}

func (b *Builder) displayName() *Property {
	return newStringProp(davName("displayname"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
		return it.Name, nil
	})
}

func (b *Builder) common() []*Property {
	return []*Property{
		newStringProp(davName("getcontenttype"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.MimeType, nil
		}),
		newRFC1123Prop(davName("getlastmodified"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.LastModifiedTime, nil
		}, nil),
		newISO8601Prop(davName("creationdate"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.CreationTime, nil
		}, nil),
		newXmlProp(davName("resourcetype"), false, func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			if it.IsDir {
				return "<D:collection/>", nil
			}
			return "", nil
		}),
		newStringProp(davName("getetag"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.ETag, nil
		}),
		newXmlProp(davName("lockdiscovery"), true, func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return b.renderLockDiscovery(it), nil
		}),
		newXmlProp(davName("supportedlock"), false, func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return b.renderSupportedLock(), nil
		}),
		newBoolProp(davName("iscollection"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.IsDir, nil
		}),
		newBoolProp(davName("isreadonly"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return b.readOnly, nil
		}),
		newRFC1123Prop(msName("Win32CreationTime"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.CreationTime, nil
		}, func(ctx context.Context, it *store.ItemInfo, v interface{}) error {
			it.CreationTime = v.(time.Time)
			return nil
		}),
		newRFC1123Prop(msName("Win32LastModifiedTime"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.LastModifiedTime, nil
		}, func(ctx context.Context, it *store.ItemInfo, v interface{}) error {
			it.LastModifiedTime = v.(time.Time)
			return nil
		}),
		newRFC1123Prop(msName("Win32LastAccessTime"), func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
			return it.LastAccessTime, nil
		}, func(ctx context.Context, it *store.ItemInfo, v interface{}) error {
			it.LastAccessTime = v.(time.Time)
			return nil
		}),
		{
			Name: msName("Win32FileAttributes"),
			Conv: stringConverter{},
			Getter: func(ctx context.Context, it *store.ItemInfo) (interface{}, error) {
				if len(it.Win32Attributes) == 0 {
					if it.IsDir {
						return "00000010", nil
					}
					return "00000020", nil
				}
				return it.Win32Attributes, nil
			},
			Setter: func(ctx context.Context, it *store.ItemInfo, v interface{}) error {
				s, ok := v.(string)
				if !ok {
					return fmt.Errorf("not a string value")
				}
				it.Win32Attributes = s
				return nil
			},
		},
	}
}

// RenderActiveLock 单个activelock片段, LOCK响应与lockdiscovery共用
func RenderActiveLock(l *lock.Lock, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("<D:activelock>")
	sb.WriteString("<D:locktype><D:write/></D:locktype>")
	if l.Scope == lock.ScopeShared {
		sb.WriteString("<D:lockscope><D:shared/></D:lockscope>")
	} else {
		sb.WriteString("<D:lockscope><D:exclusive/></D:lockscope>")
	}
	sb.WriteString("<D:depth>")
	if l.Depth == -1 {
		sb.WriteString("infinity")
	} else {
		sb.WriteString("0")
	}
	sb.WriteString("</D:depth>")
	if len(l.Owner) > 0 {
		sb.WriteString("<D:owner>" + l.Owner + "</D:owner>")
	}
	sb.WriteString(fmt.Sprintf("<D:timeout>Second-%d</D:timeout>", l.Remaining(now)))
	sb.WriteString("<D:locktoken><D:href>" + l.Token + "</D:href></D:locktoken>")
	sb.WriteString("<D:lockroot><D:href>" + l.Path + "</D:href></D:lockroot>")
	sb.WriteString("</D:activelock>")
	return sb.String()
}

func (b *Builder) renderLockDiscovery(it *store.ItemInfo) string {
	if b.lm == nil {
		return ""
	}
	locks := b.lm.GetActiveLockInfo(it.UniqueKey, it.FullPath)
	if len(locks) == 0 {
		return ""
	}
	now := time.Now()
	var sb strings.Builder
	for _, l := range locks {
		sb.WriteString(RenderActiveLock(l, now))
	}
	return sb.String()
}

func (b *Builder) renderSupportedLock() string {
	var sb strings.Builder
	if b.lm == nil {
		return ""
	}
	for _, scope := range b.lm.GetSupportedLocks() {
		sb.WriteString("<D:lockentry><D:lockscope><D:")
		sb.WriteString(scope.String())
		sb.WriteString("/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockentry>")
	}
	return sb.String()
}
