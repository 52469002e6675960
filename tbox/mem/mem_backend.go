package mem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/1357310795/tboxdav/tbox"
	"github.com/google/uuid"
)

// memBackend 全内存的IBackend实现, 用于测试与本地调试
type memBackend struct {
	mu      sync.Mutex
	objects map[string]*object
	uploads map[string]*upload
	credTTL time.Duration
}

type object struct {
	id    string
	isDir bool
	data  []byte
	ctime time.Time
	mtime time.Time
}

type upload struct {
	path       string
	chunkCount int
	parts      map[int][]byte
	expiration time.Time
}

func New() tbox.IBackend {
	b := &memBackend{
		objects: make(map[string]*object),
		uploads: make(map[string]*upload),
		credTTL: 10 * time.Minute,
	}
	b.objects["/"] = &object{id: uuid.NewString(), isDir: true, ctime: time.Now(), mtime: time.Now()}
	return b
}

// SetCredTTL 缩短凭证有效期, 便于测试续期路径
func SetCredTTL(b tbox.IBackend, ttl time.Duration) {
	b.(*memBackend).credTTL = ttl
}

func notFound(p string) error {
	return (&tbox.Result{Success: false, Code: tbox.CodeNotFound, Message: "not found: " + p, Status: http.StatusNotFound}).AsError()
}

func (m *memBackend) GetItem(ctx context.Context, p string) (*tbox.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[p]
	if !ok {
		return nil, notFound(p)
	}
	return m.toInfo(p, obj), nil
}

func (m *memBackend) ListItems(ctx context.Context, p string) ([]*tbox.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir, ok := m.objects[p]
	if !ok {
		return nil, notFound(p)
	}
	if !dir.isDir {
		return nil, (&tbox.Result{Success: false, Code: "NotADirectory", Status: http.StatusConflict}).AsError()
	}
	rs := make([]*tbox.ObjectInfo, 0, 8)
	for op, obj := range m.objects {
		if op == p {
			continue
		}
		if parentOf(op) == p {
			rs = append(rs, m.toInfo(op, obj))
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Name < rs[j].Name })
	return rs, nil
}

func (m *memBackend) CreateDirectory(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[p]; ok {
		return (&tbox.Result{Success: false, Code: tbox.CodeSameNameExists, Status: http.StatusConflict}).AsError()
	}
	if parent, ok := m.objects[parentOf(p)]; !ok || !parent.isDir {
		return (&tbox.Result{Success: false, Code: "ParentNotFound", Status: http.StatusConflict}).AsError()
	}
	now := time.Now()
	m.objects[p] = &object{id: uuid.NewString(), isDir: true, ctime: now, mtime: now}
	return nil
}

func (m *memBackend) DeleteItem(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[p]; !ok {
		return notFound(p)
	}
	for op := range m.objects {
		if op == p || strings.HasPrefix(op, p+"/") {
			delete(m.objects, op)
		}
	}
	return nil
}

func (m *memBackend) MoveItem(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[src]; !ok {
		return notFound(src)
	}
	moved := make(map[string]*object)
	for op, obj := range m.objects {
		if op == src || strings.HasPrefix(op, src+"/") {
			moved[dst+strings.TrimPrefix(op, src)] = obj
			delete(m.objects, op)
		}
	}
	for op, obj := range moved {
		obj.mtime = time.Now()
		m.objects[op] = obj
	}
	return nil
}

func (m *memBackend) CopyItem(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[src]; !ok {
		return notFound(src)
	}
	now := time.Now()
	copied := make(map[string]*object)
	for op, obj := range m.objects {
		if op == src || strings.HasPrefix(op, src+"/") {
			cp := &object{id: uuid.NewString(), isDir: obj.isDir, data: append([]byte(nil), obj.data...), ctime: now, mtime: now}
			copied[dst+strings.TrimPrefix(op, src)] = cp
		}
	}
	for op, obj := range copied {
		m.objects[op] = obj
	}
	return nil
}

func (m *memBackend) Download(ctx context.Context, p string, offset, length int64) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[p]
	if !ok {
		return nil, notFound(p)
	}
	data := obj.data
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	data = data[offset:]
	if length > 0 && length < int64(len(data)) {
		data = data[:length]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBackend) StartChunkUpload(ctx context.Context, p string, chunkCount int) (*tbox.UploadContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := uuid.NewString()
	up := &upload{
		path:       p,
		chunkCount: chunkCount,
		parts:      make(map[int][]byte),
		expiration: time.Now().Add(m.credTTL),
	}
	m.uploads[key] = up
	return m.toUploadContext(key, up, allParts(chunkCount)), nil
}

func (m *memBackend) RenewChunkUpload(ctx context.Context, confirmKey string, partNumbers []int) (*tbox.UploadContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[confirmKey]
	if !ok {
		return nil, notFound(confirmKey)
	}
	up.expiration = time.Now().Add(m.credTTL)
	return m.toUploadContext(confirmKey, up, partNumbers), nil
}

func (m *memBackend) UploadChunk(ctx context.Context, part tbox.PartCredential, r io.Reader, length int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// url形如 mem://<confirmKey>/<part>
	key, num, err := parseMemURL(part.URL)
	if err != nil {
		return err
	}
	up, ok := m.uploads[key]
	if !ok {
		return notFound(key)
	}
	if time.Now().After(up.expiration) {
		return (&tbox.Result{Success: false, Code: "CredentialExpired", Status: http.StatusForbidden}).AsError()
	}
	up.parts[num] = data
	return nil
}

func (m *memBackend) ConfirmUpload(ctx context.Context, confirmKey string, crc64 string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[confirmKey]
	if !ok {
		return notFound(confirmKey)
	}
	if len(up.parts) != up.chunkCount {
		return (&tbox.Result{Success: false, Code: "PartsMissing", Status: http.StatusBadRequest}).AsError()
	}
	var data []byte
	for i := 1; i <= up.chunkCount; i++ {
		data = append(data, up.parts[i]...)
	}
	now := time.Now()
	old, existed := m.objects[up.path]
	obj := &object{id: uuid.NewString(), data: data, ctime: now, mtime: now}
	if existed {
		obj.id = old.id
		obj.ctime = old.ctime
	}
	m.objects[up.path] = obj
	delete(m.uploads, confirmKey)
	return nil
}

func (m *memBackend) toInfo(p string, obj *object) *tbox.ObjectInfo {
	return &tbox.ObjectInfo{
		Name:         path.Base(p),
		Path:         p,
		ID:           obj.id,
		IsDir:        obj.isDir,
		Size:         int64(len(obj.data)),
		CreationTime: obj.ctime,
		ModifyTime:   obj.mtime,
		ETag:         fmt.Sprintf("\"%s-%d\"", obj.id[:8], obj.mtime.UnixMilli()),
	}
}

func (m *memBackend) toUploadContext(key string, up *upload, parts []int) *tbox.UploadContext {
	uc := &tbox.UploadContext{
		ConfirmKey: key,
		Parts:      make(map[int]tbox.PartCredential, len(parts)),
		Expiration: up.expiration,
	}
	for _, num := range parts {
		uc.Parts[num] = tbox.PartCredential{
			PartNumber: num,
			URL:        fmt.Sprintf("mem://%s/%d", key, num),
			Credential: uuid.NewString(),
		}
	}
	return uc
}

func allParts(n int) []int {
	rs := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		rs = append(rs, i)
	}
	return rs
}

func parseMemURL(u string) (string, int, error) {
	rest, ok := strings.CutPrefix(u, "mem://")
	if !ok {
		return "", 0, fmt.Errorf("invalid mem url:%s", u)
	}
	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid mem url:%s", u)
	}
	var num int
	if _, err := fmt.Sscanf(rest[idx+1:], "%d", &num); err != nil {
		return "", 0, fmt.Errorf("invalid part in mem url:%s", u)
	}
	return rest[:idx], num, nil
}

func parentOf(p string) string {
	d := path.Dir(p)
	return d
}
