package webdav

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/1357310795/tboxdav/davkit"
	"github.com/1357310795/tboxdav/lock"
	"github.com/1357310795/tboxdav/store"
	"github.com/1357310795/tboxdav/tbox"
	"github.com/1357310795/tboxdav/tbox/mem"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(t *testing.T, backend tbox.IBackend, readOnly bool) (*gin.Engine, store.IStore, *lock.Manager) {
	st, err := store.New(backend, 32*1024*1024)
	assert.NoError(t, err)
	lm := lock.NewManager()
	h := NewWebdavHandler(st, lm, "", readOnly)
	e := gin.New()
	for _, method := range AllowMethods {
		e.Handle(method, "/*all", h.Handler)
	}
	return e, st, lm
}

func do(e *gin.Engine, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if len(body) > 0 {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func mustPut(t *testing.T, e *gin.Engine, target, content string) {
	w := do(e, http.MethodPut, target, content, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

// parsedMultistatus 测试侧的宽松解析
type parsedMultistatus struct {
	XMLName   xml.Name `xml:"multistatus"`
	Responses []struct {
		Href      string `xml:"href"`
		Status    string `xml:"status"`
		Propstats []struct {
			Status string `xml:"status"`
			Raw    string `xml:",innerxml"`
		} `xml:"propstat"`
	} `xml:"response"`
}

func parseMS(t *testing.T, raw []byte) *parsedMultistatus {
	ms := &parsedMultistatus{}
	assert.NoError(t, xml.Unmarshal(raw, ms))
	return ms
}

func TestOptions(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	w := do(e, http.MethodOptions, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1, 2", w.Header().Get("DAV"))
	assert.Equal(t, "DAV", w.Header().Get("MS-Author-Via"))
	assert.Contains(t, w.Header().Get("Allow"), "PROPFIND")
	assert.Contains(t, w.Header().Get("Allow"), "LOCK")
}

func TestPropfindDepth0OnCollection(t *testing.T) {
	e, st, _ := newTestEngine(t, mem.New(), false)
	_, err := st.CreateCollection(context.Background(), "/docs", false)
	assert.NoError(t, err)

	body := `<?xml version="1.0"?><D:propfind xmlns:D="DAV:"><D:prop><D:displayname/><D:getcontentlength/></D:prop></D:propfind>`
	w := do(e, "PROPFIND", "/docs", body, map[string]string{"Depth": "0"})
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/xml")

	ms := parseMS(t, w.Body.Bytes())
	assert.Len(t, ms.Responses, 1)
	assert.Equal(t, "/docs/", ms.Responses[0].Href)
	var okRaw, nfRaw string
	for _, ps := range ms.Responses[0].Propstats {
		if strings.Contains(ps.Status, "200") {
			okRaw = ps.Raw
		}
		if strings.Contains(ps.Status, "404") {
			nfRaw = ps.Raw
		}
	}
	assert.Contains(t, okRaw, ">docs<")
	assert.Contains(t, nfRaw, "getcontentlength")
}

func TestPropfindDepth1Order(t *testing.T) {
	e, st, _ := newTestEngine(t, mem.New(), false)
	ctx := context.Background()
	_, err := st.CreateCollection(ctx, "/docs", false)
	assert.NoError(t, err)
	mustPut(t, e, "/docs/a.txt", "aaa")
	mustPut(t, e, "/docs/b.txt", "bbb")

	w := do(e, "PROPFIND", "/docs", "", map[string]string{"Depth": "1"})
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	ms := parseMS(t, w.Body.Bytes())
	assert.Len(t, ms.Responses, 3)
	// 父在前, 兄弟按枚举顺序
	assert.Equal(t, "/docs/", ms.Responses[0].Href)
	assert.Equal(t, "/docs/a.txt", ms.Responses[1].Href)
	assert.Equal(t, "/docs/b.txt", ms.Responses[2].Href)
}

func TestPropfindMissing(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	w := do(e, "PROPFIND", "/nope", "", map[string]string{"Depth": "0"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPropfindBadDepth(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	w := do(e, "PROPFIND", "/", "", map[string]string{"Depth": "2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPropfindMalformedBody(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	w := do(e, "PROPFIND", "/", "<not-xml", map[string]string{"Depth": "0"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAndHead(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "hello world")

	w := do(e, http.MethodGet, "/a.txt", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("ETag"))
	assert.NotEmpty(t, w.Header().Get("Last-Modified"))

	w = do(e, http.MethodHead, "/a.txt", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "11", w.Header().Get("Content-Length"))
	assert.Empty(t, w.Body.String())
}

func TestGetRange(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "0123456789")

	w := do(e, http.MethodGet, "/a.txt", "", map[string]string{"Range": "bytes=2-5"})
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "2345", w.Body.String())
	assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))

	w = do(e, http.MethodGet, "/a.txt", "", map[string]string{"Range": "bytes=7-"})
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "789", w.Body.String())

	w = do(e, http.MethodGet, "/a.txt", "", map[string]string{"Range": "bytes=-3"})
	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "789", w.Body.String())

	w = do(e, http.MethodGet, "/a.txt", "", map[string]string{"Range": "bytes=99-"})
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
}

func TestGetOnCollectionForbidden(t *testing.T) {
	e, st, _ := newTestEngine(t, mem.New(), false)
	_, err := st.CreateCollection(context.Background(), "/docs", false)
	assert.NoError(t, err)
	w := do(e, http.MethodGet, "/docs", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPutCreateAndOverwrite(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	w := do(e, http.MethodPut, "/a.txt", "v1", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(e, http.MethodPut, "/a.txt", "v2", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(e, http.MethodGet, "/a.txt", "", nil)
	assert.Equal(t, "v2", w.Body.String())
}

func TestMkcol(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	w := do(e, "MKCOL", "/docs", "", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	// 已存在
	w = do(e, "MKCOL", "/docs", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	// 父目录缺失
	w = do(e, "MKCOL", "/missing/sub", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	// 带body
	w = do(e, "MKCOL", "/other", "<mkcol/>", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestLockPutUnlockFlow(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "v1")

	lockBody := `<?xml version="1.0"?><D:lockinfo xmlns:D="DAV:"><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype><D:owner><D:href>u</D:href></D:owner></D:lockinfo>`
	w := do(e, "LOCK", "/a.txt", lockBody, map[string]string{"Timeout": "Second-60", "Depth": "0"})
	assert.Equal(t, http.StatusOK, w.Code)
	token := strings.Trim(w.Header().Get("Lock-Token"), "<>")
	assert.True(t, strings.HasPrefix(token, "opaquelocktoken:"))
	assert.Contains(t, w.Body.String(), "lockdiscovery")
	assert.Contains(t, w.Body.String(), token)

	// 无token的PUT被拒
	w = do(e, http.MethodPut, "/a.txt", "v2", nil)
	assert.Equal(t, http.StatusLocked, w.Code)
	// 携带token的PUT放行
	w = do(e, http.MethodPut, "/a.txt", "v2", map[string]string{"If": "(<" + token + ">)"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	// 重复LOCK冲突
	w = do(e, "LOCK", "/a.txt", lockBody, map[string]string{"Timeout": "Second-60"})
	assert.Equal(t, http.StatusLocked, w.Code)

	// 刷新: If头携带token, 无body
	w = do(e, "LOCK", "/a.txt", "", map[string]string{"If": "(<" + token + ">)", "Timeout": "Second-120"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Lock-Token"))

	// UNLOCK错token
	w = do(e, "UNLOCK", "/a.txt", "", map[string]string{"Lock-Token": "<opaquelocktoken:bad>"})
	assert.Equal(t, http.StatusConflict, w.Code)
	// UNLOCK正确token
	w = do(e, "UNLOCK", "/a.txt", "", map[string]string{"Lock-Token": "<" + token + ">"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	// 解锁后PUT恢复自由
	w = do(e, http.MethodPut, "/a.txt", "v3", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLockMissingResource(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	lockBody := `<D:lockinfo xmlns:D="DAV:"><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockinfo>`
	w := do(e, "LOCK", "/nope.txt", lockBody, nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestLockMalformedBody(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "v1")
	w := do(e, "LOCK", "/a.txt", "<broken", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLockExpiry(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "v1")
	lockBody := `<D:lockinfo xmlns:D="DAV:"><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockinfo>`
	w := do(e, "LOCK", "/a.txt", lockBody, map[string]string{"Timeout": "Second-1"})
	assert.Equal(t, http.StatusOK, w.Code)
	token := strings.Trim(w.Header().Get("Lock-Token"), "<>")

	time.Sleep(2 * time.Second)
	// 过期后UNLOCK报409
	w = do(e, "UNLOCK", "/a.txt", "", map[string]string{"Lock-Token": "<" + token + ">"})
	assert.Equal(t, http.StatusConflict, w.Code)
	// 且同资源可重新建锁
	w = do(e, "LOCK", "/a.txt", lockBody, map[string]string{"Timeout": "Second-60"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMoveOverwriteDenied(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "va")
	mustPut(t, e, "/b.txt", "vb")

	w := do(e, "MOVE", "/a.txt", "", map[string]string{
		"Destination": "http://example.com/b.txt",
		"Overwrite":   "F",
	})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	// 双方内容不变
	w = do(e, http.MethodGet, "/a.txt", "", nil)
	assert.Equal(t, "va", w.Body.String())
	w = do(e, http.MethodGet, "/b.txt", "", nil)
	assert.Equal(t, "vb", w.Body.String())
}

func TestMoveAndCopy(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "va")

	w := do(e, "MOVE", "/a.txt", "", map[string]string{"Destination": "/b.txt"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(e, http.MethodGet, "/a.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(e, http.MethodGet, "/b.txt", "", nil)
	assert.Equal(t, "va", w.Body.String())

	w = do(e, "COPY", "/b.txt", "", map[string]string{"Destination": "/c.txt"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(e, http.MethodGet, "/b.txt", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(e, http.MethodGet, "/c.txt", "", nil)
	assert.Equal(t, "va", w.Body.String())
}

func TestMoveBadDestination(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "va")
	w := do(e, "MOVE", "/a.txt", "", map[string]string{"Destination": "http://other.host/b.txt"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(e, "MOVE", "/a.txt", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCopyTree(t *testing.T) {
	e, st, _ := newTestEngine(t, mem.New(), false)
	_, err := st.CreateCollection(context.Background(), "/docs", false)
	assert.NoError(t, err)
	mustPut(t, e, "/docs/a.txt", "va")
	mustPut(t, e, "/docs/b.txt", "vb")

	w := do(e, "COPY", "/docs", "", map[string]string{"Destination": "/backup"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(e, http.MethodGet, "/backup/a.txt", "", nil)
	assert.Equal(t, "va", w.Body.String())
	w = do(e, http.MethodGet, "/backup/b.txt", "", nil)
	assert.Equal(t, "vb", w.Body.String())
}

func TestDeleteFileAndCollection(t *testing.T) {
	e, st, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "va")
	w := do(e, http.MethodDelete, "/a.txt", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := st.CreateCollection(context.Background(), "/docs", false)
	assert.NoError(t, err)
	mustPut(t, e, "/docs/a.txt", "va")
	// 集合删除必须是Depth: infinity
	w = do(e, http.MethodDelete, "/docs", "", map[string]string{"Depth": "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(e, http.MethodDelete, "/docs", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(e, http.MethodGet, "/docs/a.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// failingBackend 注入单路径删除失败
type failingBackend struct {
	tbox.IBackend
	failPath string
}

func (f *failingBackend) DeleteItem(ctx context.Context, p string) error {
	if p == f.failPath {
		return fmt.Errorf("%w: delete rejected by backend", davkit.ErrForbidden)
	}
	return f.IBackend.DeleteItem(ctx, p)
}

func TestDeleteCollectionPartialFailure(t *testing.T) {
	backend := &failingBackend{IBackend: mem.New(), failPath: "/docs/keep.txt"}
	e, st, _ := newTestEngine(t, backend, false)
	_, err := st.CreateCollection(context.Background(), "/docs", false)
	assert.NoError(t, err)
	mustPut(t, e, "/docs/keep.txt", "keep")
	mustPut(t, e, "/docs/gone.txt", "gone")

	w := do(e, http.MethodDelete, "/docs", "", nil)
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	ms := parseMS(t, w.Body.Bytes())
	var hrefs []string
	for _, r := range ms.Responses {
		hrefs = append(hrefs, r.Href)
		if r.Href == "/docs/keep.txt" {
			assert.Contains(t, r.Status, "403")
		}
	}
	assert.Contains(t, hrefs, "/docs/keep.txt")
	assert.Contains(t, hrefs, "/docs/")
	// 兄弟已被删除, 失败子项保留
	w = do(e, http.MethodGet, "/docs/gone.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(e, http.MethodGet, "/docs/keep.txt", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProppatch(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), false)
	mustPut(t, e, "/a.txt", "va")
	body := `<?xml version="1.0"?><D:propertyupdate xmlns:D="DAV:" xmlns:Z="urn:schemas-microsoft-com:">` +
		`<D:set><D:prop><Z:Win32CreationTime>Wed, 01 May 2024 00:00:00 GMT</Z:Win32CreationTime></D:prop></D:set>` +
		`<D:set><D:prop><D:getetag>forced</D:getetag></D:prop></D:set>` +
		`<D:remove><D:prop><Z:unknownprop/></D:prop></D:remove>` +
		`</D:propertyupdate>`
	w := do(e, "PROPPATCH", "/a.txt", body, nil)
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, "Win32CreationTime")
	// 只读属性403, 未知属性移除200
	assert.Contains(t, out, "403")
	assert.Contains(t, out, "200")
}

func TestReadOnlyMode(t *testing.T) {
	e, _, _ := newTestEngine(t, mem.New(), true)
	w := do(e, http.MethodPut, "/a.txt", "va", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(e, "MKCOL", "/docs", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(e, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInfiniteDepthLockBlocksChildPut(t *testing.T) {
	e, st, _ := newTestEngine(t, mem.New(), false)
	_, err := st.CreateCollection(context.Background(), "/docs", false)
	assert.NoError(t, err)
	mustPut(t, e, "/docs/a.txt", "va")
	lockBody := `<D:lockinfo xmlns:D="DAV:"><D:lockscope><D:exclusive/></D:lockscope><D:locktype><D:write/></D:locktype></D:lockinfo>`
	w := do(e, "LOCK", "/docs", lockBody, map[string]string{"Depth": "infinity", "Timeout": "Second-60"})
	assert.Equal(t, http.StatusOK, w.Code)
	token := strings.Trim(w.Header().Get("Lock-Token"), "<>")

	w = do(e, http.MethodPut, "/docs/a.txt", "v2", nil)
	assert.Equal(t, http.StatusLocked, w.Code)
	w = do(e, http.MethodPut, "/docs/a.txt", "v2", map[string]string{"If": "(<" + token + ">)"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEncodedHref(t *testing.T) {
	e, st, _ := newTestEngine(t, mem.New(), false)
	_, err := st.CreateCollection(context.Background(), "/my docs", false)
	assert.NoError(t, err)
	w := do(e, "PROPFIND", "/my%20docs", "", map[string]string{"Depth": "0"})
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), "/my%20docs/")
}
