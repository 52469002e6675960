package tbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/1357310795/tboxdav/davkit"
)

const (
	apiGetItem      = "/api/v1/item"
	apiListItems    = "/api/v1/list"
	apiMkdir        = "/api/v1/mkdir"
	apiDelete       = "/api/v1/delete"
	apiMove         = "/api/v1/move"
	apiCopy         = "/api/v1/copy"
	apiDownload     = "/api/v1/download"
	apiStartUpload  = "/api/v1/upload/start"
	apiRenewUpload  = "/api/v1/upload/renew"
	apiConfirm      = "/api/v1/upload/confirm"
	defaultCallWait = 30 * time.Second
)

type clientConfig struct {
	schema  string
	host    string
	timeout time.Duration
	cred    ICredentials
}

type Option func(*clientConfig)

func WithEndpoint(schema, host string) Option {
	return func(c *clientConfig) {
		c.schema = schema
		c.host = host
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

func WithCredentials(cred ICredentials) Option {
	return func(c *clientConfig) {
		c.cred = cred
	}
}

type defaultClient struct {
	c      *clientConfig
	client *http.Client
}

// New 构建默认的Tbox http客户端
func New(opts ...Option) (IBackend, error) {
	c := &clientConfig{
		schema:  "https",
		timeout: defaultCallWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.host) == 0 {
		return nil, fmt.Errorf("no backend host found")
	}
	return &defaultClient{
		c: c,
		client: &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				IdleConnTimeout:     20 * time.Second,
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 8,
			},
		},
	}, nil
}

func (d *defaultClient) buildUrl(api string, kvs url.Values) string {
	u := fmt.Sprintf("%s://%s%s", d.c.schema, d.c.host, api)
	if len(kvs) > 0 {
		u += "?" + kvs.Encode()
	}
	return u
}

func (d *defaultClient) applyAuth(ctx context.Context, req *http.Request) error {
	if d.c.cred == nil {
		return nil
	}
	token, err := d.c.cred.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetch credential failed, err:%w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

type wireResponse struct {
	Result
	Data json.RawMessage `json:"data"`
}

func (d *defaultClient) call(ctx context.Context, method, api string, kvs url.Values, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.buildUrl(api, kvs), body)
	if err != nil {
		return err
	}
	if err := d.applyAuth(ctx, req); err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rsp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: call backend failed, err:%v", davkit.ErrBackendTransient, err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode >= 500 {
		return fmt.Errorf("%w: backend status:%d", davkit.ErrBackendTransient, rsp.StatusCode)
	}
	wire := &wireResponse{}
	if err := json.NewDecoder(rsp.Body).Decode(wire); err != nil {
		return fmt.Errorf("decode backend response failed, err:%w", err)
	}
	if wire.Status == 0 {
		wire.Status = rsp.StatusCode
	}
	if err := wire.AsError(); err != nil {
		return err
	}
	if out != nil && len(wire.Data) > 0 {
		if err := json.Unmarshal(wire.Data, out); err != nil {
			return fmt.Errorf("decode backend data failed, err:%w", err)
		}
	}
	return nil
}

func (d *defaultClient) GetItem(ctx context.Context, path string) (*ObjectInfo, error) {
	kvs := url.Values{}
	kvs.Set("path", path)
	info := &ObjectInfo{}
	if err := d.call(ctx, http.MethodGet, apiGetItem, kvs, nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (d *defaultClient) ListItems(ctx context.Context, path string) ([]*ObjectInfo, error) {
	kvs := url.Values{}
	kvs.Set("path", path)
	var items []*ObjectInfo
	if err := d.call(ctx, http.MethodGet, apiListItems, kvs, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (d *defaultClient) CreateDirectory(ctx context.Context, path string) error {
	return d.call(ctx, http.MethodPost, apiMkdir, nil, map[string]string{"path": path}, nil)
}

func (d *defaultClient) DeleteItem(ctx context.Context, path string) error {
	return d.call(ctx, http.MethodPost, apiDelete, nil, map[string]string{"path": path}, nil)
}

func (d *defaultClient) MoveItem(ctx context.Context, src, dst string) error {
	return d.call(ctx, http.MethodPost, apiMove, nil, map[string]string{"src": src, "dst": dst}, nil)
}

func (d *defaultClient) CopyItem(ctx context.Context, src, dst string) error {
	return d.call(ctx, http.MethodPost, apiCopy, nil, map[string]string{"src": src, "dst": dst}, nil)
}

func (d *defaultClient) Download(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	kvs := url.Values{}
	kvs.Set("path", path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.buildUrl(apiDownload, kvs), nil)
	if err != nil {
		return nil, err
	}
	if err := d.applyAuth(ctx, req); err != nil {
		return nil, err
	}
	if offset > 0 || length > 0 {
		if length > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		}
	}
	rsp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download failed, err:%v", davkit.ErrBackendTransient, err)
	}
	if rsp.StatusCode != http.StatusOK && rsp.StatusCode != http.StatusPartialContent {
		defer rsp.Body.Close()
		if rsp.StatusCode == http.StatusNotFound {
			return nil, davkit.ErrNotFound
		}
		if rsp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: download status:%d", davkit.ErrBackendTransient, rsp.StatusCode)
		}
		return nil, fmt.Errorf("%w: download status:%d", davkit.ErrBackendPermanent, rsp.StatusCode)
	}
	return rsp.Body, nil
}

type startUploadRequest struct {
	Path       string `json:"path"`
	ChunkCount int    `json:"chunk_count"`
}

type renewUploadRequest struct {
	ConfirmKey  string `json:"confirm_key"`
	PartNumbers []int  `json:"part_numbers"`
}

type uploadContextWire struct {
	ConfirmKey string           `json:"confirm_key"`
	Parts      []PartCredential `json:"parts"`
	Expiration int64            `json:"expiration"`
}

func (w *uploadContextWire) toUploadContext() *UploadContext {
	uc := &UploadContext{
		ConfirmKey: w.ConfirmKey,
		Parts:      make(map[int]PartCredential, len(w.Parts)),
		Expiration: time.UnixMilli(w.Expiration),
	}
	for _, p := range w.Parts {
		uc.Parts[p.PartNumber] = p
	}
	return uc
}

func (d *defaultClient) StartChunkUpload(ctx context.Context, path string, chunkCount int) (*UploadContext, error) {
	wire := &uploadContextWire{}
	if err := d.call(ctx, http.MethodPost, apiStartUpload, nil, &startUploadRequest{Path: path, ChunkCount: chunkCount}, wire); err != nil {
		return nil, err
	}
	return wire.toUploadContext(), nil
}

func (d *defaultClient) RenewChunkUpload(ctx context.Context, confirmKey string, partNumbers []int) (*UploadContext, error) {
	wire := &uploadContextWire{}
	if err := d.call(ctx, http.MethodPost, apiRenewUpload, nil, &renewUploadRequest{ConfirmKey: confirmKey, PartNumbers: partNumbers}, wire); err != nil {
		return nil, err
	}
	return wire.toUploadContext(), nil
}

func (d *defaultClient) UploadChunk(ctx context.Context, part PartCredential, r io.Reader, length int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, part.URL, r)
	if err != nil {
		return err
	}
	req.ContentLength = length
	if len(part.Credential) > 0 {
		req.Header.Set("Authorization", part.Credential)
	}
	rsp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: upload chunk failed, err:%v", davkit.ErrBackendTransient, err)
	}
	defer rsp.Body.Close()
	_, _ = io.Copy(io.Discard, rsp.Body)
	if rsp.StatusCode >= 500 {
		return fmt.Errorf("%w: upload chunk status:%d", davkit.ErrBackendTransient, rsp.StatusCode)
	}
	if rsp.StatusCode != http.StatusOK && rsp.StatusCode != http.StatusCreated && rsp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: upload chunk status:%d", davkit.ErrBackendPermanent, rsp.StatusCode)
	}
	return nil
}

type confirmRequest struct {
	ConfirmKey string `json:"confirm_key"`
	Crc64      string `json:"crc64,omitempty"`
}

func (d *defaultClient) ConfirmUpload(ctx context.Context, confirmKey string, crc64 string) error {
	return d.call(ctx, http.MethodPost, apiConfirm, nil, &confirmRequest{ConfirmKey: confirmKey, Crc64: crc64}, nil)
}
