package utils

import "io"

// CountingReader 统计已读字节数, 用于区分空body与畸形body
type CountingReader struct {
	N int
	R io.Reader
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += n
	return n, err
}

// DrainClose 读尽并关闭, 保证连接可复用
func DrainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
