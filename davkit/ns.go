package davkit

// DAV与微软扩展命名空间, win7客户端要求两者都声明在根元素上
const (
	NamespaceDAV = "DAV:"
	NamespaceMS  = "urn:schemas-microsoft-com:"
)

const (
	MimeTypeDirectory = "httpd/unix-directory"
	MimeTypeFallback  = "application/octet-stream"
)
