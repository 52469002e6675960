package webdav

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (h *WebdavHandler) handleOption(c *gin.Context) {
	c.Writer.Header().Set("Allow", strings.Join(AllowMethods, ", "))
	c.Writer.Header().Set("DAV", "1, 2")
	c.Writer.Header().Set("MS-Author-Via", "DAV")
	c.Status(http.StatusOK)
}
