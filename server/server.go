package server

import (
	"fmt"
	"net/http"

	"github.com/1357310795/tboxdav/auth"
	"github.com/1357310795/tboxdav/lock"
	"github.com/1357310795/tboxdav/server/handler/webdav"
	"github.com/1357310795/tboxdav/server/middleware"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type Server struct {
	c      *config
	bind   string
	engine *gin.Engine
	lm     *lock.Manager
}

func New(bind string, opts ...Option) (*Server, error) {
	c := applyOpts(opts...)
	if c.st == nil {
		return nil, fmt.Errorf("no store found")
	}
	svr := &Server{
		c:      c,
		bind:   bind,
		engine: gin.New(),
		lm:     lock.NewManager(),
	}
	svr.engine.Use(gin.Recovery())
	svr.initAPI()
	return svr, nil
}

func (s *Server) initAPI() {
	mustAuthMiddleware := middleware.MustAuthMiddleware(s.c.authMode, auth.MapUserMatch(s.c.userMap))

	davHandler := webdav.NewWebdavHandler(s.c.st, s.lm, s.c.prefix, s.c.readOnly)
	group := s.engine.Group(s.c.prefix, mustAuthMiddleware)
	for _, method := range webdav.AllowMethods {
		group.Handle(method, "/*all", davHandler.Handler)
	}
	// 未注册的方法不会进入davHandler, 在这里回501; 已知方法未命中路由仍是404
	s.engine.NoRoute(func(c *gin.Context) {
		for _, method := range webdav.AllowMethods {
			if c.Request.Method == method {
				c.AbortWithStatus(http.StatusNotFound)
				return
			}
		}
		c.AbortWithStatus(http.StatusNotImplemented)
	})
}

// Engine 暴露给测试用
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Run() error {
	return s.engine.Run(s.bind)
}
