package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Handler builds the gin engine serving s.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/formats", s.formats)
		api.GET("/templates", s.listTemplates)
		api.POST("/templates/reload", s.reloadTemplates)
		api.GET("/templates/:id", s.getTemplate)
		api.POST("/templates/:id/composite", s.composite)
		api.GET("/templates/:id/qr", s.qr)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
