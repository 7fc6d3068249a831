// Package server exposes the stored records, the extraction trigger and the
// exports over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	srv  *http.Server
	port int
}

// NewServer builds the HTTP server for h on port.
func NewServer(port int, h *Handler) *Server {
	server := &Server{
		port: port,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	InitRouter(engine, h)
	server.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", server.port),
		Handler: engine,
	}

	return server
}

// Run blocks until the server stops. A graceful shutdown is not an error.
func (srv *Server) Run() error {
	zap.S().Infof("http server listening on :%d", srv.port)
	err := srv.srv.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			zap.S().Debugf("http server[:%d] closed", srv.port)
			return nil
		}
		return err
	}
	return nil
}

func (srv *Server) GracefulShutdown(ctx context.Context) error {
	if err := srv.srv.Shutdown(ctx); err != nil {
		zap.S().Errorf("http server shutdown: %s", err.Error())
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		zap.S().Debugf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
	}
}
