package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"oneacct/internal/app"
	"oneacct/internal/job"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPServer 封装 HTTP 服务运行所需的依赖。
type HTTPServer struct {
	Engine  *gin.Engine
	Logger  *zap.Logger
	Config  app.Config
	Service *app.Service
	Job     *job.Scheduler
}

// NewHTTPServer 构建 HTTPServer。
func NewHTTPServer(engine *gin.Engine, logger *zap.Logger, cfg app.Config, svc *app.Service, scheduler *job.Scheduler) *HTTPServer {
	return &HTTPServer{
		Engine:  engine,
		Logger:  logger,
		Config:  cfg,
		Service: svc,
		Job:     scheduler,
	}
}

// Run 启动 HTTP 服务及定时导出，ctx 结束时优雅退出。
func (s *HTTPServer) Run(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	listen := strings.TrimSpace(s.Config.HTTP.Listen)
	if listen == "" {
		listen = ":8080"
	}

	if s.Job != nil {
		cancelJob := s.Job.Start(ctx)
		defer cancelJob()
	}

	srv := &http.Server{Addr: listen, Handler: s.Engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server starting", zap.String("listen", listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Logger.Info("http server stopping")
		return srv.Shutdown(shutdownCtx)
	}
}

// Shutdown 释放资源。
func (s *HTTPServer) Shutdown(ctx context.Context) {
	if s.Service != nil {
		if err := s.Service.Close(ctx); err != nil && s.Logger != nil {
			s.Logger.Warn("close app service failed", zap.Error(err))
		}
	}
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
}
