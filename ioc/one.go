package ioc

import (
	"time"

	"oneacct/internal/app"
	"oneacct/internal/one"
)

// InitOneClient 构建远端资源管理器客户端。
func InitOneClient(cfg app.Config) (one.Client, error) {
	return one.NewHTTPClient(one.HTTPConfig{
		Endpoint: cfg.XMLRPC.Endpoint,
		Secret:   cfg.XMLRPC.Secret,
		Timeout:  time.Duration(cfg.XMLRPC.TimeoutSeconds) * time.Second,
	})
}
