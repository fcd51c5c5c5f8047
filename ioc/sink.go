package ioc

import (
	"context"
	"fmt"
	"time"

	"oneacct/internal/app"
	"oneacct/internal/sink"

	"go.uber.org/zap"
)

// InitSinks 按配置启用附加输出，未配置的部分被跳过。
func InitSinks(ctx context.Context, cfg app.Config, logger *zap.Logger) ([]sink.Sink, error) {
	var sinks []sink.Sink
	fail := func(err error) ([]sink.Sink, error) {
		for _, s := range sinks {
			_ = s.Close(ctx)
		}
		return nil, err
	}

	if k := cfg.Sinks.Kafka; len(k.Brokers) > 0 {
		s, err := sink.NewKafkaSink(sink.KafkaConfig{
			Brokers:  k.Brokers,
			Topic:    k.Topic,
			ClientID: k.ClientID,
			Timeout:  time.Duration(k.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if dsn := cfg.Sinks.Postgres.DSN; dsn != "" {
		db, err := sink.OpenPostgres(ctx, dsn)
		if err != nil {
			return fail(err)
		}
		s := sink.NewPostgresSink(db)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if n := cfg.Sinks.Neo4j; n.URI != "" {
		s, err := sink.NewNeo4jSink(ctx, sink.Neo4jConfig{
			URI:                  n.URI,
			Username:             n.Username,
			Password:             n.Password,
			Database:             n.Database,
			MaxConnectionPool:    n.MaxConnectionPool,
			ConnectionTimeoutSec: n.ConnectTimeoutSecond,
			BatchSize:            n.BatchSize,
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if m := cfg.Sinks.Minio; m.Endpoint != "" {
		s, err := sink.NewMinioSink(ctx, sink.MinioConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			UseSSL:    m.UseSSL,
			Prefix:    m.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("初始化 minio 失败: %w", err))
		}
		sinks = append(sinks, s)
	}

	for _, s := range sinks {
		logger.Info("sink enabled", zap.String("sink", s.Name()))
	}
	return sinks, nil
}
