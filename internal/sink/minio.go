package sink

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig 配置对象存储上传。
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix 是对象键前缀，为空时使用输出格式名。
	Prefix string
}

type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioSink 把每个批次写出的文件原样上传到对象存储。
type MinioSink struct {
	client objectStore
	bucket string
	prefix string
}

// NewMinioSink 创建客户端并确保 bucket 存在。
func NewMinioSink(ctx context.Context, cfg MinioConfig) (*MinioSink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint 与 bucket 不能为空")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 minio 客户端失败: %w", err)
	}
	s := &MinioSink{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioSink) ensureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查 bucket %s 失败: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("创建 bucket %s 失败: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioSink) Name() string { return "minio" }

// Publish 上传批次文件，对象键为 <prefix>/<run_id>/<文件名>。
func (s *MinioSink) Publish(ctx context.Context, b Batch) error {
	if b.Path == "" {
		return nil
	}
	key := s.ObjectKey(b)
	_, err := s.client.FPutObject(ctx, s.bucket, key, b.Path, minio.PutObjectOptions{
		ContentType: "text/plain",
		UserMetadata: map[string]string{
			"run-id":      b.RunID,
			"output-type": b.OutputType,
			"records":     strconv.Itoa(len(b.Records)),
		},
	})
	if err != nil {
		return fmt.Errorf("上传 %s 失败: %w", key, err)
	}
	return nil
}

// ObjectKey 返回批次文件的对象键。
func (s *MinioSink) ObjectKey(b Batch) string {
	prefix := s.prefix
	if prefix == "" {
		prefix = b.OutputType
	}
	return path.Join(prefix, b.RunID, filepath.Base(b.Path))
}

func (s *MinioSink) Close(context.Context) error { return nil }
