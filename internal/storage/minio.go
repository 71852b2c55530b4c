package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resumate/internal/config"
)

// Documents 把用户上传的源文档存放在私有 bucket 中。
// 读写走内部 endpoint；下载链接用公共 endpoint 签发，浏览器才能访问。
type Documents struct {
	store  *minio.Client
	signer *minio.Client
	bucket string
}

var bucketLookups = map[string]minio.BucketLookupType{
	"":     minio.BucketLookupAuto,
	"auto": minio.BucketLookupAuto,
	"dns":  minio.BucketLookupDNS,
	"path": minio.BucketLookupPath,
}

func parseBucketLookup(raw string) (minio.BucketLookupType, error) {
	lookup, ok := bucketLookups[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", raw)
	}
	return lookup, nil
}

// publicTarget 返回签名用的 host；未配置公共 endpoint 时与内部一致。
func publicTarget(cfg config.MinIOConfig) (host string, secure bool, err error) {
	raw := strings.TrimSpace(cfg.PublicEndpoint)
	if raw == "" {
		return cfg.Endpoint, cfg.UseSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse minio public endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("minio public endpoint %q has no host", raw)
	}
	return u.Host, u.Scheme == "https", nil
}

// NewDocuments 连接 MinIO 并确认 bucket 可用，按配置自动创建。
func NewDocuments(ctx context.Context, cfg config.MinIOConfig) (*Documents, error) {
	lookup, err := parseBucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}
	publicHost, publicSecure, err := publicTarget(cfg)
	if err != nil {
		return nil, err
	}

	open := func(host string, secure bool) (*minio.Client, error) {
		return minio.New(host, &minio.Options{
			Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			Secure:       secure,
			Region:       cfg.Region,
			BucketLookup: lookup,
		})
	}
	store, err := open(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("open minio %s: %w", cfg.Endpoint, err)
	}
	signer, err := open(publicHost, publicSecure)
	if err != nil {
		return nil, fmt.Errorf("open minio %s: %w", publicHost, err)
	}

	d := &Documents{store: store, signer: signer, bucket: cfg.Bucket}
	if err := d.ensureBucket(ctx, cfg.AutoCreateBucket, cfg.Region); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Documents) ensureBucket(ctx context.Context, create bool, region string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := d.store.BucketExists(ctx, d.bucket)
	switch {
	case err != nil:
		return fmt.Errorf("check bucket %q: %w", d.bucket, err)
	case exists:
		return nil
	case !create:
		return fmt.Errorf("bucket %q missing and auto create is off", d.bucket)
	}
	if err := d.store.MakeBucket(ctx, d.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", d.bucket, err)
	}
	return nil
}

// Put 写入一个文档对象。
func (d *Documents) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := d.store.PutObject(ctx, d.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put document %q: %w", key, err)
	}
	return nil
}

// DownloadURL 签发限时下载链接，下载时使用上传时的文件名。
func (d *Documents) DownloadURL(ctx context.Context, key, fileName string, ttl time.Duration) (string, error) {
	params := url.Values{}
	if fileName != "" {
		params.Set("response-content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	}
	u, err := d.signer.PresignedGetObject(ctx, d.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign document %q: %w", key, err)
	}
	return u.String(), nil
}

// Remove 删除文档对象；已经不存在时不报错。
func (d *Documents) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	err := d.store.RemoveObject(ctx, d.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !IsNoSuchKey(err) {
		return fmt.Errorf("remove document %q: %w", key, err)
	}
	return nil
}
