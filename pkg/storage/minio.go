// Package storage 提供与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"os"
	"path/filepath"
	"pmc-rag-go/internal/config"
	"pmc-rag-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端。
func InitMinIO(cfg config.MinIOConfig) error {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return err
	}

	log.Info("MinIO 客户端初始化成功")
	return nil
}

// FetchIndexSnapshot 在本地索引文件缺失时，从对象存储拉取离线构建任务上传的索引快照。
// 两个文件都已存在时直接跳过。下载失败返回错误，由调用方决定是否继续（此时检索标记为不可用）。
func FetchIndexSnapshot(ctx context.Context, cfg config.MinIOConfig, vectorsPath, metaPath string) error {
	targets := map[string]string{
		cfg.VectorsObject: vectorsPath,
		cfg.MetaObject:    metaPath,
	}

	for object, local := range targets {
		if object == "" {
			continue
		}
		if _, err := os.Stat(local); err == nil {
			log.Infof("[Storage] 本地已存在 %s，跳过下载", local)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(local), os.ModePerm); err != nil {
			return err
		}
		log.Infof("[Storage] 正在从桶 '%s' 下载索引快照对象 '%s' 到 %s", cfg.BucketName, object, local)
		if err := MinioClient.FGetObject(ctx, cfg.BucketName, object, local, minio.GetObjectOptions{}); err != nil {
			return err
		}
		log.Infof("[Storage] 下载完成: %s", local)
	}
	return nil
}
