package stores

import (
	"context"
	"fmt"

	"github.com/Dannidrenovci/myriad-slides/config"
	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/stores/aws"
	"github.com/Dannidrenovci/myriad-slides/stores/filesystem"
	"github.com/Dannidrenovci/myriad-slides/stores/memory"
	"github.com/Dannidrenovci/myriad-slides/stores/sqlite"
	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all row store types.
type Store interface {
	core.PresentationStore
	core.SlideRowStore
	core.UserStore
}

// GetStore returns the row store selected by cfg.Type.
func GetStore(cfg config.StorageConfig) (Store, error) {
	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	var store Store
	switch cfg.Type {
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		s, err := sqlite.NewStore(cfg.DataSourceName)
		if err != nil {
			return nil, err
		}
		store = s
	case "memory", "":
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}

// GetBlobStore returns the blob store selected by cfg.Blob. The memory
// blob store shares nothing with an in-memory row store.
func GetBlobStore(ctx context.Context, cfg config.StorageConfig) (core.BlobStore, error) {
	blobField := logrus.Fields{
		"blobStorage": cfg.Blob,
	}

	var store core.BlobStore
	switch cfg.Blob {
	case "filesystem":
		blobField["basePath"] = cfg.LocalPath
		s, err := filesystem.NewStore(cfg.LocalPath)
		if err != nil {
			return nil, err
		}
		store = s
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET_NAME must be set for s3 blob storage")
		}
		blobField["bucketName"] = cfg.S3Bucket
		s, err := aws.NewStore(ctx, cfg.S3Bucket)
		if err != nil {
			return nil, err
		}
		store = s
	case "memory", "":
		store = memory.NewStore()
		blobField["blobStorage"] = "in-memory"
	default:
		return nil, fmt.Errorf("unknown blob storage %q", cfg.Blob)
	}
	logrus.WithFields(blobField).Info("Use blob storage")
	return store, nil
}
