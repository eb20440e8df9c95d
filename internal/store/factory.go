package store

import (
	"context"
	"fmt"
	"io"

	"sehri-go/internal/config"
	"sehri-go/internal/sehri"
)

// NewStoreFromConfig creates a Store based on the store config type. When
// cfg.Encrypted is set the result is an *EncryptedStore that starts locked;
// callers unlock it with the passphrase before reading.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, enc sehri.Encryptor) (sehri.Store, error) {
	var (
		s   sehri.Store
		err error
	)
	switch cfg.Type {
	case "memory":
		s = NewMemoryStore()
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem store requires dir to be set")
		}
		s, err = NewFileSystemStore(cfg.Dir)
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite store requires sqlite_path to be set")
		}
		s, err = NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		s, err = ConnectPostgres(ctx, cfg.PostgresDSN)
	case "s3":
		client, cerr := NewS3Client(ctx, S3Options{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint})
		if cerr != nil {
			return nil, cerr
		}
		s = NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Encrypted {
		if enc == nil {
			Close(s)
			return nil, fmt.Errorf("encrypted store requires an encryptor")
		}
		return NewEncryptedStore(s, enc, nil), nil
	}
	return s, nil
}

// Close releases s if it holds a connection.
func Close(s sehri.Store) error {
	if e, ok := s.(*EncryptedStore); ok {
		return Close(e.inner)
	}
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
