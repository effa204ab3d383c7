// Package blob selects and constructs the object store used for report
// archives. Callers depend on blob.Store; only this package imports the
// backend implementations.
package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"routingcore/internal/blob/core"
	"routingcore/internal/infra/blob/fs"
	"routingcore/internal/infra/blob/memory"
	"routingcore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config parameterizes the S3 backend.
	S3Config = s3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
	ErrInvalidKey  = core.ErrInvalidKey
)

// Config selects a backend. An empty Driver selects the filesystem.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// ConfigFromEnv reads the backend selection from the environment.
//
//	ROUTINGCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	ROUTINGCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	ROUTINGCORE_BLOB_S3_BUCKET, _REGION, _PREFIX, _ENDPOINT, _PATH_STYLE
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)
func ConfigFromEnv() Config {
	return Config{
		Driver: Driver(os.Getenv("ROUTINGCORE_BLOB_DRIVER")),
		FSRoot: os.Getenv("ROUTINGCORE_BLOB_FS_ROOT"),
		S3: S3Config{
			Bucket:    os.Getenv("ROUTINGCORE_BLOB_S3_BUCKET"),
			Region:    os.Getenv("ROUTINGCORE_BLOB_S3_REGION"),
			Prefix:    os.Getenv("ROUTINGCORE_BLOB_S3_PREFIX"),
			Endpoint:  os.Getenv("ROUTINGCORE_BLOB_S3_ENDPOINT"),
			PathStyle: strings.EqualFold(os.Getenv("ROUTINGCORE_BLOB_S3_PATH_STYLE"), "true"),
		},
	}
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 blob driver requires a bucket (ROUTINGCORE_BLOB_S3_BUCKET)")
		}
		return s3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewMemory returns an in-memory Store.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests returns an S3 Store backed by an in-process fake API.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
