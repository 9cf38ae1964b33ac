package params

import (
	"os"
	"path/filepath"
)

// ImageConfig says where point-of-interest images go.
// S3 is used when a bucket is configured, the local Dir otherwise.
type ImageConfig struct {
	S3Bucket string
	S3Region string
	Dir      string

	// MaxBytes caps a decoded upload.
	MaxBytes int64
}

func DefaultImageConfig() *ImageConfig {
	return &ImageConfig{
		S3Bucket: os.Getenv("AWS_BUCKETNAME"),
		S3Region: os.Getenv("AWS_REGION"),
		Dir:      filepath.Join(DefaultDatadirRoot, ImagesSubdir),
		MaxBytes: 5 << 20,
	}
}
