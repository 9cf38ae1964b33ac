package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/itrek/trekd/common"
	"github.com/itrek/trekd/params"
)

// ImageStore keeps uploaded images and returns a reference to put in their place.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (ref string, err error)
	// Delete removes an image by the reference Put returned.
	Delete(ctx context.Context, ref string) error
}

// NewImageStore returns an S3 store if a bucket is configured, else a local disk store.
func NewImageStore(config *params.ImageConfig) (ImageStore, error) {
	if config.S3Bucket != "" {
		var cfg []*aws.Config
		if config.S3Region != "" {
			cfg = append(cfg, aws.NewConfig().WithRegion(config.S3Region))
		}
		// The session picks up credentials from the environment.
		sess, err := session.NewSession(cfg...)
		if err != nil {
			return nil, err
		}
		return &s3Images{
			bucket:  config.S3Bucket,
			svc:     s3.New(sess),
			timeout: 10 * time.Second,
			logger:  slog.With("images", "s3"),
		}, nil
	}
	if err := os.MkdirAll(config.Dir, 0770); err != nil {
		return nil, err
	}
	return &diskImages{dir: config.Dir}, nil
}

type s3Images struct {
	bucket  string
	svc     *s3.S3
	timeout time.Duration
	logger  *slog.Logger
}

func (s *s3Images) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == request.CanceledErrorCode {
			s.logger.Error("AWS S3 upload canceled due to timeout", "error", err)
		} else {
			s.logger.Error("Failed to upload object", "error", err)
		}
		return "", err
	}
	s.logger.Info("Uploaded image to AWS S3", "bucket", s.bucket, "key", key)
	return s.prefix() + key, nil
}

func (s *s3Images) prefix() string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/", s.bucket)
}

func (s *s3Images) Delete(ctx context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, s.prefix())
	if !ok {
		return fmt.Errorf("not an image of bucket %s: %s", s.bucket, ref)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// diskImages stores images under dir. References are paths served at /images/.
type diskImages struct {
	dir string
}

func (d *diskImages) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	target := filepath.Join(d.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0770); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0660); err != nil {
		return "", err
	}
	return "/images/" + key, nil
}

func (d *diskImages) Delete(ctx context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, "/images/")
	if !ok || strings.Contains(key, "..") {
		return fmt.Errorf("not a stored image: %s", ref)
	}
	return os.Remove(filepath.Join(d.dir, filepath.FromSlash(key)))
}

// storeImage stores a base64-encoded image under prefix and returns its reference.
// Anything that does not decode as an image is kept as is, as a reference,
// except data URIs, which are rejected.
func (a *App) storeImage(ctx context.Context, prefix, image string) (string, error) {
	data, ext, err := common.DecodeB64Image(image)
	if err != nil {
		if strings.HasPrefix(image, "data:") {
			return "", invalidf("image: %v", err)
		}
		return image, nil
	}
	if max := a.Config.Image.MaxBytes; max > 0 && int64(len(data)) > max {
		return "", invalidf("image too large: %d bytes", len(data))
	}
	key := fmt.Sprintf("%s/%s.%s", prefix, uuid.NewString()[:12], ext)
	return a.Images.Put(ctx, key, data, common.ContentTypeForExt(ext))
}

// dropImages deletes images stored for a write that did not happen.
func (a *App) dropImages(refs []string) {
	for _, ref := range refs {
		if err := a.Images.Delete(context.Background(), ref); err != nil {
			slog.Warn("Failed to delete orphaned image", "ref", ref, "error", err)
		}
	}
}
