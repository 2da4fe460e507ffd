package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/h2non/filetype"
	cfg "github.com/maheshrc27/brandpost/configs"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrStorageUnavailable = errors.New("object storage is not configured")

// ObjectStorage persists media bytes and hands back durable references.
type ObjectStorage interface {
	Put(ctx context.Context, data []byte, contentType, ownerKey string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	DeleteMany(ctx context.Context, refs []string) error
}

// R2Service stores objects in a Cloudflare R2 bucket through the S3 API.
// References are public URLs under R2.PublicURL. Without credentials it
// still serves Get for plain http(s) references.
type R2Service struct {
	config cfg.Config
	client *s3.Client
	http   *http.Client
}

func NewR2Service(c cfg.Config) *R2Service {
	r := &R2Service{
		config: c,
		http:   &http.Client{Timeout: c.StorageTimeout},
	}
	if !c.StorageConfigured() {
		slog.Warn("R2 storage is not configured, media will be kept inline")
		return r
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Error("unable to load R2 config", "error", err)
		return r
	}

	r.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})
	return r
}

func (r *R2Service) configured() bool {
	return r.client != nil && r.config.R2.PublicURL != ""
}

func (r *R2Service) Put(ctx context.Context, data []byte, contentType, ownerKey string) (string, error) {
	if !r.configured() {
		return "", ErrStorageUnavailable
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	key := fmt.Sprintf("%s/%s", strings.Trim(ownerKey, "/"), id)
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		key += "." + kind.Extension
		if contentType == "" {
			contentType = kind.MIME.Value
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.StorageTimeout)
	defer cancel()

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return r.config.R2.PublicURL + "/" + key, nil
}

func (r *R2Service) Get(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.StorageTimeout)
	defer cancel()

	if key, ok := r.keyFor(ref); ok && r.client != nil {
		out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.config.R2.BucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	}

	return r.download(ctx, ref)
}

func (r *R2Service) Delete(ctx context.Context, ref string) error {
	key, ok := r.keyFor(ref)
	if !ok || r.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.StorageTimeout)
	defer cancel()

	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *R2Service) DeleteMany(ctx context.Context, refs []string) error {
	if r.client == nil {
		return nil
	}

	var objects []types.ObjectIdentifier
	for _, ref := range refs {
		if key, ok := r.keyFor(ref); ok {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}
	}
	if len(objects) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.StorageTimeout)
	defer cancel()

	_, err := r.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// keyFor maps a reference under the public URL back to its bucket key.
func (r *R2Service) keyFor(ref string) (string, bool) {
	prefix := r.config.R2.PublicURL + "/"
	if r.config.R2.PublicURL == "" || !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, prefix), true
}

func (r *R2Service) download(ctx context.Context, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return nil, fmt.Errorf("unsupported media reference %q", ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", ref, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
