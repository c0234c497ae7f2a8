package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"harvester/internal/resilience/circuitbreaker"
	"harvester/internal/resilience/retry"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// S3Store is a Store backed by Amazon S3.
type S3Store struct {
	client         s3API
	bucket         string
	presignClient  *s3.PresignClient
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewS3Store builds an object store adapter for the given bucket.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{
		client:         client,
		bucket:         bucket,
		presignClient:  s3.NewPresignClient(client),
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("s3")),
		retryConfig:    retry.DefaultConfig(),
	}
}

func (s *S3Store) call(ctx context.Context, fn func() error) error {
	return retry.WithBackoff(ctx, s.retryConfig, func() error {
		_, err := s.circuitBreaker.Execute(func() (any, error) {
			return nil, fn()
		})
		return err
	})
}

func (s *S3Store) PutBytes(ctx context.Context, key string, body []byte, contentType string) error {
	return s.call(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return fmt.Errorf("s3: put object %q: %w", key, err)
		}
		return nil
	})
}

func (s *S3Store) PutReader(ctx context.Context, key string, body io.Reader, contentType string) error {
	uploader := manager.NewUploader(&uploaderAdapter{s.client})
	return s.call(ctx, func() error {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        body,
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return fmt.Errorf("s3: upload object %q: %w", key, err)
		}
		return nil
	})
}

// uploaderAdapter satisfies manager.UploadAPIClient with our narrowed
// interface; it only needs PutObject for the non-multipart path our
// payload sizes (article JSON/text/PDF) always take.
type uploaderAdapter struct {
	s3API
}

func (s *S3Store) GetBytes(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.call(ctx, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("s3: get object %q: %w", key, err)
		}
		defer out.Body.Close()
		body, err = io.ReadAll(out.Body)
		if err != nil {
			return fmt.Errorf("s3: read object %q: %w", key, err)
		}
		return nil
	})
	return body, err
}

func (s *S3Store) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	var body []byte
	rng := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	err := s.call(ctx, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Range:  aws.String(rng),
		})
		if err != nil {
			return fmt.Errorf("s3: get object range %q: %w", key, err)
		}
		defer out.Body.Close()
		body, err = io.ReadAll(out.Body)
		if err != nil {
			return fmt.Errorf("s3: read object range %q: %w", key, err)
		}
		return nil
	})
	return body, err
}

func (s *S3Store) Head(ctx context.Context, key string) (ObjectInfo, error) {
	var info ObjectInfo
	err := s.call(ctx, func() error {
		out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("s3: head object %q: %w", key, err)
		}
		info = ObjectInfo{
			Key:         key,
			Size:        aws.ToInt64(out.ContentLength),
			ContentType: aws.ToString(out.ContentType),
		}
		if out.LastModified != nil {
			info.LastModified = *out.LastModified
		}
		return nil
	})
	return info, err
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	return s.call(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("s3: delete object %q: %w", key, err)
		}
		return nil
	})
}

// DeleteBatch deletes in chunks of 1000, mirroring the Python original's
// delete_objects_batch chunking (core/s3_utils.py).
func (s *S3Store) DeleteBatch(ctx context.Context, keys []string) error {
	const maxBatch = 1000
	for start := 0; start < len(keys); start += maxBatch {
		end := min(start+maxBatch, len(keys))
		chunk := keys[start:end]

		err := s.call(ctx, func() error {
			objects := make([]s3types.ObjectIdentifier, len(chunk))
			for i, k := range chunk {
				objects[i] = s3types.ObjectIdentifier{Key: aws.String(k)}
			}
			_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &s3types.Delete{Objects: objects},
			})
			if err != nil {
				return fmt.Errorf("s3: delete objects batch: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *S3Store) ListPrefix(ctx context.Context, prefix string, yield func(ObjectInfo) error) error {
	var continuationToken *string
	for {
		var out *s3.ListObjectsV2Output
		err := s.call(ctx, func() error {
			var err error
			out, err = s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(s.bucket),
				Prefix:            aws.String(prefix),
				ContinuationToken: continuationToken,
			})
			if err != nil {
				return fmt.Errorf("s3: list objects %q: %w", prefix, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, obj := range out.Contents {
			info := ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			if err := yield(info); err != nil {
				return err
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			return nil
		}
		continuationToken = out.NextContinuationToken
	}
}

func (s *S3Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	return s.call(ctx, func() error {
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(dstKey),
			CopySource: aws.String(s.bucket + "/" + srcKey),
		})
		if err != nil {
			return fmt.Errorf("s3: copy object %q -> %q: %w", srcKey, dstKey, err)
		}
		return nil
	})
}

func (s *S3Store) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3: presign get %q: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3: presign put %q: %w", key, err)
	}
	return req.URL, nil
}
