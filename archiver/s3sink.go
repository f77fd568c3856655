package archiver

import (
	"bytes"
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awshttp "github.com/aws/smithy-go/transport/http"
)

const (
	ContentTypeJSON = "application/json"

	multipartPartSize = 5 * 1024 * 1024
	multipartWorkers  = 4
)

// Sink stores a complete object under key, replacing any existing object.
type Sink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// uploadAPI is the part of manager.Uploader the sink needs.
type uploadAPI interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Sink struct {
	Bucket string
	Up     uploadAPI
}

// NewS3Sink wires a multipart uploader over client. Bodies at or below the
// part size go out as a single PutObject; larger ones are split and a failed
// multipart upload is aborted, so readers never see a partial object.
func NewS3Sink(client *s3.Client, bucket string) *S3Sink {
	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartPartSize
		u.Concurrency = multipartWorkers
		u.LeavePartsOnError = false
	})
	return &S3Sink{Bucket: bucket, Up: up}
}

func (s *S3Sink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.Up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err == nil {
		return nil
	}
	ue := &UploadError{Key: key, Err: err}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		ue.StatusCode = re.HTTPStatusCode()
	}
	return ue
}
