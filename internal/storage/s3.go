package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// S3Access implements Store on AWS S3.
type S3Access struct {
	s3Api s3iface.S3API
}

// MakeS3Access wraps an S3 client.
func MakeS3Access(s3Api s3iface.S3API) S3Access {
	return S3Access{s3Api: s3Api}
}

func (s S3Access) ReadObject(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, ok := ParseS3URI(uri)
	if !ok {
		return nil, fmt.Errorf("not an s3 uri: %q", uri)
	}

	result, err := s.s3Api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", uri)
	}
	return data, nil
}

func (s S3Access) WriteObject(ctx context.Context, uri string, data []byte) error {
	bucket, key, ok := ParseS3URI(uri)
	if !ok {
		return fmt.Errorf("not an s3 uri: %q", uri)
	}

	_, err := s.s3Api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Body:   bytes.NewReader(data),
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "write %s", uri)
}

func (s S3Access) IsNotFoundError(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}
