// Package storage reads and writes whole objects addressed by URI. Plain
// paths go to the local file system and s3://bucket/key URIs go to AWS S3,
// so the pipeline can take its inputs from and write its outputs to either.
package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// Store is the interface the pipeline reads inputs from and writes outputs
// through.
type Store interface {
	ReadObject(ctx context.Context, uri string) ([]byte, error)
	WriteObject(ctx context.Context, uri string, data []byte) error
	IsNotFoundError(err error) bool
}

const s3Scheme = "s3://"

// ParseS3URI splits s3://bucket/key. ok is false for anything else.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return "", "", false
	}
	rest := uri[len(s3Scheme):]
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// IsS3 reports whether uri uses the s3:// scheme.
func IsS3(uri string) bool {
	return strings.HasPrefix(uri, s3Scheme)
}

// NewS3Client returns an S3 client for region. An empty region falls back
// to the SDK's environment and shared config lookup.
func NewS3Client(region string) (s3iface.S3API, error) {
	cfg := &aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create aws session")
	}
	return s3.New(sess), nil
}

// Router dispatches each URI to the local file system or to S3. The S3
// client is created on first use so purely local runs need no AWS
// configuration.
type Router struct {
	Local FSAccess

	newS3 func() (s3iface.S3API, error)

	once  sync.Once
	s3    S3Access
	s3Err error
}

// NewRouter returns a Router whose S3 side uses region.
func NewRouter(region string) *Router {
	return &Router{newS3: func() (s3iface.S3API, error) { return NewS3Client(region) }}
}

// NewRouterWithS3 returns a Router using an existing S3 client.
func NewRouterWithS3(api s3iface.S3API) *Router {
	return &Router{newS3: func() (s3iface.S3API, error) { return api, nil }}
}

func (r *Router) remote() (S3Access, error) {
	r.once.Do(func() {
		api, err := r.newS3()
		if err != nil {
			r.s3Err = err
			return
		}
		r.s3 = MakeS3Access(api)
	})
	return r.s3, r.s3Err
}

// ReadObject reads the object at uri.
func (r *Router) ReadObject(ctx context.Context, uri string) ([]byte, error) {
	if !IsS3(uri) {
		return r.Local.ReadObject(ctx, uri)
	}
	s, err := r.remote()
	if err != nil {
		return nil, err
	}
	return s.ReadObject(ctx, uri)
}

// WriteObject writes data to uri, replacing any existing object.
func (r *Router) WriteObject(ctx context.Context, uri string, data []byte) error {
	if !IsS3(uri) {
		return r.Local.WriteObject(ctx, uri, data)
	}
	s, err := r.remote()
	if err != nil {
		return err
	}
	return s.WriteObject(ctx, uri, data)
}

// IsNotFoundError reports whether err means the object does not exist on
// either backend.
func (r *Router) IsNotFoundError(err error) bool {
	return r.Local.IsNotFoundError(err) || S3Access{}.IsNotFoundError(err)
}
