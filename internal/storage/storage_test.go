package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// fakeS3 keeps objects in memory. Unimplemented S3API methods panic via the
// nil embedded interface.
type fakeS3 struct {
	s3iface.S3API

	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantOK     bool
	}{
		{"s3://chips/2024/poti.tif", "chips", "2024/poti.tif", true},
		{"s3://chips/a", "chips", "a", true},
		{"s3://chips/", "", "", false},
		{"s3://chips", "", "", false},
		{"s3:///key", "", "", false},
		{"/data/poti.tif", "", "", false},
		{"S3://chips/a", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			b, k, ok := ParseS3URI(tt.uri)
			if b != tt.wantBucket || k != tt.wantKey || ok != tt.wantOK {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)", b, k, ok, tt.wantBucket, tt.wantKey, tt.wantOK)
			}
		})
	}
}

func TestFSAccess_RoundTrip(t *testing.T) {
	var fs FSAccess
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.tif")

	if err := fs.WriteObject(context.Background(), path, []byte("payload")); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	got, err := fs.ReadObject(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadObject failed: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q, want payload", got)
	}

	_, err = fs.ReadObject(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !fs.IsNotFoundError(err) {
		t.Errorf("missing file should be a not-found error: %v", err)
	}
}

func TestFSAccess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var fs FSAccess
	if err := fs.WriteObject(ctx, filepath.Join(t.TempDir(), "x"), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestS3Access_RoundTrip(t *testing.T) {
	api := newFakeS3()
	s := MakeS3Access(api)

	if err := s.WriteObject(context.Background(), "s3://masks/out/poti.tif", []byte("tiff")); err != nil {
		t.Fatalf("WriteObject failed: %v", err)
	}
	if _, ok := api.objects["masks/out/poti.tif"]; !ok {
		t.Fatalf("object not stored under bucket/key: %v", api.objects)
	}

	got, err := s.ReadObject(context.Background(), "s3://masks/out/poti.tif")
	if err != nil {
		t.Fatalf("ReadObject failed: %v", err)
	}
	if string(got) != "tiff" {
		t.Errorf("got %q, want tiff", got)
	}

	_, err = s.ReadObject(context.Background(), "s3://masks/none.tif")
	if !s.IsNotFoundError(err) {
		t.Errorf("missing key should be a not-found error: %v", err)
	}

	if _, err := s.ReadObject(context.Background(), "/local/path"); err == nil {
		t.Error("expected error for a non-s3 uri")
	}
}

func TestRouter_Dispatch(t *testing.T) {
	api := newFakeS3()
	r := NewRouterWithS3(api)
	local := filepath.Join(t.TempDir(), "local.bin")

	if err := r.WriteObject(context.Background(), local, []byte("L")); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteObject(context.Background(), "s3://b/remote.bin", []byte("R")); err != nil {
		t.Fatal(err)
	}
	if len(api.objects) != 1 {
		t.Errorf("S3 objects: got %d, want 1", len(api.objects))
	}

	for uri, want := range map[string]string{local: "L", "s3://b/remote.bin": "R"} {
		got, err := r.ReadObject(context.Background(), uri)
		if err != nil {
			t.Fatalf("%s: %v", uri, err)
		}
		if string(got) != want {
			t.Errorf("%s: got %q, want %q", uri, got, want)
		}
	}

	_, err := r.ReadObject(context.Background(), "s3://b/missing")
	if !r.IsNotFoundError(err) {
		t.Errorf("Router should recognise S3 not-found: %v", err)
	}
}

func TestRouter_S3ClientError(t *testing.T) {
	r := &Router{newS3: func() (s3iface.S3API, error) { return nil, errors.New("no credentials") }}

	if _, err := r.ReadObject(context.Background(), "s3://b/k"); err == nil {
		t.Error("expected error when the S3 client cannot be created")
	}
	// Local paths keep working.
	path := filepath.Join(t.TempDir(), "ok")
	if err := r.WriteObject(context.Background(), path, []byte("x")); err != nil {
		t.Errorf("local write failed: %v", err)
	}
}
