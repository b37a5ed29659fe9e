package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, io.EOF
	}
	size := int64(len(data))
	return &awss3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: &size,
	}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	out := &awss3.ListObjectsV2Output{}
	for key, data := range f.objects {
		if in.Prefix != nil && !strings.HasPrefix(key, *in.Prefix) {
			continue
		}
		size := int64(len(data))
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key), Size: &size})
	}
	return out, nil
}

func TestStoreAgainstFakeClient(t *testing.T) {
	fake := newFakeS3()
	store := &Store{client: fake, bucket: "archive"}
	ctx := context.Background()

	if _, err := store.Put(ctx, "imports/3/tok.json", strings.NewReader(`{"a":1}`), "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := store.Get(ctx, "imports/3/tok.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	data, _ := io.ReadAll(rc)
	if string(data) != `{"a":1}` {
		t.Fatalf("content mismatch: %q", data)
	}

	infos, err := store.List(ctx, "imports/3/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "imports/3/tok.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
	if infos[0].Size != int64(len(`{"a":1}`)) {
		t.Fatalf("unexpected size %d", infos[0].Size)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
