package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/atlas/internal/config"
	"github.com/hpungsan/atlas/internal/errors"
	"github.com/hpungsan/atlas/internal/memory"
	"github.com/hpungsan/atlas/internal/transfer"
)

// fakeS3 is an in-memory path-style S3 subset: PUT, GET and ListObjectsV2.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return respond(http.StatusInternalServerError, "<Error><Code>InternalError</Code></Error>"), nil
	}

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k]))
		}
		b.WriteString("</ListBucketResult>")
		return respond(http.StatusOK, b.String()), nil
	case req.Method == http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body
		f.types[key] = req.Header.Get("Content-Type")
		return respond(http.StatusOK, ""), nil
	case req.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, "<Error><Code>NoSuchKey</Code></Error>"), nil
		}
		resp := respond(http.StatusOK, string(body))
		resp.Header.Set("Content-Type", f.types[key])
		return resp, nil
	}
	return respond(http.StatusNotImplemented, ""), nil
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: int64(len(body)),
		Header:        http.Header{"Content-Type": {"application/xml"}},
	}
}

func newTestBucket(t *testing.T, fake *fakeS3) *Bucket {
	t.Helper()
	b, err := New(context.Background(), Config{
		Bucket:          "atlas-test",
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		o.RetryMaxAttempts = 1
	})
	require.NoError(t, err)
	return b
}

func testData() transfer.Data {
	return transfer.Data{
		Memories: []memory.Memory{{Core: memory.Core{
			ID: "m1", Lat: 1, Lng: 2, Title: "Lake", Date: "2024-05-05",
			CreatedAt: time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC),
		}}},
		Groups: []memory.Group{{ID: "g1", Name: "Summer"}},
	}
}

func TestUploadListDownload(t *testing.T) {
	fake := newFakeS3()
	b := newTestBucket(t, fake)
	ctx := context.Background()

	first := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	res, err := b.Upload(ctx, testData(), first)
	require.NoError(t, err)
	require.Equal(t, "atlas/memory-atlas-backup-20240701T090000.000Z.json", res.Key)
	require.Equal(t, 1, res.Memories)
	require.Equal(t, 1, res.Groups)
	require.Equal(t, "application/json", fake.types[res.Key])
	require.Len(t, fake.objects[res.Key], res.Bytes)

	_, err = b.Upload(ctx, transfer.Data{}, first.Add(time.Hour))
	require.NoError(t, err)

	objects, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.Equal(t, ObjectKey(first.Add(time.Hour)), objects[0].Key, "newest first")

	decoded, err := b.Download(ctx, strings.TrimPrefix(res.Key, KeyPrefix))
	require.NoError(t, err)
	require.Equal(t, testData().Memories, decoded.Memories)
	require.Equal(t, testData().Groups, decoded.Groups)
}

func TestBackendFailures(t *testing.T) {
	fake := newFakeS3()
	b := newTestBucket(t, fake)
	ctx := context.Background()

	_, err := b.Download(ctx, "missing.json")
	require.True(t, errors.Is(err, errors.ErrStorageUnavailable))

	fake.fail = true
	_, err = b.Upload(ctx, testData(), time.Now())
	require.True(t, errors.Is(err, errors.ErrStorageUnavailable))

	_, err = b.List(ctx)
	require.True(t, errors.Is(err, errors.ErrStorageUnavailable))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), ConfigFrom(config.DefaultConfig()))
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BackupBucket = "b"
	cfg.BackupEndpoint = "http://localhost:9000"
	cfg.BackupPathStyle = true

	got := ConfigFrom(cfg)
	require.Equal(t, Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true}, got)
}
