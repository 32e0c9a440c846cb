package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string][]byte
}

func (f *fakeS3) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Method == http.MethodPut {
		body, _ := io.ReadAll(r.Body)
		f.bodies[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newTestStorage(t *testing.T, endpoint string) *S3ObjectStorage {
	t.Helper()
	storage, err := NewS3ObjectStorage(context.Background(), config.StorageConfig{
		Endpoint:  endpoint,
		Region:    "us-east-1",
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "omc-bdc-price",
		KeyPrefix: "omc-bdc/docs/",
	})
	require.NoError(t, err)
	return storage
}

func TestS3ObjectStorage_UploadAndDelete(t *testing.T) {
	fake := &fakeS3{bodies: map[string][]byte{}}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer srv.Close()

	storage := newTestStorage(t, srv.URL)

	obj, err := storage.Upload(context.Background(), "Pump.JPG", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "omc-bdc/docs/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".jpg"))
	assert.Equal(t, srv.URL+"/omc-bdc-price/"+obj.Key, obj.URL)

	require.NoError(t, storage.Delete(context.Background(), obj.Key))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.requests, 2)
	assert.Equal(t, "PUT /omc-bdc-price/"+obj.Key, fake.requests[0])
	assert.Equal(t, "DELETE /omc-bdc-price/"+obj.Key, fake.requests[1])
}

func TestS3ObjectStorage_UploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	storage := newTestStorage(t, srv.URL)
	_, err := storage.Upload(context.Background(), "a.png", "image/png", []byte("x"))
	assert.Error(t, err)
}

func TestS3ObjectStorage_Presign(t *testing.T) {
	storage := newTestStorage(t, "http://storage.local:9000")

	upload, err := storage.Presign(context.Background(), "receipt.png", time.Hour)
	require.NoError(t, err)

	parsed, err := url.Parse(upload.UploadURL)
	require.NoError(t, err)
	assert.Equal(t, "storage.local:9000", parsed.Host)
	assert.Equal(t, "/omc-bdc-price/"+upload.Key, parsed.Path)
	assert.Equal(t, "3600", parsed.Query().Get("X-Amz-Expires"))
	assert.Equal(t, "receipt.png", upload.Name)
	assert.Equal(t, "http://storage.local:9000/omc-bdc-price/"+upload.Key, upload.PublicURL)
}
