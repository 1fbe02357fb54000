package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
)

// fakeS3 answers the handful of path-style S3 calls the backend makes.
type fakeS3 struct {
	mu       sync.Mutex
	bucket   string
	objects  map[string]string
	requests []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	prefix := "/" + f.bucket
	if r.URL.Path == prefix || r.URL.Path == prefix+"/" {
		w.WriteHeader(http.StatusOK)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, prefix+"/")

	switch r.Method {
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.objects[key] = "stored"
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, body)
		}
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newS3(t *testing.T) (*s3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "images", objects: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3Storage(&config.StorageConfig{
		Type:          "s3",
		Bucket:        "images",
		PublicBaseURL: "https://project.supabase.co",
		S3Endpoint:    strings.TrimPrefix(srv.URL, "http://"),
		S3AccessKey:   "access",
		S3SecretKey:   "secret",
		S3Region:      "us-east-1",
	})
	require.NoError(t, err)
	return s.(*s3Storage), fake
}

func TestS3Storage_SaveGetDelete(t *testing.T) {
	s, fake := newS3(t)
	ctx := context.Background()
	data := "png bytes"

	url, err := s.Save(ctx, "user-1/car_abc.png", strings.NewReader(data), int64(len(data)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://project.supabase.co/storage/v1/object/public/images/user-1/car_abc.png", url)
	assert.Contains(t, fake.seen(), "PUT /images/user-1/car_abc.png")

	rc, err := s.Get(ctx, "user-1/car_abc.png")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "stored", string(got))

	require.NoError(t, s.Delete(ctx, "user-1/car_abc.png"))
	assert.Contains(t, fake.seen(), "DELETE /images/user-1/car_abc.png")

	_, err = s.Get(ctx, "user-1/car_abc.png")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestS3Storage_RejectsEscapingKeys(t *testing.T) {
	s, fake := newS3(t)
	ctx := context.Background()
	before := len(fake.seen())

	for _, key := range []string{"../etc/passwd", "a/../../b", "a//b", "."} {
		_, err := s.Save(ctx, key, strings.NewReader("x"), 1, "image/png")
		assert.True(t, errors.Is(err, ErrInvalidKey), key)

		_, err = s.Get(ctx, key)
		assert.True(t, errors.Is(err, ErrInvalidKey), key)

		assert.True(t, errors.Is(s.Delete(ctx, key), ErrInvalidKey), key)
	}
	assert.Len(t, fake.seen(), before)
	assert.NoError(t, s.Delete(ctx, ""))
}
