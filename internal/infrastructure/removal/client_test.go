package removal

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/backdrop/internal/config"
	"github.com/yokitheyo/backdrop/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	profile := config.RemovalProfile{
		Mode:    config.RemovalModeDemo,
		URL:     server.URL + "/results?mode=fg-image-shadow",
		Headers: map[string]string{"A4A-CLIENT-APP-ID": "sample"},
	}
	return NewClient(profile, 5*time.Second, server.Client())
}

func TestClient_RemoveBackground_Success(t *testing.T) {
	t.Parallel()

	cutout := []byte("\x89PNG cut-out bytes")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "fg-image-shadow", r.URL.Query().Get("mode"))
		assert.Equal(t, "sample", r.Header.Get("A4A-CLIENT-APP-ID"))

		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		sent, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "source-jpeg", string(sent))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"status":{"code":"ok","message":"Success."},"entities":[{"kind":"image","name":"fg","image":"` +
			base64.StdEncoding.EncodeToString(cutout) + `"}]}]}`))
	})

	got, err := client.RemoveBackground(context.Background(), []byte("source-jpeg"))
	require.NoError(t, err)
	assert.Equal(t, cutout, got)
}

func TestClient_RemoveBackground_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   domain.RemovalErrorKind
		wantStatus int
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantKind: domain.RemovalStatus, wantStatus: 429},
		{name: "server error", status: http.StatusInternalServerError, wantKind: domain.RemovalStatus, wantStatus: 500},
		{name: "not json", status: http.StatusOK, body: `<html>oops</html>`, wantKind: domain.RemovalMalformed},
		{name: "empty object", status: http.StatusOK, body: `{}`, wantKind: domain.RemovalMalformed},
		{name: "empty results", status: http.StatusOK, body: `{"results":[]}`, wantKind: domain.RemovalMalformed},
		{name: "empty entities", status: http.StatusOK, body: `{"results":[{"entities":[]}]}`, wantKind: domain.RemovalMalformed},
		{name: "missing image key", status: http.StatusOK, body: `{"results":[{"entities":[{"kind":"image"}]}]}`, wantKind: domain.RemovalMalformed},
		{name: "image not a string", status: http.StatusOK, body: `{"results":[{"entities":[{"image":42}]}]}`, wantKind: domain.RemovalMalformed},
		{name: "invalid base64", status: http.StatusOK, body: `{"results":[{"entities":[{"image":"%%%not-base64%%%"}]}]}`, wantKind: domain.RemovalInvalidEncoding},
		{name: "remote failure", status: http.StatusOK, body: `{"results":[{"status":{"code":"failure","message":"Unsupported image."},"entities":[]}]}`, wantKind: domain.RemovalRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.RemoveBackground(context.Background(), []byte("img"))
			require.Error(t, err)

			var removalErr *domain.RemovalError
			require.True(t, errors.As(err, &removalErr))
			assert.Equal(t, tt.wantKind, removalErr.Kind)
			assert.Equal(t, tt.wantStatus, removalErr.Status)
			assert.NotContains(t, err.Error(), "slow down")
		})
	}
}

func TestClient_RemoveBackground_Transport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	profile := config.RemovalProfile{Mode: config.RemovalModeDemo, URL: server.URL}
	server.Close()

	client := NewClient(profile, time.Second, nil)
	_, err := client.RemoveBackground(context.Background(), []byte("img"))

	var removalErr *domain.RemovalError
	require.True(t, errors.As(err, &removalErr))
	assert.Equal(t, domain.RemovalTransport, removalErr.Kind)
}

func TestExtractImage(t *testing.T) {
	got, err := extractImage([]byte(`{"results":[{"entities":[{"image":"Zmlyc3Q="},{"image":"c2Vjb25k"}]},{"entities":[{"image":"dGhpcmQ="}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Zmlyc3Q=", got)
}
