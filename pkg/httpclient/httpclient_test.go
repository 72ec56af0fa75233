package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/blocks/tip/height":
			assert.Equal(t, "gaze", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("840000"))
		case "/api/fees":
			assert.Equal(t, "1", r.URL.Query().Get("v"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"fastestFee":12}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New(server.URL+"/api", Config{Headers: map[string]string{"User-Agent": "gaze"}})
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := client.Get(ctx, "/blocks/tip/height", RequestOptions{})
	require.NoError(t, err)
	require.NoError(t, resp.Ok())
	var height uint64
	require.NoError(t, resp.UnmarshalBody(&height))
	assert.Equal(t, uint64(840000), height)

	resp, err = client.Get(ctx, "/fees", RequestOptions{Query: map[string][]string{"v": {"1"}}})
	require.NoError(t, err)
	var fees struct {
		FastestFee int `json:"fastestFee"`
	}
	require.NoError(t, resp.UnmarshalBody(&fees))
	assert.Equal(t, 12, fees.FastestFee)

	resp, err = client.Get(ctx, "/missing", RequestOptions{})
	require.NoError(t, err)
	assert.True(t, errors.Is(resp.Ok(), errs.NotFound))
}

func TestNewInvalidBaseURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}

func TestClientCanceledContext(t *testing.T) {
	client, err := New("http://127.0.0.1:1")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Get(ctx, "/", RequestOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
