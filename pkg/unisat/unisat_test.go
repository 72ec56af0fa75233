package unisat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, textSearchPath, r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "840000.bitmap", query.Get("name"))
		assert.Equal(t, "32", query.Get("limit"))
		assert.Equal(t, "0", query.Get("start"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"msg":"ok","data":[{"inscriptionId":"abci0"},{"inscriptionId":"defi0"}]}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	items, err := client.SearchText(context.Background(), "840000.bitmap", 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"inscriptionId":"abci0"}`, string(items[0]))
}

func TestSearchTextRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":null}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, RetryCount: 1})
	items, err := client.SearchText(context.Background(), "foo", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchTextErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":-1,"msg":"rate limited"}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	_, err := client.SearchText(context.Background(), "foo", 0, 0)
	assert.ErrorContains(t, err, "rate limited")

	_, err = client.SearchText(context.Background(), "", 0, 0)
	assert.True(t, errors.Is(err, errs.InvalidArgument))
}
