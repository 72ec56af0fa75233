// Package unisat is a client of the unisat.io inscription search API.
package unisat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL    = "https://unisat.io"
	DefaultLimit      = 32
	DefaultTimeout    = 15 * time.Second
	DefaultRetryCount = 2

	textSearchPath = "/api/query/inscriptions/category/text/search/v2"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RetryCount is the number of retries on network errors, 429 and 5xx. Zero means default, negative disables retries.
	RetryCount int
	Debug      bool
}

type Client struct {
	client *resty.Client
}

// SearchResponse is the envelope of unisat query endpoints. Items are kept as returned.
type SearchResponse struct {
	Code int               `json:"code"`
	Msg  string            `json:"msg"`
	Data []json.RawMessage `json:"data"`
}

func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	switch {
	case config.RetryCount == 0:
		config.RetryCount = DefaultRetryCount
	case config.RetryCount < 0:
		config.RetryCount = 0
	}
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json").
		SetDebug(config.Debug).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{client: client}
}

// SearchText searches text inscriptions by name. limit defaults to 32.
func (c *Client) SearchText(ctx context.Context, name string, start, limit int) ([]json.RawMessage, error) {
	if name == "" {
		return nil, errors.Wrap(errs.InvalidArgument, "name is required")
	}
	if start < 0 {
		return nil, errors.Wrap(errs.InvalidArgument, "start must be non-negative")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var result SearchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"name":  name,
			"limit": strconv.Itoa(limit),
			"start": strconv.Itoa(start),
		}).
		SetResult(&result).
		Get(textSearchPath)
	if err != nil {
		return nil, errors.Wrap(err, "can't search text inscriptions")
	}
	if resp.IsError() {
		return nil, errors.Errorf("unisat returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if result.Code != 0 {
		return nil, errors.Errorf("unisat returned error code %d: %s", result.Code, result.Msg)
	}
	if result.Data == nil {
		return []json.RawMessage{}, nil
	}
	return result.Data, nil
}
