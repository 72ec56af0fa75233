// Package ordinalscom reads inscription details from an ord explorer such as ordinals.com.
package ordinalscom

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const (
	DefaultBaseURL  = "https://ordinals.com"
	DefaultTimeout  = 30 * time.Second
	DefaultRetryMax = 3

	// maxPageSize bounds the inscription page read into memory.
	maxPageSize = 4 << 20

	revealTransactionLabel = "reveal transaction"
	// revealTransactionIndex is the position of the reveal transaction <dd> on ord's inscription page.
	revealTransactionIndex = 11
)

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
}

type Client struct {
	baseURL *url.URL
	client  *retryablehttp.Client
}

func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RetryMax <= 0 {
		config.RetryMax = DefaultRetryMax
	}
	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "can't parse base url")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = config.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = config.Timeout
	client.Logger = logger.With(slogx.String("package", "ordinalscom"))

	return &Client{
		baseURL: baseURL,
		client:  client,
	}, nil
}

// GetRevealTxID returns the reveal transaction id shown on the inscription page.
func (c *Client) GetRevealTxID(ctx context.Context, inscriptionId string) (chainhash.Hash, error) {
	if inscriptionId == "" {
		return chainhash.Hash{}, errors.Wrap(errs.InvalidArgument, "inscription id is required")
	}
	page := c.baseURL.JoinPath("inscription", inscriptionId).String()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return chainhash.Hash{}, errors.Wrap(err, "can't create request")
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.client.Do(req)
	if err != nil {
		return chainhash.Hash{}, errors.Wrapf(err, "can't get %s", page)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return chainhash.Hash{}, errors.Wrapf(errs.NotFound, "inscription %s", inscriptionId)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return chainhash.Hash{}, errors.Errorf("unexpected status code %d from %s", resp.StatusCode, page)
	}

	txid, err := ParseRevealTxID(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return chainhash.Hash{}, errors.Wrapf(err, "can't parse inscription page %s", page)
	}
	return txid, nil
}

// ParseRevealTxID extracts the reveal transaction id from an inscription page.
// It reads the <dd> following <dt>reveal transaction</dt>, falling back to the 12th <dd>.
func ParseRevealTxID(r io.Reader) (chainhash.Hash, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return chainhash.Hash{}, errors.Wrap(err, "can't parse html")
	}

	var (
		labeled    string
		found      bool
		ddTexts    []string
		pendingDt  bool
		lastDtText string
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "dt":
				lastDtText = strings.ToLower(nodeText(n))
				pendingDt = true
			case "dd":
				text := nodeText(n)
				ddTexts = append(ddTexts, text)
				if pendingDt && lastDtText == revealTransactionLabel {
					labeled = text
					found = true
					return
				}
				pendingDt = false
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	candidate := labeled
	if !found {
		if len(ddTexts) <= revealTransactionIndex {
			return chainhash.Hash{}, errors.Wrapf(errs.NotFound, "reveal transaction not found, page has %d <dd> elements", len(ddTexts))
		}
		candidate = ddTexts[revealTransactionIndex]
	}

	if len(candidate) != chainhash.MaxHashStringSize {
		return chainhash.Hash{}, errors.Errorf("invalid reveal transaction id %q", candidate)
	}
	hash, err := chainhash.NewHashFromStr(candidate)
	if err != nil {
		return chainhash.Hash{}, errors.Wrapf(err, "invalid reveal transaction id %q", candidate)
	}
	return *hash, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.TrimSpace(sb.String())
}

// Make sure the slog logger satisfies the retryablehttp leveled logger.
var _ retryablehttp.LeveledLogger = (*slog.Logger)(nil)
