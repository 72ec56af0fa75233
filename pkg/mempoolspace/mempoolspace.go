// Package mempoolspace is a client of the mempool.space REST API.
package mempoolspace

import (
	"bytes"
	"context"
	"encoding/hex"
	"path"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/pkg/httpclient"
)

const DefaultBaseURL = "https://mempool.space"

type Config struct {
	// BaseURL is the mempool.space host without the api path. Default is https://mempool.space.
	BaseURL string
	Network common.Network
	Debug   bool
}

type Client struct {
	client *httpclient.Client
}

func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Network == "" {
		config.Network = common.NetworkMainnet
	}
	if !config.Network.IsSupported() {
		return nil, errors.Wrapf(errs.Unsupported, "network %q", config.Network)
	}
	client, err := httpclient.New(config.BaseURL+config.Network.MempoolSpacePathPrefix(), httpclient.Config{
		Debug: config.Debug,
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't create http client")
	}
	return &Client{client: client}, nil
}

func (c *Client) get(ctx context.Context, apiPath string, out any) error {
	resp, err := c.client.Get(ctx, apiPath, httpclient.RequestOptions{})
	if err != nil {
		return errors.Wrapf(err, "can't get %s", apiPath)
	}
	if err := resp.Ok(); err != nil {
		return errors.WithStack(err)
	}
	if err := resp.UnmarshalBody(out); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// GetBlockTipHeight returns the height of the best block.
func (c *Client) GetBlockTipHeight(ctx context.Context) (uint64, error) {
	resp, err := c.client.Get(ctx, "/blocks/tip/height", httpclient.RequestOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "can't get tip height")
	}
	if err := resp.Ok(); err != nil {
		return 0, errors.WithStack(err)
	}
	text, err := resp.Text()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	height, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid tip height %q", text)
	}
	return height, nil
}

func (c *Client) GetRecommendedFees(ctx context.Context) (*RecommendedFees, error) {
	var fees RecommendedFees
	if err := c.get(ctx, "/v1/fees/recommended", &fees); err != nil {
		return nil, errors.Wrap(err, "can't get recommended fees")
	}
	return &fees, nil
}

func (c *Client) GetTransaction(ctx context.Context, txHash chainhash.Hash) (*Transaction, error) {
	var tx Transaction
	if err := c.get(ctx, path.Join("/tx", txHash.String()), &tx); err != nil {
		return nil, errors.Wrap(err, "can't get transaction")
	}
	return &tx, nil
}

// GetCPFP returns the CPFP package info of an unconfirmed transaction.
func (c *Client) GetCPFP(ctx context.Context, txHash chainhash.Hash) (*CPFPInfo, error) {
	var info CPFPInfo
	if err := c.get(ctx, path.Join("/v1/cpfp", txHash.String()), &info); err != nil {
		return nil, errors.Wrap(err, "can't get cpfp info")
	}
	return &info, nil
}

// GetRawTransaction fetches the transaction hex and decodes it.
func (c *Client) GetRawTransaction(ctx context.Context, txHash chainhash.Hash) (*wire.MsgTx, error) {
	resp, err := c.client.Get(ctx, path.Join("/tx", txHash.String(), "hex"), httpclient.RequestOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "can't get transaction hex")
	}
	if err := resp.Ok(); err != nil {
		return nil, errors.WithStack(err)
	}
	text, err := resp.Text()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, errors.Wrap(err, "invalid transaction hex")
	}
	tx, err := DecodeTransaction(raw)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if tx.TxHash() != txHash {
		return nil, errors.Errorf("transaction hash mismatch: expected %s, got %s", txHash, tx.TxHash())
	}
	return tx, nil
}

func DecodeTransaction(raw []byte) (*wire.MsgTx, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "can't deserialize transaction")
	}
	return &tx, nil
}
