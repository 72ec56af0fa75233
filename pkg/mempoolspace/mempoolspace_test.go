package mempoolspace

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTx(t *testing.T) (*wire.MsgTx, string) {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 1},
		Witness:          wire.TxWitness{{0x01}, {0x02}},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(546, []byte{0x51, 0x20}))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return tx, hex.EncodeToString(buf.Bytes())
}

func newTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body != "" && (body[0] == '{' || body[0] == '[') {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "text/plain")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient(t *testing.T) {
	tx, txHex := testTx(t)
	txid := tx.TxHash().String()

	server := newTestServer(t, map[string]string{
		"/api/blocks/tip/height":   "840000\n",
		"/api/v1/fees/recommended": `{"fastestFee":30,"halfHourFee":20,"hourFee":10,"economyFee":5,"minimumFee":1}`,
		"/api/tx/" + txid:          `{"txid":"` + txid + `","weight":561,"fee":1234,"status":{"confirmed":false}}`,
		"/api/v1/cpfp/" + txid:     `{"ancestors":[],"effectiveFeePerVsize":8.8,"adjustedVsize":140.25}`,
		"/api/tx/" + txid + "/hex": txHex,
	})

	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)
	ctx := context.Background()

	height, err := client.GetBlockTipHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(840000), height)

	fees, err := client.GetRecommendedFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, RecommendedFees{FastestFee: 30, HalfHourFee: 20, HourFee: 10, EconomyFee: 5, MinimumFee: 1}, *fees)

	info, err := client.GetTransaction(ctx, tx.TxHash())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), info.Fee)
	assert.False(t, info.Status.Confirmed)

	cpfp, err := client.GetCPFP(ctx, tx.TxHash())
	require.NoError(t, err)
	assert.Equal(t, 140.25, cpfp.AdjustedVsize)

	raw, err := client.GetRawTransaction(ctx, tx.TxHash())
	require.NoError(t, err)
	assert.Equal(t, tx.TxHash(), raw.TxHash())
	assert.Equal(t, tx.TxIn[0].Witness, raw.TxIn[0].Witness)

	_, err = client.GetTransaction(ctx, chainhash.Hash{})
	assert.True(t, errors.Is(err, errs.NotFound))
}

func TestClientTestnet(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/testnet/api/blocks/tip/height": "2500000",
	})

	client, err := New(Config{BaseURL: server.URL, Network: common.NetworkTestnet})
	require.NoError(t, err)

	height, err := client.GetBlockTipHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2500000), height)
}

func TestClientInvalidTipHeight(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"/api/blocks/tip/height": "not a number",
	})
	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.GetBlockTipHeight(context.Background())
	assert.Error(t, err)
}

func TestNewUnsupportedNetwork(t *testing.T) {
	_, err := New(Config{Network: "regtest"})
	assert.True(t, errors.Is(err, errs.Unsupported))
}
