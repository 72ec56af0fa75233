package mempool

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline() *Pipeline {
	p := NewPipeline("https://mempool.space", slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC) }
	return p
}

type record struct {
	id   string
	body string
}

func mempoolMessage(records ...record) []byte {
	items := make([]string, 0, len(records))
	for _, r := range records {
		items = append(items, fmt.Sprintf(`{"inscription_id":%q,"inscription_data":{"body":%q}}`, r.id, r.body))
	}
	return []byte(fmt.Sprintf(`{"msg_type":"Mempool","data":{"ordinals":[%s]}}`, strings.Join(items, ",")))
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		raw      []byte
		expected []string
		hasError bool
	}{
		{
			name: "heartbeat ack",
			raw:  []byte("ok"),
		},
		{
			name:     "padded heartbeat is not an ack",
			raw:      []byte(" ok\n"),
			hasError: true,
		},
		{
			name:     "heartbeat ack is case sensitive",
			raw:      []byte("OK"),
			hasError: true,
		},
		{
			name:     "single bitmap",
			raw:      mempoolMessage(record{"abc", b64("foo.bitmap")}),
			expected: []string{"foo.bitmap"},
		},
		{
			name: "not a bitmap",
			raw:  mempoolMessage(record{"abc", b64("hello world")}),
		},
		{
			name: "suffix is case sensitive",
			raw:  mempoolMessage(record{"abc", b64("840000.BITMAP")}),
		},
		{
			name: "trailing whitespace is not trimmed",
			raw:  mempoolMessage(record{"abc", b64("840000.bitmap\n")}),
		},
		{
			name:     "bare suffix",
			raw:      mempoolMessage(record{"abc", b64(".bitmap")}),
			expected: []string{".bitmap"},
		},
		{
			name: "mixed records",
			raw: mempoolMessage(
				record{"a", b64("1.bitmap")},
				record{"b", "!!!not base64!!!"},
				record{"c", b64("text")},
				record{"d", base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd})},
				record{"e", base64.RawStdEncoding.EncodeToString([]byte("2.bitmap"))},
			),
			expected: []string{"1.bitmap", "2.bitmap"},
		},
		{
			name: "other message type",
			raw:  []byte(`{"msg_type":"Block","data":{"ordinals":[{"inscription_id":"x","inscription_data":{"body":"` + b64("1.bitmap") + `"}}]}}`),
		},
		{
			name: "empty ordinals",
			raw:  []byte(`{"msg_type":"Mempool","data":{"ordinals":[]}}`),
		},
		{
			name:     "malformed json",
			raw:      []byte("{not json"),
			hasError: true,
		},
		{
			name:     "wrong data shape",
			raw:      []byte(`{"msg_type":"Mempool","data":{"ordinals":"nope"}}`),
			hasError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline()
			notifications, err := p.Decode(tc.raw)
			if tc.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			texts := make([]string, 0, len(notifications))
			for _, n := range notifications {
				texts = append(texts, n.DecodedText)
			}
			assert.ElementsMatch(t, tc.expected, texts)
		})
	}
}

func TestDecodeNotificationFields(t *testing.T) {
	p := newTestPipeline()

	notifications, err := p.Decode(mempoolMessage(record{"abc", b64("foo.bitmap")}))
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	n := notifications[0]
	assert.Equal(t, "abc", n.InscriptionId)
	assert.Equal(t, "foo.bitmap", n.DecodedText)
	assert.Equal(t, "https://mempool.space/tx/abc", n.ReferenceURL)
	assert.Contains(t, n.ReferenceURL, "abc")
	assert.Equal(t, p.now(), n.ObservedAt)
}

func TestReferenceURL(t *testing.T) {
	p := NewPipeline("https://mempool.space/testnet/", nil)
	assert.Equal(t, "https://mempool.space/testnet/tx/abci0", p.ReferenceURL("abci0"))

	p = NewPipeline("", nil)
	assert.Equal(t, "https://mempool.space/tx/abci0", p.ReferenceURL("abci0"))
}

func TestHandleMessageFanOut(t *testing.T) {
	p := newTestPipeline()

	first := make(chan Notification, 4)
	second := make(chan Notification, 4)
	sub1 := p.Subscribe(first)
	sub2 := p.Subscribe(second)
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	ctx := context.Background()
	p.HandleMessage(ctx, []byte("ok"))
	p.HandleMessage(ctx, []byte("{garbage"))
	p.HandleMessage(ctx, mempoolMessage(record{"abc", b64("foo.bitmap")}, record{"def", b64("bar")}))

	for _, ch := range []chan Notification{first, second} {
		select {
		case n := <-ch:
			assert.Equal(t, "foo.bitmap", n.DecodedText)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for notification")
		}
		assert.Never(t, func() bool { return len(ch) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
	}

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Messages)
	assert.Equal(t, int64(1), stats.Heartbeats)
	assert.Equal(t, int64(1), stats.ParseErrors)
	assert.Equal(t, int64(1), stats.Notifications)
}

func TestHandleMessageHeartbeatExactMatch(t *testing.T) {
	p := newTestPipeline()

	ctx := context.Background()
	p.HandleMessage(ctx, []byte("ok"))
	p.HandleMessage(ctx, []byte("ok\n"))
	p.HandleMessage(ctx, []byte(" ok"))

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Messages)
	assert.Equal(t, int64(1), stats.Heartbeats)
	assert.Equal(t, int64(2), stats.ParseErrors)
}

func TestHandleMessageCountMatchesBitmapRecords(t *testing.T) {
	p := newTestPipeline()
	ch := make(chan Notification, 16)
	sub := p.Subscribe(ch)
	defer sub.Unsubscribe()

	records := []record{
		{"1", b64("1.bitmap")},
		{"2", b64("2.bitmap")},
		{"3", b64("x")},
		{"4", "%%%"},
		{"5", b64("5.bitmap")},
	}
	p.HandleMessage(context.Background(), mempoolMessage(records...))

	require.Eventually(t, func() bool { return len(ch) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(3), p.Stats().Notifications)
	assert.Equal(t, int64(1), p.Stats().SkippedBodies)
}

func TestUnsubscribeRemovesSubscriber(t *testing.T) {
	p := newTestPipeline()
	sub := p.Subscribe(make(chan Notification, 1))
	require.Equal(t, 1, p.Subscribers())

	sub.Unsubscribe()
	require.Eventually(t, func() bool { return p.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	// no subscribers left, still usable
	p.HandleMessage(context.Background(), mempoolMessage(record{"abc", b64("foo.bitmap")}))
	assert.Equal(t, int64(1), p.Stats().Notifications)
}

func TestDecodeBody(t *testing.T) {
	text, ok := DecodeBody(b64("840000.bitmap"))
	assert.True(t, ok)
	assert.Equal(t, "840000.bitmap", text)

	_, ok = DecodeBody("not*base64")
	assert.False(t, ok)

	_, ok = DecodeBody(base64.StdEncoding.EncodeToString([]byte{0xc3, 0x28}))
	assert.False(t, ok)
}
