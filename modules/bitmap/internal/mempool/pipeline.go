package mempool

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/internal/subscription"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
	"github.com/gaze-network/bitmap-watcher/pkg/wsclient"
)

// Make sure to implement the wsclient.Handler interface
var _ wsclient.Handler = (*Pipeline)(nil)

// Stats are counters of the messages seen by a Pipeline.
type Stats struct {
	Messages      int64 `json:"messages"`
	Heartbeats    int64 `json:"heartbeats"`
	ParseErrors   int64 `json:"parseErrors"`
	SkippedBodies int64 `json:"skippedBodies"`
	Notifications int64 `json:"notifications"`
	Dropped       int64 `json:"dropped"`
}

// Pipeline decodes mempool feed messages and notifies subscribers of bitmap inscriptions.
type Pipeline struct {
	referenceBaseURL string
	logger           *slog.Logger
	now              func() time.Time

	feed *subscription.Feed[Notification]

	messages      atomic.Int64
	heartbeats    atomic.Int64
	parseErrors   atomic.Int64
	skippedBodies atomic.Int64
	notifications atomic.Int64
}

// NewPipeline creates a pipeline. Reference URLs are built as `<referenceBaseURL>/tx/<inscription id>`.
func NewPipeline(referenceBaseURL string, log *slog.Logger) *Pipeline {
	if referenceBaseURL == "" {
		referenceBaseURL = DefaultReferenceBaseURL
	}
	if log == nil {
		log = logger.With(slogx.String("package", "mempool"))
	}
	return &Pipeline{
		referenceBaseURL: referenceBaseURL,
		logger:           log,
		now:              time.Now,
		feed:             subscription.NewFeed[Notification](),
	}
}

// Subscribe registers ch to receive notifications until the returned subscription is unsubscribed.
// Notifications are dropped for a subscriber whose buffer is full.
func (p *Pipeline) Subscribe(ch chan<- Notification) *subscription.ClientSubscription[Notification] {
	return p.feed.Subscribe(ch)
}

// Subscribers returns the number of active subscribers.
func (p *Pipeline) Subscribers() int {
	return p.feed.Len()
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Messages:      p.messages.Load(),
		Heartbeats:    p.heartbeats.Load(),
		ParseErrors:   p.parseErrors.Load(),
		SkippedBodies: p.skippedBodies.Load(),
		Notifications: p.notifications.Load(),
		Dropped:       p.feed.Dropped(),
	}
}

// HandleMessage runs the decode/filter pipeline on a raw feed message.
// Decode failures are logged and the message is dropped.
func (p *Pipeline) HandleMessage(ctx context.Context, raw []byte) {
	p.messages.Add(1)

	notifications, err := p.Decode(raw)
	if err != nil {
		p.parseErrors.Add(1)
		p.logger.ErrorContext(ctx, "Failed to decode mempool message, dropped", slogx.Error(err), slogx.Int("size", len(raw)))
		return
	}

	for _, n := range notifications {
		p.logger.InfoContext(ctx, "Found bitmap inscription in mempool",
			slogx.String("inscription", n.DecodedText),
			slogx.String("inscription_id", n.InscriptionId),
			slogx.String("url", n.ReferenceURL),
		)
		p.emit(ctx, n)
	}
}

// Decode parses a raw feed message and returns the notifications it yields.
// The heartbeat ack and non-Mempool messages yield nothing. Records whose body
// can't be decoded to UTF-8 text are skipped.
func (p *Pipeline) Decode(raw []byte) ([]Notification, error) {
	if string(raw) == HeartbeatAck {
		p.heartbeats.Add(1)
		return nil, nil
	}

	var envelope Envelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(err, "can't unmarshal message")
	}
	if envelope.MsgType != MessageTypeMempool {
		return nil, nil
	}

	var data MempoolData
	if err := sonic.Unmarshal(envelope.Data, &data); err != nil {
		return nil, errors.Wrap(err, "can't unmarshal mempool data")
	}

	now := p.now()
	notifications := make([]Notification, 0)
	for _, record := range data.Ordinals {
		text, ok := DecodeBody(record.InscriptionData.Body)
		if !ok {
			p.skippedBodies.Add(1)
			p.logger.Debug("Skipped inscription with undecodable body", slogx.String("inscription_id", record.InscriptionId))
			continue
		}
		if !strings.HasSuffix(text, BitmapSuffix) {
			continue
		}
		notifications = append(notifications, Notification{
			InscriptionId: record.InscriptionId,
			DecodedText:   text,
			ReferenceURL:  p.ReferenceURL(record.InscriptionId),
			ObservedAt:    now,
		})
	}
	return notifications, nil
}

// ReferenceURL returns the explorer URL of an inscription.
func (p *Pipeline) ReferenceURL(inscriptionId string) string {
	u, err := url.JoinPath(p.referenceBaseURL, "tx", inscriptionId)
	if err != nil {
		return strings.TrimRight(p.referenceBaseURL, "/") + "/tx/" + inscriptionId
	}
	return u
}

// DecodeBody decodes a base64 inscription body into UTF-8 text.
func DecodeBody(body string) (string, bool) {
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(body)
		if err != nil {
			return "", false
		}
	}
	if !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}

func (p *Pipeline) emit(ctx context.Context, n Notification) {
	p.notifications.Add(1)
	if missed := p.feed.Send(n); missed > 0 {
		p.logger.WarnContext(ctx, "Subscriber is too slow, notification dropped",
			slogx.String("inscription_id", n.InscriptionId),
			slogx.Int("subscribers", missed),
		)
	}
}
