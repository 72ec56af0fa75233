package bitmap

import (
	"context"

	"github.com/gaze-network/bitmap-watcher/internal/subscription"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/mempool"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
)

type NotificationSource interface {
	Subscribe(ch chan<- mempool.Notification) *subscription.ClientSubscription[mempool.Notification]
}

type DetectionRecorder interface {
	RecordDetection(ctx context.Context, notification mempool.Notification) (*entity.Detection, bool, error)
}

// Processor stores every bitmap notification of the mempool feed as a detection.
type Processor struct {
	source   NotificationSource
	recorder DetectionRecorder
}

func NewProcessor(source NotificationSource, recorder DetectionRecorder) *Processor {
	return &Processor{
		source:   source,
		recorder: recorder,
	}
}

// Run consumes notifications until ctx is done. A failed detection is logged and skipped.
func (p *Processor) Run(ctx context.Context) error {
	ch := make(chan mempool.Notification, detectionBufferSize)
	sub := p.source.Subscribe(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case notification := <-ch:
			p.process(ctx, notification)
		}
	}
}

func (p *Processor) process(ctx context.Context, notification mempool.Notification) {
	ctx = logger.WithContext(ctx, slogx.String("inscription_id", notification.InscriptionId))

	detection, created, err := p.recorder.RecordDetection(ctx, notification)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record bitmap detection", err)
		return
	}
	if !created {
		logger.DebugContext(ctx, "Bitmap inscription already detected")
		return
	}
	logger.InfoContext(ctx, "Recorded bitmap detection",
		slogx.String("text", detection.Text),
		slogx.Stringer("status", detection.Status),
		slogx.Uint64("tip_height", detection.TipHeight),
	)
}
