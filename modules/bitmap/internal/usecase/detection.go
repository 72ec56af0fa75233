package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/internal/subscription"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/mempool"
	"github.com/gaze-network/bitmap-watcher/pkg/bitmap"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
)

// RecordDetection classifies a notification against the current tip height and stores it.
// It returns false if the inscription was already detected. New detections are published to detection subscribers.
func (u *Usecase) RecordDetection(ctx context.Context, notification mempool.Notification) (*entity.Detection, bool, error) {
	detection := &entity.Detection{
		InscriptionId: notification.InscriptionId,
		Text:          notification.DecodedText,
		ReferenceURL:  notification.ReferenceURL,
		DetectedAt:    notification.ObservedAt,
	}

	parcel, err := bitmap.ParseParcel(notification.DecodedText)
	if err != nil {
		detection.Status = entity.DetectionStatusInvalidFormat
	} else {
		detection.Parcel = &parcel
		detection.Status = entity.DetectionStatusValid

		tipHeight, err := u.GetTipHeight(ctx)
		if err != nil {
			// unknown tip, the parcel is kept unclassified as valid
			logger.WarnContext(ctx, "Can't get tip height, detection is not checked against the chain", slogx.Error(err))
		} else {
			detection.TipHeight = tipHeight
			if !bitmap.IsClaimable(parcel, tipHeight) {
				detection.Status = entity.DetectionStatusFutureBlock
			}
		}
	}

	created, err := u.detectionDg.CreateDetection(ctx, detection)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to create detection")
	}
	if created {
		u.detections.Send(*detection)
	}
	return detection, created, nil
}

func (u *Usecase) GetDetections(ctx context.Context, limit, offset int32) ([]*entity.Detection, error) {
	detections, err := u.detectionDg.GetDetections(ctx, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get detections")
	}
	return detections, nil
}

func (u *Usecase) GetDetectionByInscriptionId(ctx context.Context, inscriptionId string) (*entity.Detection, error) {
	detection, err := u.detectionDg.GetDetectionByInscriptionId(ctx, inscriptionId)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get detection by inscription id")
	}
	return detection, nil
}

func (u *Usecase) CountDetections(ctx context.Context) (int64, error) {
	count, err := u.detectionDg.CountDetections(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count detections")
	}
	return count, nil
}

// SubscribeDetections registers ch to receive newly stored detections.
// A detection is dropped for a subscriber whose buffer is full.
func (u *Usecase) SubscribeDetections(ch chan<- entity.Detection) *subscription.ClientSubscription[entity.Detection] {
	return u.detections.Subscribe(ch)
}

// DetectionSubscribers returns the number of active detection subscribers.
func (u *Usecase) DetectionSubscribers() int {
	return u.detections.Len()
}
