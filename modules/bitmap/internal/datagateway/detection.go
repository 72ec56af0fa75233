package datagateway

import (
	"context"

	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
)

type DetectionDataGateway interface {
	DetectionReaderDataGateway
	DetectionWriterDataGateway
}

type DetectionReaderDataGateway interface {
	// GetDetectionByInscriptionId returns errs.NotFound if the inscription was never detected.
	GetDetectionByInscriptionId(ctx context.Context, inscriptionId string) (*entity.Detection, error)
	// GetDetections returns detections, most recent first.
	GetDetections(ctx context.Context, limit int32, offset int32) ([]*entity.Detection, error)
	CountDetections(ctx context.Context) (int64, error)
}

type DetectionWriterDataGateway interface {
	// CreateDetection stores a detection. It returns false without error if the inscription was already detected.
	CreateDetection(ctx context.Context, detection *entity.Detection) (created bool, err error)
}
