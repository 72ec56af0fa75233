// Package memory is a bounded in-process detection store. The least recently
// detected inscriptions are evicted first when the store is full.
package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/datagateway"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	lru "github.com/hashicorp/golang-lru/v2"
)

var _ datagateway.DetectionDataGateway = (*Repository)(nil)

type Repository struct {
	detections *lru.Cache[string, entity.Detection]
}

func NewRepository(size int) (*Repository, error) {
	if size <= 0 {
		return nil, errors.Wrapf(errs.InvalidArgument, "memory size must be positive, got %d", size)
	}
	cache, err := lru.New[string, entity.Detection](size)
	if err != nil {
		return nil, errors.Wrap(err, "can't create detection cache")
	}
	return &Repository{detections: cache}, nil
}

func (r *Repository) CreateDetection(ctx context.Context, detection *entity.Detection) (bool, error) {
	if detection == nil || detection.InscriptionId == "" {
		return false, errors.Wrap(errs.InvalidArgument, "inscription id is required")
	}
	found, _ := r.detections.ContainsOrAdd(detection.InscriptionId, cloneDetection(*detection))
	return !found, nil
}

func (r *Repository) GetDetectionByInscriptionId(ctx context.Context, inscriptionId string) (*entity.Detection, error) {
	detection, ok := r.detections.Peek(inscriptionId)
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	result := cloneDetection(detection)
	return &result, nil
}

func (r *Repository) GetDetections(ctx context.Context, limit int32, offset int32) ([]*entity.Detection, error) {
	if limit < 0 || offset < 0 {
		return nil, errors.Wrap(errs.InvalidArgument, "limit and offset must not be negative")
	}

	// Values are ordered from oldest to newest insertion.
	values := r.detections.Values()
	slices.Reverse(values)
	slices.SortStableFunc(values, func(a, b entity.Detection) int {
		return cmp.Compare(b.DetectedAt.UnixNano(), a.DetectedAt.UnixNano())
	})

	start := min(int(offset), len(values))
	end := min(start+int(limit), len(values))
	result := make([]*entity.Detection, 0, end-start)
	for _, detection := range values[start:end] {
		detection := cloneDetection(detection)
		result = append(result, &detection)
	}
	return result, nil
}

func (r *Repository) CountDetections(ctx context.Context) (int64, error) {
	return int64(r.detections.Len()), nil
}

func cloneDetection(d entity.Detection) entity.Detection {
	if d.Parcel != nil {
		parcel := *d.Parcel
		d.Parcel = &parcel
	}
	return d
}
