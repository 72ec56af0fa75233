package postgres

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/jackc/pgx/v5/pgtype"
)

// parcels may exceed BIGINT, they are stored as NUMERIC.
func uint64FromNumeric(src pgtype.Numeric) (*uint64, error) {
	if !src.Valid {
		return nil, nil
	}
	bytes, err := src.MarshalJSON()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result, err := strconv.ParseUint(string(bytes), 10, 64)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &result, nil
}

func numericFromUint64(src *uint64) (pgtype.Numeric, error) {
	if src == nil {
		return pgtype.Numeric{}, nil
	}
	var result pgtype.Numeric
	if err := result.UnmarshalJSON([]byte(strconv.FormatUint(*src, 10))); err != nil {
		return pgtype.Numeric{}, errors.WithStack(err)
	}
	return result, nil
}

func mapDetectionModelToType(src detectionModel) (entity.Detection, error) {
	parcel, err := uint64FromNumeric(src.Parcel)
	if err != nil {
		return entity.Detection{}, errors.Wrap(err, "failed to parse parcel")
	}
	status := entity.DetectionStatus(src.Status)
	if !status.IsValid() {
		return entity.Detection{}, errors.Errorf("invalid detection status %q", src.Status)
	}
	var detectedAt time.Time
	if src.DetectedAt.Valid {
		detectedAt = src.DetectedAt.Time
	}
	return entity.Detection{
		InscriptionId: src.InscriptionId,
		Text:          src.Text,
		ReferenceURL:  src.ReferenceURL,
		Parcel:        parcel,
		Status:        status,
		TipHeight:     uint64(src.TipHeight),
		DetectedAt:    detectedAt,
	}, nil
}

func mapDetectionTypeToModel(src entity.Detection) (detectionModel, error) {
	parcel, err := numericFromUint64(src.Parcel)
	if err != nil {
		return detectionModel{}, errors.Wrap(err, "failed to convert parcel")
	}
	return detectionModel{
		InscriptionId: src.InscriptionId,
		Text:          src.Text,
		ReferenceURL:  src.ReferenceURL,
		Parcel:        parcel,
		Status:        src.Status.String(),
		TipHeight:     int64(src.TipHeight),
		DetectedAt:    pgtype.Timestamptz{Time: src.DetectedAt, Valid: !src.DetectedAt.IsZero()},
	}, nil
}
