package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/datagateway"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ datagateway.DetectionDataGateway = (*Repository)(nil)

const (
	detectionColumns = `"inscription_id", "text", "reference_url", "parcel", "status", "tip_height", "detected_at"`

	createDetectionQuery = `INSERT INTO "bitmap_detections" (` + detectionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT ("inscription_id") DO NOTHING`

	getDetectionByInscriptionIdQuery = `SELECT ` + detectionColumns + ` FROM "bitmap_detections" WHERE "inscription_id" = $1`

	getDetectionsQuery = `SELECT ` + detectionColumns + ` FROM "bitmap_detections"
ORDER BY "detected_at" DESC, "inscription_id" DESC
LIMIT $1 OFFSET $2`

	countDetectionsQuery = `SELECT COUNT(*) FROM "bitmap_detections"`
)

// detectionModel is a row of the bitmap_detections table.
type detectionModel struct {
	InscriptionId string
	Text          string
	ReferenceURL  string
	Parcel        pgtype.Numeric
	Status        string
	TipHeight     int64
	DetectedAt    pgtype.Timestamptz
}

func (m *detectionModel) scanArgs() []any {
	return []any{&m.InscriptionId, &m.Text, &m.ReferenceURL, &m.Parcel, &m.Status, &m.TipHeight, &m.DetectedAt}
}

func (r *Repository) CreateDetection(ctx context.Context, detection *entity.Detection) (bool, error) {
	if detection == nil || detection.InscriptionId == "" {
		return false, errors.Wrap(errs.InvalidArgument, "inscription id is required")
	}
	model, err := mapDetectionTypeToModel(*detection)
	if err != nil {
		return false, errors.Wrap(err, "failed to map detection to model")
	}
	tag, err := r.db.Exec(ctx, createDetectionQuery,
		model.InscriptionId,
		model.Text,
		model.ReferenceURL,
		model.Parcel,
		model.Status,
		model.TipHeight,
		model.DetectedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "error during exec")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) GetDetectionByInscriptionId(ctx context.Context, inscriptionId string) (*entity.Detection, error) {
	var model detectionModel
	if err := r.db.QueryRow(ctx, getDetectionByInscriptionIdQuery, inscriptionId).Scan(model.scanArgs()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "error during query")
	}
	detection, err := mapDetectionModelToType(model)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse detection model")
	}
	return &detection, nil
}

func (r *Repository) GetDetections(ctx context.Context, limit int32, offset int32) ([]*entity.Detection, error) {
	rows, err := r.db.Query(ctx, getDetectionsQuery, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	detections := make([]*entity.Detection, 0, limit)
	for rows.Next() {
		var model detectionModel
		if err := rows.Scan(model.scanArgs()...); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		detection, err := mapDetectionModelToType(model)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse detection model")
		}
		detections = append(detections, &detection)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during rows iteration")
	}
	return detections, nil
}

func (r *Repository) CountDetections(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, countDetectionsQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "error during query")
	}
	return count, nil
}
