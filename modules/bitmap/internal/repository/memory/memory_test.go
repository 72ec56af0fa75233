package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 4, 20, 0, 9, 27, 0, time.UTC)

func detection(id string, n int) *entity.Detection {
	return &entity.Detection{
		InscriptionId: id,
		Text:          fmt.Sprintf("%d.bitmap", n),
		Parcel:        lo.ToPtr(uint64(n)),
		Status:        entity.DetectionStatusValid,
		TipHeight:     840000,
		DetectedAt:    baseTime.Add(time.Duration(n) * time.Second),
	}
}

func TestCreateDetectionDedupe(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(8)
	require.NoError(t, err)

	created, err := repo.CreateDetection(ctx, detection("a", 1))
	require.NoError(t, err)
	assert.True(t, created)

	duplicate := detection("a", 2)
	created, err = repo.CreateDetection(ctx, duplicate)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.GetDetectionByInscriptionId(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1.bitmap", stored.Text)

	_, err = repo.CreateDetection(ctx, &entity.Detection{})
	assert.ErrorIs(t, err, errs.InvalidArgument)
}

func TestGetDetectionNotFound(t *testing.T) {
	repo, err := NewRepository(1)
	require.NoError(t, err)

	_, err = repo.GetDetectionByInscriptionId(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.NotFound)
}

func TestGetDetectionsOrderAndPaging(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(3)
	require.NoError(t, err)

	// inserted out of order, the oldest insertion is evicted
	for _, n := range []int{2, 1, 4, 3} {
		_, err := repo.CreateDetection(ctx, detection(fmt.Sprint(n), n))
		require.NoError(t, err)
	}

	count, err := repo.CountDetections(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	testCases := []struct {
		name     string
		limit    int32
		offset   int32
		expected []string
	}{
		{name: "all", limit: 10, expected: []string{"4", "3", "1"}},
		{name: "first page", limit: 2, expected: []string{"4", "3"}},
		{name: "second page", limit: 2, offset: 2, expected: []string{"1"}},
		{name: "past the end", limit: 2, offset: 5, expected: []string{}},
		{name: "zero limit", limit: 0, expected: []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			detections, err := repo.GetDetections(ctx, tc.limit, tc.offset)
			require.NoError(t, err)
			ids := lo.Map(detections, func(d *entity.Detection, _ int) string { return d.InscriptionId })
			assert.Equal(t, tc.expected, ids)
		})
	}
}

func TestStoredDetectionIsCopied(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(2)
	require.NoError(t, err)

	d := detection("a", 7)
	_, err = repo.CreateDetection(ctx, d)
	require.NoError(t, err)
	*d.Parcel = 99

	stored, err := repo.GetDetectionByInscriptionId(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), *stored.Parcel)
}

func TestNewRepositoryInvalidSize(t *testing.T) {
	_, err := NewRepository(0)
	assert.ErrorIs(t, err, errs.InvalidArgument)
}
