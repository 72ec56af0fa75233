package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/pkg/mempoolspace"
)

// RefreshTipHeight fetches the block tip height and caches it.
func (u *Usecase) RefreshTipHeight(ctx context.Context) (uint64, error) {
	height, err := u.mempoolSpace.GetBlockTipHeight(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get block tip height")
	}
	u.tipHeight.Store(height)
	return height, nil
}

// GetTipHeight returns the cached tip height, fetching it if it's not known yet.
func (u *Usecase) GetTipHeight(ctx context.Context) (uint64, error) {
	if height := u.tipHeight.Load(); height > 0 {
		return height, nil
	}
	return u.RefreshTipHeight(ctx)
}

func (u *Usecase) GetRecommendedFees(ctx context.Context) (*mempoolspace.RecommendedFees, error) {
	fees, err := u.mempoolSpace.GetRecommendedFees(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recommended fees")
	}
	return fees, nil
}
