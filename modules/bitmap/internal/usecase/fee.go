package usecase

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/gaze-network/bitmap-watcher/pkg/mempoolspace"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const feeRatePrecision = 2

// GetTxFeeInfo returns the fee rate of a transaction. The CPFP package info is optional,
// mempool.space has none for confirmed transactions.
func (u *Usecase) GetTxFeeInfo(ctx context.Context, txHash chainhash.Hash) (*entity.TxFeeInfo, error) {
	var (
		tx   *mempoolspace.Transaction
		cpfp *mempoolspace.CPFPInfo
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		tx, err = u.mempoolSpace.GetTransaction(gctx, txHash)
		return errors.Wrap(err, "failed to get transaction")
	})
	group.Go(func() error {
		info, err := u.mempoolSpace.GetCPFP(gctx, txHash)
		if err != nil {
			if errors.Is(err, errs.NotFound) {
				return nil
			}
			return errors.Wrap(err, "failed to get cpfp info")
		}
		cpfp = info
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, errors.WithStack(err)
	}
	return calculateTxFeeInfo(txHash, tx, cpfp), nil
}

func calculateTxFeeInfo(txHash chainhash.Hash, tx *mempoolspace.Transaction, cpfp *mempoolspace.CPFPInfo) *entity.TxFeeInfo {
	// vsize is weight / 4 rounded up
	vsize := (tx.Weight + 3) / 4
	adjustedVsize := decimal.NewFromInt(vsize)
	if cpfp != nil && cpfp.AdjustedVsize > 0 {
		adjustedVsize = decimal.NewFromFloat(cpfp.AdjustedVsize)
	}

	feeRate := decimal.Zero
	if adjustedVsize.IsPositive() {
		feeRate = decimal.NewFromInt(tx.Fee).DivRound(adjustedVsize, feeRatePrecision)
	}
	effectiveFeeRate := feeRate
	if cpfp != nil && cpfp.EffectiveFeePerVsize > 0 {
		effectiveFeeRate = decimal.NewFromFloat(cpfp.EffectiveFeePerVsize).Round(feeRatePrecision)
	}

	return &entity.TxFeeInfo{
		TxHash:           txHash,
		Fee:              tx.Fee,
		Vsize:            vsize,
		Confirmed:        tx.Status.Confirmed,
		AdjustedVsize:    adjustedVsize,
		FeeRate:          feeRate,
		EffectiveFeeRate: effectiveFeeRate,
	}
}
