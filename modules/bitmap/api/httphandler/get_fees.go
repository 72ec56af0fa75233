package httphandler

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/pkg/mempoolspace"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type getRecommendedFeesResponse = HttpResponse[mempoolspace.RecommendedFees]

func (h *HttpHandler) GetRecommendedFees(ctx *fiber.Ctx) (err error) {
	fees, err := h.usecase.GetRecommendedFees(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetRecommendedFees")
	}
	return errors.WithStack(ctx.JSON(getRecommendedFeesResponse{
		Result: fees,
	}))
}

type getTxFeeRequest struct {
	TxId string `params:"txid"`
}

func (r getTxFeeRequest) Validate() error {
	var errList []error
	if len(r.TxId) != chainhash.MaxHashStringSize {
		errList = append(errList, errors.Errorf("'txid' must be %d characters long", chainhash.MaxHashStringSize))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type txFee struct {
	TxHash           chainhash.Hash  `json:"txHash"`
	Fee              int64           `json:"fee"`
	Vsize            int64           `json:"vsize"`
	AdjustedVsize    decimal.Decimal `json:"adjustedVsize"`
	FeeRate          decimal.Decimal `json:"feeRate"`
	EffectiveFeeRate decimal.Decimal `json:"effectiveFeeRate"`
	Confirmed        bool            `json:"confirmed"`
}

type getTxFeeResponse = HttpResponse[txFee]

func (h *HttpHandler) GetTxFee(ctx *fiber.Ctx) (err error) {
	var req getTxFeeRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	hash, err := chainhash.NewHashFromStr(req.TxId)
	if err != nil {
		return errs.NewPublicError("invalid transaction hash")
	}

	info, err := h.usecase.GetTxFeeInfo(ctx.UserContext(), *hash)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return errors.Wrap(err, "error during GetTxFeeInfo")
	}

	return errors.WithStack(ctx.JSON(getTxFeeResponse{
		Result: &txFee{
			TxHash:           info.TxHash,
			Fee:              info.Fee,
			Vsize:            info.Vsize,
			AdjustedVsize:    info.AdjustedVsize,
			FeeRate:          info.FeeRate,
			EffectiveFeeRate: info.EffectiveFeeRate,
			Confirmed:        info.Confirmed,
		},
	}))
}
