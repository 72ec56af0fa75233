package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
)

type getBlockTipResult struct {
	Height uint64 `json:"height"`
}

type getBlockTipResponse = HttpResponse[getBlockTipResult]

func (h *HttpHandler) GetBlockTip(ctx *fiber.Ctx) (err error) {
	height, err := h.usecase.GetTipHeight(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetTipHeight")
	}

	return errors.WithStack(ctx.JSON(getBlockTipResponse{
		Result: &getBlockTipResult{
			Height: height,
		},
	}))
}
