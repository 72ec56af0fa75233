package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gofiber/fiber/v2"
)

type getDetectionRequest struct {
	InscriptionId string `params:"inscriptionId"`
}

func (r getDetectionRequest) Validate() error {
	var errList []error
	if r.InscriptionId == "" {
		errList = append(errList, errors.New("'inscriptionId' is required"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getDetectionResponse = HttpResponse[detection]

func (h *HttpHandler) GetDetection(ctx *fiber.Ctx) (err error) {
	var req getDetectionRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	d, err := h.usecase.GetDetectionByInscriptionId(ctx.UserContext(), req.InscriptionId)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return fiber.NewError(fiber.StatusNotFound, "bitmap not found")
		}
		return errors.Wrap(err, "error during GetDetectionByInscriptionId")
	}

	result := mapDetection(*d)
	return errors.WithStack(ctx.JSON(getDetectionResponse{
		Result: &result,
	}))
}
