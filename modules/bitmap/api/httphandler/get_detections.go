package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

const (
	getDetectionsMaxLimit     = 1000
	getDetectionsDefaultLimit = 100
)

type getDetectionsRequest struct {
	Limit  int32 `query:"limit"`
	Offset int32 `query:"offset"`
}

func (r getDetectionsRequest) Validate() error {
	var errList []error
	if r.Limit < 0 {
		errList = append(errList, errors.New("'limit' must be non-negative"))
	}
	if r.Limit > getDetectionsMaxLimit {
		errList = append(errList, errors.Errorf("'limit' cannot exceed %d", getDetectionsMaxLimit))
	}
	if r.Offset < 0 {
		errList = append(errList, errors.New("'offset' must be non-negative"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getDetectionsResult struct {
	List  []detection `json:"list"`
	Total int64       `json:"total"`
}

type getDetectionsResponse = HttpResponse[getDetectionsResult]

func (h *HttpHandler) GetDetections(ctx *fiber.Ctx) (err error) {
	var req getDetectionsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errs.WithPublicMessage(err, "invalid query")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	if req.Limit == 0 {
		req.Limit = getDetectionsDefaultLimit
	}

	detections, err := h.usecase.GetDetections(ctx.UserContext(), req.Limit, req.Offset)
	if err != nil {
		return errors.Wrap(err, "error during GetDetections")
	}
	total, err := h.usecase.CountDetections(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during CountDetections")
	}

	resp := getDetectionsResponse{
		Result: &getDetectionsResult{
			List:  lo.Map(detections, func(d *entity.Detection, _ int) detection { return mapDetection(*d) }),
			Total: total,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
