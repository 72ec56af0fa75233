package httphandler

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gofiber/fiber/v2"
)

const (
	searchBRCTextDefaultLimit = 32
	searchBRCTextMaxLimit     = 100
)

type searchBRCTextRequest struct {
	Name  string `query:"name"`
	Start int    `query:"start"`
	Limit int    `query:"limit"`
}

func (r searchBRCTextRequest) Validate() error {
	var errList []error
	if r.Name == "" {
		errList = append(errList, errors.New("'name' is required"))
	}
	if r.Start < 0 {
		errList = append(errList, errors.New("'start' must be non-negative"))
	}
	if r.Limit < 0 || r.Limit > searchBRCTextMaxLimit {
		errList = append(errList, errors.Errorf("'limit' must be between 0 and %d", searchBRCTextMaxLimit))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type searchBRCTextResponse = HttpResponse[[]json.RawMessage]

func (h *HttpHandler) SearchBRCText(ctx *fiber.Ctx) (err error) {
	var req searchBRCTextRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errs.WithPublicMessage(err, "invalid query")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	if req.Limit == 0 {
		req.Limit = searchBRCTextDefaultLimit
	}

	items, err := h.usecase.SearchBRCText(ctx.UserContext(), req.Name, req.Start, req.Limit)
	if err != nil {
		return errors.Wrap(err, "error during SearchBRCText")
	}
	return errors.WithStack(ctx.JSON(searchBRCTextResponse{
		Result: &items,
	}))
}
