package errorhandler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type errorResponse = common.HttpResponse[any]

// NewHTTPErrorHandler maps handler errors to `{"error": ...}` responses.
// Public errors are 400, errs.NotFound is 404, errs.Timeout is 504, anything else is logged and returned as 500.
func NewHTTPErrorHandler() func(ctx *fiber.Ctx, err error) error {
	return func(ctx *fiber.Ctx, err error) error {
		if e := new(errs.PublicError); errors.As(err, &e) {
			status := http.StatusBadRequest
			if errors.Is(err, errs.NotFound) {
				status = http.StatusNotFound
			}
			return errors.WithStack(ctx.Status(status).JSON(errorResponse{Error: lo.ToPtr(e.Message())}))
		}
		if e := new(fiber.Error); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(e.Code).JSON(errorResponse{Error: lo.ToPtr(e.Message)}))
		}
		switch {
		case errors.Is(err, errs.NotFound):
			return errors.WithStack(ctx.Status(http.StatusNotFound).JSON(errorResponse{Error: lo.ToPtr("Not Found")}))
		case errors.Is(err, errs.InvalidArgument):
			return errors.WithStack(ctx.Status(http.StatusBadRequest).JSON(errorResponse{Error: lo.ToPtr("Bad Request")}))
		case errors.Is(err, errs.Timeout):
			logger.WarnContext(ctx.UserContext(), "Upstream timeout", slogx.Error(err))
			return errors.WithStack(ctx.Status(http.StatusGatewayTimeout).JSON(errorResponse{Error: lo.ToPtr("Gateway Timeout")}))
		}

		logger.ErrorContext(ctx.UserContext(), "Something went wrong, unhandled api error", err,
			slogx.String("event", "api_unhandled_error"),
		)

		return errors.WithStack(ctx.Status(http.StatusInternalServerError).JSON(errorResponse{Error: lo.ToPtr("Internal Server Error")}))
	}
}
