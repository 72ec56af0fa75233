package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/mempool"
	"github.com/gofiber/fiber/v2"
)

type getStreamStatusResult struct {
	Address         string        `json:"address"`
	State           string        `json:"state"`
	Connects        int64         `json:"connects"`
	KeepAliveActive bool          `json:"keepAliveActive"`
	Subscribers     int           `json:"subscribers"`
	Stats           mempool.Stats `json:"stats"`
}

type getStreamStatusResponse = HttpResponse[getStreamStatusResult]

func (h *HttpHandler) GetStreamStatus(ctx *fiber.Ctx) (err error) {
	return errors.WithStack(ctx.JSON(getStreamStatusResponse{
		Result: &getStreamStatusResult{
			Address:         h.stream.Address(),
			State:           h.stream.State().String(),
			Connects:        h.stream.Connects(),
			KeepAliveActive: h.stream.KeepAliveActive(),
			Subscribers:     h.pipeline.Subscribers(),
			Stats:           h.pipeline.Stats(),
		},
	}))
}
