package httphandler

import (
	"bufio"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

const (
	streamEventName         = "bitmap"
	streamBufferSize        = 64
	streamKeepAliveInterval = 15 * time.Second
)

// StreamDetections streams new detections as server-sent events until the client goes away.
func (h *HttpHandler) StreamDetections(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	userCtx := ctx.UserContext()
	ch := make(chan entity.Detection, streamBufferSize)
	sub := h.usecase.SubscribeDetections(ch)

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Unsubscribe()

		keepAlive := time.NewTicker(streamKeepAliveInterval)
		defer keepAlive.Stop()

		if !writeEvent(w, []byte(": connected\n\n")) {
			return
		}
		for {
			select {
			case <-h.ctx.Done():
				return
			case <-sub.Done():
				return
			case d := <-ch:
				data, err := sonic.Marshal(mapDetection(d))
				if err != nil {
					logger.ErrorContext(userCtx, "Failed to marshal detection event", err)
					continue
				}
				event := make([]byte, 0, len(data)+32)
				event = append(event, "event: "+streamEventName+"\ndata: "...)
				event = append(event, data...)
				event = append(event, "\n\n"...)
				if !writeEvent(w, event) {
					logger.DebugContext(userCtx, "Event stream client disconnected")
					return
				}
			case <-keepAlive.C:
				if !writeEvent(w, []byte(": ping\n\n")) {
					logger.DebugContext(userCtx, "Event stream client disconnected")
					return
				}
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, event []byte) bool {
	if _, err := w.Write(event); err != nil {
		return false
	}
	return w.Flush() == nil
}
