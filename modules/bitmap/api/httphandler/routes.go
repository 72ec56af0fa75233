package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/v1")

	r.Get("/bitmaps", h.GetDetections)
	r.Get("/bitmaps/stream", h.StreamDetections)
	r.Get("/bitmaps/:inscriptionId", h.GetDetection)
	r.Get("/block/tip", h.GetBlockTip)
	r.Get("/fees/recommended", h.GetRecommendedFees)
	r.Get("/fees/tx/:txid", h.GetTxFee)
	r.Get("/brc/search", h.SearchBRCText)
	r.Get("/inscriptions/:inscriptionId", h.GetInscription)
	r.Get("/stream/status", h.GetStreamStatus)
	return nil
}
