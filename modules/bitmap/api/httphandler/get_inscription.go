package httphandler

import (
	"encoding/base64"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/pkg/ordinals"
	"github.com/gofiber/fiber/v2"
)

type getInscriptionRequest struct {
	InscriptionId string `params:"inscriptionId"`
}

type inscription struct {
	Id              ordinals.InscriptionId  `json:"id"`
	ContentType     string                  `json:"contentType"`
	ContentEncoding string                  `json:"contentEncoding,omitempty"`
	ContentLength   int                     `json:"contentLength"`
	Text            *string                 `json:"text"`
	Content         string                  `json:"content"` // base64
	Metaprotocol    string                  `json:"metaprotocol,omitempty"`
	Parent          *ordinals.InscriptionId `json:"parent"`
	Delegate        *ordinals.InscriptionId `json:"delegate"`
	Pointer         *uint64                 `json:"pointer"`
	InputIndex      uint32                  `json:"inputIndex"`
	Cursed          bool                    `json:"cursed"`
}

type getInscriptionResponse = HttpResponse[inscription]

func (h *HttpHandler) GetInscription(ctx *fiber.Ctx) (err error) {
	var req getInscriptionRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	id, err := ordinals.NewInscriptionIdFromString(req.InscriptionId)
	if err != nil {
		return errs.WithPublicMessage(err, "invalid inscription id")
	}

	envelope, err := h.usecase.GetInscription(ctx.UserContext(), id)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return fiber.NewError(fiber.StatusNotFound, "inscription not found")
		}
		return errors.Wrap(err, "error during GetInscription")
	}

	content := envelope.Inscription
	result := inscription{
		Id:              id,
		ContentType:     content.ContentType,
		ContentEncoding: content.ContentEncoding,
		ContentLength:   len(content.Content),
		Content:         base64.StdEncoding.EncodeToString(content.Content),
		Metaprotocol:    content.Metaprotocol,
		Parent:          content.Parent,
		Delegate:        content.Delegate,
		Pointer:         content.Pointer,
		InputIndex:      envelope.InputIndex,
		Cursed:          envelope.IsCursed(),
	}
	if content.IsText() {
		text := content.Text()
		result.Text = &text
	}
	return errors.WithStack(ctx.JSON(getInscriptionResponse{
		Result: &result,
	}))
}
