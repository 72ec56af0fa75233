package httphandler

import (
	"context"

	"github.com/gaze-network/bitmap-watcher/common"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/entity"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/mempool"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/usecase"
	"github.com/gaze-network/bitmap-watcher/pkg/wsclient"
)

// StreamClient exposes the state of the mempool feed connection.
type StreamClient interface {
	Address() string
	State() wsclient.State
	Connects() int64
	KeepAliveActive() bool
}

type PipelineStats interface {
	Stats() mempool.Stats
	Subscribers() int
}

type HttpHandler struct {
	// ctx ends every open event stream when it's done.
	ctx      context.Context
	usecase  *usecase.Usecase
	stream   StreamClient
	pipeline PipelineStats
}

func New(ctx context.Context, usecase *usecase.Usecase, stream StreamClient, pipeline PipelineStats) *HttpHandler {
	return &HttpHandler{
		ctx:      ctx,
		usecase:  usecase,
		stream:   stream,
		pipeline: pipeline,
	}
}

type HttpResponse[T any] common.HttpResponse[T]

type detection struct {
	InscriptionId string  `json:"inscriptionId"`
	Text          string  `json:"text"`
	ReferenceURL  string  `json:"referenceUrl"`
	Parcel        *uint64 `json:"parcel"`
	Status        string  `json:"status"`
	TipHeight     uint64  `json:"tipHeight"`
	DetectedAt    int64   `json:"detectedAt"`
}

func mapDetection(src entity.Detection) detection {
	return detection{
		InscriptionId: src.InscriptionId,
		Text:          src.Text,
		ReferenceURL:  src.ReferenceURL,
		Parcel:        src.Parcel,
		Status:        src.Status.String(),
		TipHeight:     src.TipHeight,
		DetectedAt:    src.DetectedAt.Unix(),
	}
}
