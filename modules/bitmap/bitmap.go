package bitmap

import (
	"context"
	"strings"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/core/worker"
	"github.com/gaze-network/bitmap-watcher/internal/config"
	"github.com/gaze-network/bitmap-watcher/internal/postgres"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/api/httphandler"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/datagateway"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/mempool"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/repository/memory"
	bitmappostgres "github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/repository/postgres"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap/internal/usecase"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
	"github.com/gaze-network/bitmap-watcher/pkg/mempoolspace"
	"github.com/gaze-network/bitmap-watcher/pkg/ordinalscom"
	"github.com/gaze-network/bitmap-watcher/pkg/unisat"
	"github.com/gaze-network/bitmap-watcher/pkg/wsclient"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
)

func New(injector do.Injector) (worker.Worker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	moduleConf := conf.Modules.Bitmap

	if conf.Stream.URL == "" {
		return nil, errors.Wrap(errs.InvalidArgument, "stream url is required")
	}

	var detectionDg datagateway.DetectionDataGateway
	var cleanupFuncs []func(context.Context) error
	switch strings.ToLower(moduleConf.Database) {
	case "postgresql", "postgres", "pg":
		pg, err := postgres.NewPool(ctx, moduleConf.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return nil, errors.Wrap(err, "Invalid Postgres configuration for bitmap module")
			}
			return nil, errors.Wrap(err, "can't create Postgres connection pool")
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		detectionDg = bitmappostgres.NewRepository(pg)
	case "memory", "":
		repo, err := memory.NewRepository(utils.Default(moduleConf.MemorySize, DefaultMemorySize))
		if err != nil {
			return nil, errors.Wrap(err, "can't create in-memory repository")
		}
		detectionDg = repo
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q database for bitmap module is not supported", moduleConf.Database)
	}

	bitmapUsecase := usecase.New(
		detectionDg,
		do.MustInvoke[*mempoolspace.Client](injector),
		do.MustInvoke[*unisat.Client](injector),
		do.MustInvoke[*ordinalscom.Client](injector),
		usecase.Options{
			SearchCacheSize: moduleConf.SearchCacheSize,
			SearchCacheTTL:  moduleConf.SearchCacheTTL,
		},
	)

	pipeline := mempool.NewPipeline(conf.Stream.ReferenceBaseURL, nil)
	dialer := wsclient.NewGorillaDialer(
		wsclient.WithHandshakeTimeout(conf.Stream.HandshakeTimeout),
		wsclient.WithReadLimit(conf.Stream.ReadLimit),
	)
	streamOpts := []wsclient.Option{
		wsclient.WithRetryDelay(conf.Stream.RetryDelay),
		wsclient.WithPingInterval(conf.Stream.PingInterval),
	}
	if conf.Stream.PingMessage != "" {
		streamOpts = append(streamOpts, wsclient.WithPingMessage([]byte(conf.Stream.PingMessage)))
	}
	streamClient := wsclient.New(conf.Stream.URL, dialer, pipeline, streamOpts...)

	// Mount API
	apiHandlers := lo.Uniq(moduleConf.APIHandlers)
	for _, handler := range apiHandlers {
		switch handler {
		case "http":
			httpServer := do.MustInvoke[*fiber.App](injector)
			bitmapHTTPHandler := httphandler.New(ctx, bitmapUsecase, streamClient, pipeline)
			if err := bitmapHTTPHandler.Mount(httpServer); err != nil {
				return nil, errors.Wrap(err, "can't mount bitmap API")
			}
			logger.InfoContext(ctx, "Mounted HTTP handler", slogx.String("module", "bitmap"))
		default:
			return nil, errors.Wrapf(errs.Unsupported, "%q API handler is not supported", handler)
		}
	}

	tipPoller := worker.NewPoller("tip_height",
		utils.Default(moduleConf.TipPollInterval, DefaultTipPollInterval),
		func(ctx context.Context) error {
			_, err := bitmapUsecase.RefreshTipHeight(ctx)
			return errors.WithStack(err)
		},
		nil,
	)

	return NewWorker(streamClient, NewProcessor(pipeline, bitmapUsecase), tipPoller, cleanupFuncs), nil
}
