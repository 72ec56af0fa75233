package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/bitmap-watcher/common/errs"
	"github.com/gaze-network/bitmap-watcher/core/worker"
	"github.com/gaze-network/bitmap-watcher/internal/config"
	"github.com/gaze-network/bitmap-watcher/modules/bitmap"
	"github.com/gaze-network/bitmap-watcher/pkg/automaxprocs"
	"github.com/gaze-network/bitmap-watcher/pkg/errorhandler"
	"github.com/gaze-network/bitmap-watcher/pkg/logger"
	"github.com/gaze-network/bitmap-watcher/pkg/logger/slogx"
	"github.com/gaze-network/bitmap-watcher/pkg/mempoolspace"
	"github.com/gaze-network/bitmap-watcher/pkg/middleware/requestcontext"
	"github.com/gaze-network/bitmap-watcher/pkg/middleware/requestlogger"
	"github.com/gaze-network/bitmap-watcher/pkg/ordinalscom"
	"github.com/gaze-network/bitmap-watcher/pkg/unisat"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// Register Modules
var Modules = do.Package(
	do.LazyNamed("bitmap", bitmap.New),
)

func NewRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start bitmap watcher service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := automaxprocs.Init(); err != nil {
				logger.Error("Failed to set GOMAXPROCS", slogx.Error(err))
			}
			return runHandler(cmd, args)
		},
	}

	// Add local flags
	flags := runCmd.Flags()
	flags.Bool("api-only", false, "Run only API server")
	flags.String("modules", "bitmap", "Enable specific modules to run. E.g. `bitmap`")
	flags.String("stream-url", "", "WebSocket address of the mempool event feed")

	// Bind flags to configuration
	config.BindPFlag("api_only", flags.Lookup("api-only"))
	config.BindPFlag("enable_modules", flags.Lookup("modules"))
	config.BindPFlag("stream.url", flags.Lookup("stream-url"))

	return runCmd
}

const (
	shutdownTimeout = 60 * time.Second
)

func runHandler(cmd *cobra.Command, _ []string) error {
	conf := config.Load()

	// Validate inputs and configurations
	{
		if !conf.Network.IsSupported() {
			return errors.Wrapf(errs.Unsupported, "%q network is not supported", conf.Network.String())
		}
	}

	// Initialize application process context
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	injector := do.New(Modules)
	do.ProvideValue(injector, conf)
	do.ProvideValue(injector, ctx)

	// Initialize mempool.space REST client
	do.Provide(injector, func(i do.Injector) (*mempoolspace.Client, error) {
		conf := do.MustInvoke[config.Config](i)
		client, err := mempoolspace.New(mempoolspace.Config{
			BaseURL: conf.MempoolSpace.BaseURL,
			Network: conf.Network,
			Debug:   conf.MempoolSpace.Debug,
		})
		if err != nil {
			return nil, errors.Wrap(err, "invalid mempool.space configuration")
		}
		return client, nil
	})

	// Initialize unisat text search client
	do.Provide(injector, func(i do.Injector) (*unisat.Client, error) {
		conf := do.MustInvoke[config.Config](i)
		return unisat.New(unisat.Config{
			BaseURL:    conf.Unisat.BaseURL,
			Timeout:    conf.Unisat.Timeout,
			RetryCount: conf.Unisat.RetryCount,
			Debug:      conf.Unisat.Debug,
		}), nil
	})

	// Initialize ordinals.com inscription page client
	do.Provide(injector, func(i do.Injector) (*ordinalscom.Client, error) {
		conf := do.MustInvoke[config.Config](i)
		client, err := ordinalscom.New(ordinalscom.Config{
			BaseURL:  conf.Ordinals.BaseURL,
			Timeout:  conf.Ordinals.Timeout,
			RetryMax: conf.Ordinals.RetryMax,
		})
		if err != nil {
			return nil, errors.Wrap(err, "invalid ordinals.com configuration")
		}
		return client, nil
	})

	// Initialize HTTP server
	do.Provide(injector, func(i do.Injector) (*fiber.App, error) {
		app := fiber.New(fiber.Config{
			AppName:      "Bitmap Watcher",
			ErrorHandler: errorhandler.NewHTTPErrorHandler(),
			JSONEncoder:  sonic.Marshal,
			JSONDecoder:  sonic.Unmarshal,
		})
		app.
			Use(favicon.New()).
			Use(cors.New()).
			Use(requestid.New()).
			Use(requestcontext.New(
				requestcontext.WithRequestId(),
				requestcontext.WithClientIP(conf.HTTPServer.RequestIP),
			)).
			Use(requestlogger.New(conf.HTTPServer.Logger)).
			Use(fiberrecover.New(fiberrecover.Config{
				EnableStackTrace: true,
				StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
					buf := make([]byte, 1024) // bufLen = 1024
					buf = buf[:runtime.Stack(buf, false)]
					logger.ErrorContext(c.UserContext(), "Something went wrong, panic in http handler", errors.Errorf("panic: %v", e), slog.String("stacktrace", string(buf)))
				},
			})).
			Use(compress.New(compress.Config{
				Level: compress.LevelDefault,
				Next: func(c *fiber.Ctx) bool {
					// event streams are flushed per event
					return strings.HasSuffix(c.Path(), "/stream")
				},
			}))

		// Health check
		app.Get("/", func(c *fiber.Ctx) error {
			return errors.WithStack(c.SendStatus(http.StatusOK))
		})

		return app, nil
	})

	// Initialize worker context to separate worker's lifecycle from main process
	ctxWorker, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	// Add logger context
	ctxWorker = logger.WithContext(ctxWorker, slogx.Stringer("network", conf.Network))

	// Run modules
	{
		modules := lo.Map(conf.EnableModules, func(item string, _ int) string { return strings.TrimSpace(item) })
		modules = lo.Uniq(modules)
		modules = lo.Filter(modules, func(item string, _ int) bool { return item != "" })
		for _, module := range modules {
			ctx := logger.WithContext(ctxWorker, slogx.String("module", module))

			w, err := do.InvokeNamed[worker.Worker](injector, module)
			if err != nil {
				if errors.Is(err, do.ErrServiceNotFound) {
					return errors.Errorf("Module %q is not supported", module)
				}
				return errors.Wrapf(err, "can't init module %q", module)
			}

			// Run worker
			if !conf.APIOnly {
				go func() {
					// stop main process if worker stopped
					defer stop()

					logger.InfoContext(ctx, "Starting Bitmap Watcher")
					if err := w.Run(ctx); err != nil {
						logger.PanicContext(ctx, "Something went wrong, error during running worker", slogx.Error(err))
					}
				}()
			}
		}
	}

	// Run API server
	httpServer := do.MustInvoke[*fiber.App](injector)
	go func() {
		// stop main process if API stopped
		defer stop()

		logger.InfoContext(ctx, "Started HTTP server", slog.Int("port", conf.HTTPServer.Port))
		if err := httpServer.Listen(fmt.Sprintf(":%d", conf.HTTPServer.Port)); err != nil {
			logger.PanicContext(ctx, "Something went wrong, error during running HTTP server", slogx.Error(err))
		}
	}()

	// Stop application if worker context is done
	go func() {
		<-ctxWorker.Done()
		defer stop()

		logger.InfoContext(ctx, "Bitmap Watcher Worker is stopped. Stopping application...")
	}()

	logger.InfoContext(ctxWorker, "Bitmap Watcher started")

	// Wait for interrupt signal to gracefully stop the server
	<-ctx.Done()

	// Force shutdown if timeout exceeded or got signal again
	go func() {
		defer os.Exit(1)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		select {
		case <-ctx.Done():
			logger.FatalContext(ctx, "Received exit signal again. Force shutdown...")
		case <-time.After(shutdownTimeout + 15*time.Second):
			logger.FatalContext(ctx, "Shutdown timeout exceeded. Force shutdown...")
		}
	}()

	// Stop the HTTP server first so event streams are released before the modules
	if err := httpServer.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.ErrorContext(ctx, "Error during shutdown HTTP server", err)
	}

	if err := injector.Shutdown(); err != nil {
		logger.PanicContext(ctx, "Failed while gracefully shutting down", slogx.Error(err))
	}

	return nil
}
