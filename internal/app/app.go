package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"SLRAutomation/internal/config"
	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/infrastructure/stageclient"
	"SLRAutomation/internal/infrastructure/telegram"
	"SLRAutomation/internal/logging"
	"SLRAutomation/internal/ports"
	"SLRAutomation/internal/render"
	"SLRAutomation/internal/usecase"
)

// Application wires configs to the pipeline controller and its subscribers.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	invoker ports.StageInvoker
	console *render.Console
	digest  *usecase.DigestSubscriber
}

// New builds a client application that renders to out (stdout when nil).
func New(cfg config.Config, baseLogger *slog.Logger, out io.Writer) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if out == nil {
		out = os.Stdout
	}

	application := &Application{
		cfg:     cfg,
		logger:  baseLogger,
		invoker: stageclient.NewClient(cfg.Pipeline, nil, baseLogger.With("component", "stageclient")),
		console: render.NewConsole(out),
	}

	if cfg.Notifications.Telegram.Enabled() {
		notifier := telegram.NewNotifier(cfg.Notifications.Telegram)
		application.digest = usecase.NewDigestSubscriber(notifier, 0, baseLogger.With("component", "digest"))
	}

	return application
}

// Run drives one topic through all stages and returns once the run completes.
func (a *Application) Run(ctx context.Context, topic string) (domain.PipelineRun, error) {
	done := make(chan domain.PipelineRun, 1)
	waiter := ports.SubscriberFunc(func(run domain.PipelineRun) {
		if !run.Complete() {
			return
		}
		select {
		case done <- run:
		default:
		}
	})

	subscribers := []ports.Subscriber{a.console, waiter}
	if a.digest != nil {
		subscribers = append(subscribers, a.digest)
	}

	controller := usecase.NewController(usecase.ControllerDeps{
		Invoker:     a.invoker,
		Subscribers: subscribers,
		Logger:      a.logger.With("component", "controller"),
	})

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var final domain.PipelineRun
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		defer stop()
		if err := controller.Submit(gctx, topic); err != nil {
			return fmt.Errorf("submit topic: %w", err)
		}
		select {
		case final = <-done:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	err := g.Wait()
	if a.digest != nil {
		a.digest.Wait()
	}

	if final.Complete() && (err == nil || errors.Is(err, context.Canceled)) {
		return final, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	return final, err
}
