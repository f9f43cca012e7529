package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/ports"
)

// ControllerDeps wires the remote invoker and snapshot observers into the controller.
type ControllerDeps struct {
	Invoker     ports.StageInvoker
	Subscribers []ports.Subscriber
	Logger      *slog.Logger
	Fallback    func(topic string) domain.QuestionSet
	Now         func() time.Time
}

// Controller drives a topic through question generation, query generation and
// record scraping, one stage at a time. All state lives on the goroutine
// running Run; Submit and stage completions reach it over channels.
type Controller struct {
	invoker     ports.StageInvoker
	subscribers []ports.Subscriber
	logger      *slog.Logger
	fallback    func(topic string) domain.QuestionSet
	now         func() time.Time

	submits     chan string
	completions chan completion
	done        chan struct{}

	// owned by the loop goroutine
	seq       uint64
	run       domain.PipelineRun
	runCtx    context.Context
	cancelRun context.CancelFunc
}

type completion struct {
	seq       uint64
	stage     domain.Stage
	questions domain.StageResult[domain.QuestionSet]
	queries   domain.StageResult[domain.QuerySet]
	records   domain.StageResult[domain.RecordSet]
}

// NewController constructs the orchestration component.
func NewController(deps ControllerDeps) *Controller {
	c := &Controller{
		invoker:     deps.Invoker,
		subscribers: deps.Subscribers,
		logger:      deps.Logger,
		fallback:    deps.Fallback,
		now:         deps.Now,
		submits:     make(chan string),
		completions: make(chan completion),
		done:        make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.fallback == nil {
		c.fallback = FallbackQuestions
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Submit starts a new run for topic, superseding any run in flight. It returns
// once the controller loop has accepted the topic; stage calls proceed in the
// background.
func (c *Controller) Submit(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.ErrEmptyTopic
	}

	select {
	case c.submits <- topic:
		return nil
	case <-c.done:
		return fmt.Errorf("controller stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes submissions and stage completions until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if c.invoker == nil {
		return fmt.Errorf("stage invoker is not configured")
	}
	defer close(c.done)
	defer c.cancelCurrent()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case topic := <-c.submits:
			c.start(ctx, topic)
		case res := <-c.completions:
			c.complete(res)
		}
	}
}

func (c *Controller) start(ctx context.Context, topic string) {
	c.cancelCurrent()

	c.seq++
	runCtx, cancel := context.WithCancel(ctx)
	c.runCtx, c.cancelRun = runCtx, cancel

	c.run = domain.NewPipelineRun(c.seq, uuid.NewString(), topic, c.now())
	c.run.Questions = domain.Loading[domain.QuestionSet]()
	c.logger.Info("run started", "run_id", c.run.RunID, "seq", c.seq, "topic", topic)
	c.publish()

	seq := c.seq
	c.dispatch(func() completion {
		return completion{
			seq:       seq,
			stage:     domain.StageQuestionGeneration,
			questions: c.invoker.GenerateQuestions(runCtx, topic),
		}
	})
}

func (c *Controller) complete(res completion) {
	if res.seq != c.seq {
		c.logger.Debug("discard response",
			"stage", res.stage.String(),
			"seq", res.seq,
			"current_seq", c.seq,
			"reason", domain.ErrStaleResponse)
		return
	}

	switch res.stage {
	case domain.StageQuestionGeneration:
		c.completeQuestions(res.questions)
	case domain.StageQueryGeneration:
		c.completeQueries(res.queries)
	case domain.StageRecordScraping:
		c.completeRecords(res.records)
	}
}

func (c *Controller) completeQuestions(result domain.StageResult[domain.QuestionSet]) {
	questions := result.Payload
	if cause := domain.Cause(result); cause != nil {
		questions = c.fallback(c.run.Topic)
		c.logger.Warn("question generation unusable, applying fallback",
			"run_id", c.run.RunID, "error", cause)
	}
	c.run.Questions = domain.Succeeded(questions)
	c.publish()

	c.run.Queries = domain.Loading[domain.QuerySet]()
	c.publish()

	seq, topic, runCtx := c.seq, c.run.Topic, c.runCtx
	questions = append(domain.QuestionSet(nil), questions...)
	c.dispatch(func() completion {
		return completion{
			seq:     seq,
			stage:   domain.StageQueryGeneration,
			queries: c.invoker.GenerateQueries(runCtx, topic, questions),
		}
	})
}

func (c *Controller) completeQueries(result domain.StageResult[domain.QuerySet]) {
	c.run.Queries = terminalState(result)
	c.logStage(domain.StageQueryGeneration, domain.Cause(result))
	c.publish()

	c.run.Records = domain.Loading[domain.RecordSet]()
	c.publish()

	seq, topic, runCtx := c.seq, c.run.Topic, c.runCtx
	c.dispatch(func() completion {
		return completion{
			seq:     seq,
			stage:   domain.StageRecordScraping,
			records: c.invoker.ScrapeRecords(runCtx, topic),
		}
	})
}

func (c *Controller) completeRecords(result domain.StageResult[domain.RecordSet]) {
	c.run.Records = terminalState(result)
	c.logStage(domain.StageRecordScraping, domain.Cause(result))
	c.publish()

	c.logger.Info("run complete",
		"run_id", c.run.RunID,
		"seq", c.run.Seq,
		"questions", len(c.run.Questions.Payload),
		"queries", len(c.run.Queries.Payload),
		"records", len(c.run.Records.Payload),
		"duration", c.now().Sub(c.run.StartedAt))
	c.cancelCurrent()
}

// dispatch runs a remote call off the loop and hands its result back. The
// send is abandoned if the loop has already exited.
func (c *Controller) dispatch(call func() completion) {
	go func() {
		res := call()
		select {
		case c.completions <- res:
		case <-c.done:
		}
	}()
}

func (c *Controller) publish() {
	for _, sub := range c.subscribers {
		sub.OnSnapshot(c.run.Clone())
	}
}

func (c *Controller) cancelCurrent() {
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
}

func (c *Controller) logStage(stage domain.Stage, cause error) {
	if cause == nil {
		c.logger.Debug("stage succeeded", "run_id", c.run.RunID, "stage", stage.String())
		return
	}
	c.logger.Info("stage produced no results", "run_id", c.run.RunID, "stage", stage.String(), "error", cause)
}

func terminalState[T any](result domain.StageResult[T]) domain.StageState[T] {
	if !result.OK() {
		return domain.Failed[T]()
	}
	return domain.Succeeded(result.Payload)
}
