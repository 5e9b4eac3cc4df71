package pipeline

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// QueryContext is the cancellation scope of one query. Every task a stage
// spawns runs on its own goroutine bound to the query's context.
type QueryContext struct {
	id      ulid.ULID
	logger  log.Logger
	tracer  trace.Tracer
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mtx    sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*QueryContext)

func WithMetrics(m *Metrics) Option {
	return func(c *QueryContext) {
		c.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *QueryContext) {
		c.tracer = tracer
	}
}

func WithQueryID(id ulid.ULID) Option {
	return func(c *QueryContext) {
		c.id = id
	}
}

func NewQueryContext(ctx context.Context, logger log.Logger, options ...Option) *QueryContext {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	c := &QueryContext{
		id:     ulid.Make(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, option := range options {
		option(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(prometheus.NewRegistry())
	}

	c.logger = log.With(logger, "query", c.id.String())
	c.ctx, c.cancel = context.WithCancel(ctx)
	return c
}

func (c *QueryContext) ID() ulid.ULID {
	return c.id
}

func (c *QueryContext) Logger() log.Logger {
	return c.logger
}

func (c *QueryContext) Tracer() trace.Tracer {
	return c.tracer
}

func (c *QueryContext) Metrics() *Metrics {
	return c.metrics
}

// Context returns the query's cancellation scope.
func (c *QueryContext) Context() context.Context {
	return c.ctx
}

// ExecuteTask runs task on a new goroutine. It fails if the query context was
// already closed or cancelled, in which case the task is never run.
func (c *QueryContext) ExecuteTask(task func(ctx context.Context)) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.closed || c.ctx.Err() != nil {
		c.metrics.tasksRejected.Inc()
		return ErrQueryClosed
	}

	c.wg.Add(1)
	c.metrics.tasksSpawned.Inc()
	go func() {
		defer c.wg.Done()
		task(c.ctx)
	}()
	return nil
}

// Wait blocks until every spawned task returned on its own. It must not be
// called concurrently with ExecuteTask.
func (c *QueryContext) Wait() {
	c.wg.Wait()
}

// Close cancels every running task and waits for them to return.
func (c *QueryContext) Close() {
	c.mtx.Lock()
	c.closed = true
	c.mtx.Unlock()

	c.cancel()
	c.wg.Wait()
}
