package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/polarsignals/frostpipe/recovery"
)

// Pipe is a set of processors that run in parallel at the same stage of a
// pipeline.
type Pipe []Processor

// Pipeline is a chain of pipes. Every processor of a pipe reads from the
// processors of the previous pipe it is connected to.
type Pipeline struct {
	qctx  *QueryContext
	pipes []Pipe
}

func NewPipeline(qctx *QueryContext) *Pipeline {
	return &Pipeline{qctx: qctx}
}

// AddSource adds a processor to the first pipe. Sources can only be added
// before any other stage.
func (p *Pipeline) AddSource(source Processor) error {
	switch len(p.pipes) {
	case 0:
		p.pipes = append(p.pipes, Pipe{source})
	case 1:
		p.pipes[0] = append(p.pipes[0], source)
	default:
		return fmt.Errorf("%w: cannot add source %q after other stages", ErrIllegalConnectionState, source.Name())
	}
	return nil
}

// Mix connects every processor of the last pipe to a new mixing stage with n
// outputs.
func (p *Pipeline) Mix(n int) error {
	last := p.LastPipe()
	if len(last) == 0 {
		return fmt.Errorf("%w: cannot mix an empty pipeline", ErrIllegalConnectionState)
	}

	creator, err := NewMixedProcessor(p.qctx, n)
	if err != nil {
		return err
	}
	for _, input := range last {
		if err := creator.ConnectTo(input); err != nil {
			return err
		}
	}

	pipe := make(Pipe, 0, n)
	pipe = append(pipe, creator)
	for i := 1; i < n; i++ {
		share, err := creator.Share()
		if err != nil {
			return err
		}
		pipe = append(pipe, share)
	}
	p.pipes = append(p.pipes, pipe)
	return nil
}

// Merge funnels the last pipe into a single processor. It is a no-op if the
// last pipe already has one processor.
func (p *Pipeline) Merge() error {
	if len(p.LastPipe()) == 1 {
		return nil
	}
	return p.Mix(1)
}

func (p *Pipeline) LastPipe() Pipe {
	if len(p.pipes) == 0 {
		return nil
	}
	return p.pipes[len(p.pipes)-1]
}

// NumOutputs is the number of streams Execute returns.
func (p *Pipeline) NumOutputs() int {
	return len(p.LastPipe())
}

// Execute executes every processor of the last pipe and returns their
// streams in pipe order. Streams obtained before a failure are closed.
func (p *Pipeline) Execute(ctx context.Context) ([]Stream, error) {
	last := p.LastPipe()
	if len(last) == 0 {
		return nil, fmt.Errorf("%w: empty pipeline", ErrIllegalConnectionState)
	}

	streams := make([]Stream, 0, len(last))
	for _, proc := range last {
		s, err := proc.Execute(ctx)
		if err != nil {
			for _, s := range streams {
				s.Close()
			}
			return nil, fmt.Errorf("execute %s: %w", proc.Name(), err)
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// Collect executes the pipeline and drains all outputs concurrently, calling
// fn for every record. fn is called from one goroutine per output and takes
// ownership of the record. The first error item of any output, error of fn
// or panic aborts the collection.
func (p *Pipeline) Collect(ctx context.Context, fn func(output int, r arrow.Record) error) error {
	ctx, span := p.qctx.Tracer().Start(ctx, "Pipeline/Collect")
	defer span.End()
	span.SetAttributes(attribute.Int("outputs", p.NumOutputs()))

	streams, err := p.Execute(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range streams {
			s.Close()
		}
	}()

	errg, ctx := errgroup.WithContext(ctx)
	for i, s := range streams {
		errg.Go(recovery.Do(func() error {
			for {
				r, err := s.Next(ctx)
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("output %d: %w", i, err)
				}
				if err := fn(i, r); err != nil {
					return err
				}
			}
		}, p.qctx.Logger()))
	}
	return errg.Wait()
}

// Draw renders the pipeline, last pipe first.
func (p *Pipeline) Draw() *Diagram {
	var d *Diagram
	for _, pipe := range p.pipes {
		if len(pipe) == 0 {
			continue
		}
		d = &Diagram{
			Details: fmt.Sprintf("%s x%d", pipe[0].Name(), len(pipe)),
			Child:   d,
		}
	}
	return d
}

type Diagram struct {
	Details string
	Child   *Diagram
}

func (d *Diagram) String() string {
	if d == nil {
		return ""
	}
	if d.Child == nil {
		return d.Details
	}
	child := d.Child.String()
	if child == "" {
		return d.Details
	}
	return d.Details + " - " + child
}
