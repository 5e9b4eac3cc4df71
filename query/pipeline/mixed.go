package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-kit/log/level"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"

	"github.com/polarsignals/frostpipe/recovery"
)

// mixedWorker is the engine shared by every handle of one mixing stage. It
// merges M input streams into one and distributes that stream round-robin
// over N outputs.
type mixedWorker struct {
	qctx *QueryContext
	n    int

	// sharedNum is the next output index to hand out.
	sharedNum *atomic.Int64

	mtx       sync.RWMutex
	inputs    []Processor
	started   bool
	receivers []*receiver
}

// prepareInputStream spawns one task per input, each forwarding its input's
// items into a single merged stream. Must be called with the write lock held.
func (w *mixedWorker) prepareInputStream() (Stream, error) {
	inputs := len(w.inputs)
	if inputs == 0 {
		return nil, fmt.Errorf("%w: mixed processor inputs cannot be zero", ErrIllegalConnectionState)
	}

	tx, rx := newChannel(inputs)
	defer tx.Close()

	for i, input := range w.inputs {
		branch := tx.Clone()
		if err := w.qctx.ExecuteTask(func(ctx context.Context) {
			w.pump(ctx, i, input, branch)
		}); err != nil {
			branch.Close()
			rx.Close()
			return nil, fmt.Errorf("spawn mixed input %d: %w", i, err)
		}
	}

	return rx, nil
}

// pump pulls one input to completion. An error, whether from Execute, from
// the stream itself or a panic while pulling, is forwarded once and ends the
// branch.
func (w *mixedWorker) pump(ctx context.Context, i int, input Processor, tx *sender) {
	defer tx.Close()

	err := recovery.Do(func() error {
		return w.forward(ctx, i, input, tx)
	}, w.qctx.Logger())()
	if err == nil {
		return
	}
	if serr := tx.Send(ctx, Result{Err: err}); serr != nil {
		w.sendFailed("fan_in", serr, "input", i)
	}
}

// forward sends the items of input to tx. Errors that were not forwarded yet
// are returned.
func (w *mixedWorker) forward(ctx context.Context, i int, input Processor, tx *sender) error {
	stream, err := input.Execute(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		r, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && ctx.Err() != nil {
			return nil
		}

		item := Result{Record: r, Err: err}
		if serr := tx.Send(ctx, item); serr != nil {
			releaseResult(item)
			w.sendFailed("fan_in", serr, "input", i)
			return nil
		}
		if err != nil {
			// Stop pulling data.
			return nil
		}
	}
}

// start builds the fan-in and fan-out tasks. It is a no-op once the worker
// started. Must be called with the write lock held.
func (w *mixedWorker) start(ctx context.Context) error {
	if w.started {
		return nil
	}

	_, span := w.qctx.Tracer().Start(ctx, "MixedProcessor/start")
	defer span.End()

	inputs := len(w.inputs)
	outputs := w.n
	span.SetAttributes(
		attribute.Int("inputs", inputs),
		attribute.Int("outputs", outputs),
	)

	merged, err := w.prepareInputStream()
	if err != nil {
		return err
	}

	senders := make([]*sender, 0, outputs)
	receivers := make([]*receiver, 0, outputs)
	for i := 0; i < outputs; i++ {
		tx, rx := newChannel(inputs)
		senders = append(senders, tx)
		receivers = append(receivers, rx)
	}

	if err := w.qctx.ExecuteTask(func(ctx context.Context) {
		w.distribute(ctx, merged, senders)
	}); err != nil {
		merged.Close()
		return fmt.Errorf("spawn mixed distributor: %w", err)
	}

	w.receivers = receivers
	w.started = true
	w.qctx.Metrics().mixedStarts.Inc()
	return nil
}

// distribute routes the p-th item of the merged stream to output p mod n. It
// stops once the merged stream ends or every output went away.
func (w *mixedWorker) distribute(ctx context.Context, merged Stream, senders []*sender) {
	defer func() {
		for _, tx := range senders {
			tx.Close()
		}
		merged.Close()
	}()

	outputs := len(senders)
	open := outputs
	closed := make([]bool, outputs)
	var index uint64

	for {
		r, err := merged.Next(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil && ctx.Err() != nil {
			return
		}

		item := Result{Record: r, Err: err}
		i := int(index % uint64(outputs))
		index++

		if closed[i] {
			releaseResult(item)
			continue
		}

		if serr := senders[i].Send(ctx, item); serr != nil {
			releaseResult(item)
			if ctx.Err() != nil {
				return
			}
			w.sendFailed("fan_out", serr, "output", i)
			closed[i] = true
			open--
			if open == 0 {
				level.Debug(w.qctx.Logger()).Log("msg", "all mixed processor outputs closed, stopping distributor")
				return
			}
			continue
		}
		w.qctx.Metrics().blocksRouted.Inc()
	}
}

func (w *mixedWorker) sendFailed(side string, err error, keyvals ...interface{}) {
	w.qctx.Metrics().sendFailures.WithLabelValues(side).Inc()
	level.Error(w.qctx.Logger()).Log(append([]interface{}{"msg", "mixed processor cannot push data", "err", err}, keyvals...)...)
}

// MixedProcessor is one output of a mixing stage: M inputs are merged and
// distributed round-robin over N outputs. The creator handle and the handles
// obtained through Share all drive the same worker, which starts on the first
// Execute of any of them.
type MixedProcessor struct {
	worker *mixedWorker
	index  int
}

var _ Processor = (*MixedProcessor)(nil)

// NewMixedProcessor creates a mixing stage with n outputs and returns the
// handle of output 0.
func NewMixedProcessor(qctx *QueryContext, n int) (*MixedProcessor, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, n)
	}

	w := &mixedWorker{
		qctx:      qctx,
		n:         n,
		sharedNum: atomic.NewInt64(1),
	}
	return &MixedProcessor{worker: w, index: 0}, nil
}

// Share returns the handle of the next unassigned output. It fails once all n
// outputs were handed out.
func (p *MixedProcessor) Share() (*MixedProcessor, error) {
	w := p.worker
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	for {
		index := w.sharedNum.Load()
		if index >= int64(w.n) {
			return nil, fmt.Errorf("%w: width is %d", ErrSharedNumOverflow, w.n)
		}
		if w.sharedNum.CompareAndSwap(index, index+1) {
			return &MixedProcessor{worker: w, index: int(index)}, nil
		}
	}
}

// Index is the output this handle owns.
func (p *MixedProcessor) Index() int {
	return p.index
}

// Width is the number of outputs of the stage.
func (p *MixedProcessor) Width() int {
	return p.worker.n
}

func (p *MixedProcessor) Name() string {
	return "MixedProcessor"
}

func (p *MixedProcessor) ConnectTo(input Processor) error {
	w := p.worker
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if w.started {
		return fmt.Errorf("%w: mixed processor already started", ErrIllegalConnectionState)
	}
	w.inputs = append(w.inputs, input)
	return nil
}

func (p *MixedProcessor) Inputs() []Processor {
	w := p.worker
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	inputs := make([]Processor, len(w.inputs))
	copy(inputs, w.inputs)
	return inputs
}

// Execute starts the stage if needed and returns this handle's output.
func (p *MixedProcessor) Execute(ctx context.Context) (Stream, error) {
	w := p.worker
	w.mtx.Lock()
	defer w.mtx.Unlock()

	if err := w.start(ctx); err != nil {
		return nil, err
	}

	rx := w.receivers[p.index]
	if rx == nil {
		return nil, fmt.Errorf("%w: mixed processor output %d", ErrAlreadyExecuted, p.index)
	}
	w.receivers[p.index] = nil
	return rx, nil
}
