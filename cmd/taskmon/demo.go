package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mirovis/taskcore/internal/async"
	"github.com/mirovis/taskcore/internal/future"
	"github.com/mirovis/taskcore/internal/task"
)

const (
	demoPipelines = 4
	demoChunks    = 40
)

// runWorkload exercises the framework end to end: several pipelines run in
// parallel, each one an asynchronous producer chained through continuations
// into a reducer, all visible in the task manager.
func (app *application) runWorkload(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < demoPipelines; i++ {
		i := i
		g.Go(func() error {
			return app.runPipeline(gctx, i)
		})
	}
	return g.Wait()
}

// runPipeline produces a batch of values on the pool, then chains a reduce
// step onto the producer's future.
func (app *application) runPipeline(ctx context.Context, n int) error {
	produced := async.Run(app.pool, app.manager, func(op *task.ProgressingTask) ([]int, error) {
		return produceChunks(op, n)
	})

	summed := future.Then(produced, app.pool, func(chunks []int) (int, error) {
		total := 0
		for _, c := range chunks {
			total += c
		}
		return total, nil
	})

	select {
	case <-ctx.Done():
		summed.Cancel()
		<-summed.Done()
		summed.Release()
		return ctx.Err()
	case <-summed.Done():
	}

	total, err := summed.Result()
	if errors.Is(err, future.ErrCanceled) {
		app.logger.Info("pipeline canceled", "pipeline", n)
		return nil
	}
	if err != nil {
		return fmt.Errorf("pipeline %d: %w", n, err)
	}
	app.logger.Info("pipeline completed", "pipeline", n, "total", total)
	return nil
}

// produceChunks is the demo producer body: two weighted phases, the first
// generating values and the second validating them, each reporting progress
// through the standard checkpoints.
func produceChunks(op *task.ProgressingTask, n int) ([]int, error) {
	op.BeginProgressSubStepsWithWeights([]int{3, 1})
	defer op.EndProgressSubSteps()

	if !op.SetProgressText(fmt.Sprintf("pipeline %d: generating", n)) {
		return nil, future.ErrCanceled
	}
	op.SetProgressMaximum(demoChunks)

	chunks := make([]int, 0, demoChunks)
	for i := 0; i < demoChunks; i++ {
		time.Sleep(25 * time.Millisecond)
		chunks = append(chunks, (n+1)*i)
		if !op.SetProgressValue(int64(i + 1)) {
			return nil, future.ErrCanceled
		}
	}

	op.NextProgressSubStep()
	if !op.SetProgressText(fmt.Sprintf("pipeline %d: validating", n)) {
		return nil, future.ErrCanceled
	}
	op.SetProgressMaximum(demoChunks)
	for i, c := range chunks {
		if c < 0 {
			return nil, fmt.Errorf("negative chunk at index %d", i)
		}
		if !op.SetProgressValueIntermittent(int64(i+1), 10) {
			return nil, future.ErrCanceled
		}
	}
	return chunks, nil
}
