package batch

import (
	"context"
	"time"

	"github.com/TravelModellingGroup/emmebridge/internal/bridge"
	apperrors "github.com/TravelModellingGroup/emmebridge/internal/errors"
	"github.com/TravelModellingGroup/emmebridge/internal/protocol"
)

// Invoker runs one operation. *bridge.Session implements it.
type Invoker interface {
	Invoke(operation string, payload []byte, level protocol.LogbookLevel, onProgress bridge.ProgressFunc) (bridge.Result, error)
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Step     Step
	Result   bridge.Result
	Err      error
	Duration time.Duration
}

// Report summarizes a batch run.
type Report struct {
	Results []StepResult
	// Skipped counts steps that never ran because the batch stopped early.
	Skipped int
}

// Failed returns the number of steps that returned an error.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Hooks observe a batch run. Every field is optional.
type Hooks struct {
	// BeforeStep runs before each step is sent.
	BeforeStep func(index int, step Step)
	// Progress receives progress reports of the running step.
	Progress func(index int, fraction float32)
	// AfterStep runs once each step has an outcome.
	AfterStep func(result StepResult)
}

// Run sends each step of f to inv in order. It stops at the first
// connectivity error, at the first tool error unless f.ContinueOnError is
// set, and when ctx is done. The returned error is the one that stopped the
// batch; tool errors tolerated by ContinueOnError are only in the report.
func Run(ctx context.Context, inv Invoker, f *File, hooks Hooks) (Report, error) {
	report := Report{Results: make([]StepResult, 0, len(f.Steps))}

	for i, step := range f.Steps {
		if err := ctx.Err(); err != nil {
			report.Skipped = len(f.Steps) - i
			return report, err
		}

		if hooks.BeforeStep != nil {
			hooks.BeforeStep(i, step)
		}
		var onProgress bridge.ProgressFunc
		if hooks.Progress != nil {
			idx := i
			onProgress = func(fraction float32) { hooks.Progress(idx, fraction) }
		}

		start := time.Now()
		res, err := inv.Invoke(step.Operation, step.Data(), step.Level(), onProgress)
		result := StepResult{Index: i, Step: step, Result: res, Err: err, Duration: time.Since(start)}
		report.Results = append(report.Results, result)
		if hooks.AfterStep != nil {
			hooks.AfterStep(result)
		}

		if err == nil {
			continue
		}
		if apperrors.IsFatal(err) || !f.ContinueOnError {
			report.Skipped = len(f.Steps) - i - 1
			return report, apperrors.Wrapf(err, "operation %d (%s)", i, step.Operation)
		}
	}
	return report, nil
}
