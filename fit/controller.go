// Package fit fills article templates and runs the auto-fit loop that
// rewrites the body until it fits its columns.
package fit

import (
	"context"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/sagarsiwach/sanews-autofit/article"
	"github.com/sagarsiwach/sanews-autofit/oracle"
)

const (
	DefaultMaxIterations = 5
	DefaultTolerance     = 5.0
)

// Host writes text into slots and measures how far the text overflows.
type Host interface {
	SetText(ctx context.Context, slot article.Slot, text string) error
	MeasureOverflow(ctx context.Context, slot article.Slot) (float64, error)
}

// Adjuster rewrites an article body towards a target word count.
type Adjuster interface {
	Adjust(ctx context.Context, req oracle.Request) (string, error)
}

// Phase is the state of an auto-fit run.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseConverged
	PhaseMaxIterations
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "RUNNING"
	case PhaseConverged:
		return "CONVERGED"
	case PhaseMaxIterations:
		return "MAX_ITERATIONS_REACHED"
	case PhaseFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Outcome is the terminal state of a run. Overflow is the last measured
// value; Err is set only when Phase is PhaseFailed.
type Outcome struct {
	Phase     Phase
	Iteration int
	Overflow  float64
	Body      string
	Err       error
}

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Logger        *log.Logger
	MaxIterations int
	Tolerance     float64
}

// Controller drives fills and auto-fit runs against a Host. Runs are
// sequential; a Controller must not be shared by concurrent runs.
type Controller struct {
	host     Host
	adjuster Adjuster
	logger   *log.Logger
	maxIter  int
	tol      float64
}

// NewController creates a Controller. adjuster may be nil for fill-only use.
func NewController(host Host, adjuster Adjuster, opts Options) *Controller {
	c := &Controller{
		host:     host,
		adjuster: adjuster,
		logger:   opts.Logger,
		maxIter:  opts.MaxIterations,
		tol:      opts.Tolerance,
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.maxIter <= 0 {
		c.maxIter = DefaultMaxIterations
	}
	if c.tol <= 0 {
		c.tol = DefaultTolerance
	}
	return c
}

// Job is one operation on one article frame.
type Job struct {
	RunID   string
	Layout  article.Layout
	Content article.Content
	Events  chan<- Event
}

func (j *Job) ensureRunID() {
	if j.RunID == "" {
		j.RunID = NewRunID()
	}
}

// Fill writes every slot once and reports the overflow of the last column.
// Layouts without columns, or content without a body, report no overflow.
func (c *Controller) Fill(ctx context.Context, job Job) (FillComplete, error) {
	job.ensureRunID()
	logger := c.logger.With("run", job.RunID)

	for _, f := range job.Layout.Fields(job.Content) {
		if err := c.host.SetText(ctx, f.Slot, f.Text); err != nil {
			return c.failFill(ctx, job, WrapError(KindMeasurement, err, "failed to write %s", f.Slot.Name()))
		}
	}

	var result FillComplete
	if len(job.Layout.Columns) > 0 && job.Content.Body != "" {
		overflow, err := c.fillColumns(ctx, job.Layout, job.Content.Dateline, job.Content.Body)
		if err != nil {
			return c.failFill(ctx, job, err)
		}
		result = FillComplete{Overflow: overflow, NeedsAdjustment: overflow > c.tol}
	}
	logger.Info("fill complete", "overflow", result.Overflow, "needsAdjustment", result.NeedsAdjustment)
	Emit(ctx, job.Events, Event{Type: EventFillComplete, RunID: job.RunID, Data: result})
	return result, nil
}

func (c *Controller) failFill(ctx context.Context, job Job, err error) (FillComplete, error) {
	c.logger.Error("fill failed", "run", job.RunID, "err", err)
	Emit(ctx, job.Events, ErrorEvent(job.RunID, err))
	return FillComplete{}, err
}

// AutoFit repeatedly distributes the body, measures the last column and asks
// the adjuster for a rewrite until the overflow is within tolerance or the
// iteration ceiling is hit. The context is only consulted between
// iterations; an iteration that has started always completes.
func (c *Controller) AutoFit(ctx context.Context, job Job) Outcome {
	job.ensureRunID()
	logger := c.logger.With("run", job.RunID)

	if len(job.Layout.Columns) == 0 {
		return c.terminate(ctx, job, Outcome{Phase: PhaseFailed, Err: NewError(KindSelection, MsgNoColumns)})
	}
	if c.adjuster == nil {
		return c.terminate(ctx, job, Outcome{Phase: PhaseFailed, Err: NewError(KindOracle, "no length adjuster configured")})
	}

	last := job.Layout.LastColumn()
	state := Outcome{Phase: PhaseRunning, Body: job.Content.Body}

	for {
		if err := ctx.Err(); err != nil {
			state.Phase, state.Err = PhaseFailed, fmt.Errorf("auto-fit stopped before iteration %d: %w", state.Iteration+1, err)
			return c.terminate(ctx, job, state)
		}

		state.Iteration++
		// a started iteration runs to completion; only the timeouts of the
		// host and adjuster bound it
		work := context.WithoutCancel(ctx)
		logger.Debug("iteration start", "iteration", state.Iteration)
		Emit(ctx, job.Events, Event{Type: EventIterationUpdate, RunID: job.RunID, Data: IterationUpdate{Iteration: state.Iteration}})

		overflow, err := c.fillColumns(work, job.Layout, job.Content.Dateline, state.Body)
		if err != nil {
			state.Phase, state.Err = PhaseFailed, err
			return c.terminate(ctx, job, state)
		}
		state.Overflow = overflow
		logger.Debug("measured", "iteration", state.Iteration, "overflow", overflow)

		if math.Abs(overflow) <= c.tol {
			state.Phase = PhaseConverged
			return c.terminate(ctx, job, state)
		}
		if state.Iteration >= c.maxIter {
			state.Phase = PhaseMaxIterations
			return c.terminate(ctx, job, state)
		}

		req := oracle.Request{
			Text:            state.Body,
			CurrentWords:    WordCount(state.Body),
			NeedsCondensing: overflow > 0,
		}
		req.TargetWords = TargetWords(req.CurrentWords, last.Height(), overflow)
		logger.Debug("adjusting", "iteration", state.Iteration, "current", req.CurrentWords, "target", req.TargetWords, "condense", req.NeedsCondensing)

		adjusted, err := c.adjuster.Adjust(work, req)
		if err != nil {
			state.Phase = PhaseFailed
			state.Err = WrapError(KindOracle, err, "%s API error", providerName(c.adjuster))
			return c.terminate(ctx, job, state)
		}
		state.Body = adjusted
	}
}

// fillColumns distributes body over the columns and measures the last one.
func (c *Controller) fillColumns(ctx context.Context, layout article.Layout, dateline, body string) (float64, error) {
	texts := Distribute(dateline, body, len(layout.Columns))
	for i, col := range layout.Columns {
		if err := c.host.SetText(ctx, col, texts[i]); err != nil {
			return 0, WrapError(KindMeasurement, err, "failed to write column %d", i+1)
		}
	}
	overflow, err := c.host.MeasureOverflow(ctx, layout.LastColumn())
	if err != nil {
		return 0, WrapError(KindMeasurement, err, "failed to measure overflow")
	}
	return overflow, nil
}

func (c *Controller) terminate(ctx context.Context, job Job, out Outcome) Outcome {
	if out.Phase == PhaseFailed {
		c.logger.Error("auto-fit failed", "run", job.RunID, "iteration", out.Iteration, "err", out.Err)
		Emit(ctx, job.Events, ErrorEvent(job.RunID, out.Err))
		return out
	}
	c.logger.Info("auto-fit complete", "run", job.RunID, "phase", out.Phase, "iterations", out.Iteration, "overflow", out.Overflow)
	Emit(ctx, job.Events, Event{
		Type:  EventAutoFitComplete,
		RunID: job.RunID,
		Data: AutoFitComplete{
			Iterations: out.Iteration,
			Overflow:   out.Overflow,
			MaxReached: out.Phase == PhaseMaxIterations,
		},
	})
	return out
}

func providerName(a Adjuster) string {
	if p, ok := a.(interface{ Provider() string }); ok {
		return p.Provider()
	}
	return "Claude"
}
