// Package thinking executes campaign thinking patterns: DAGs of typed steps
// scheduled by dependency readiness and priority.
package thinking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/recovery"
)

// Executor runs the business logic of one step. The returned map becomes the
// step's result and is visible to dependent steps.
type Executor interface {
	ExecuteStep(ctx context.Context, pattern *model.ThinkingPattern, step *model.ThinkingStep) (map[string]any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, pattern *model.ThinkingPattern, step *model.ThinkingStep) (map[string]any, error)

func (f ExecutorFunc) ExecuteStep(ctx context.Context, pattern *model.ThinkingPattern, step *model.ThinkingStep) (map[string]any, error) {
	return f(ctx, pattern, step)
}

// Status is a point-in-time view of a pattern run.
type Status struct {
	PatternID           string             `json:"pattern_id"`
	PatternName         string             `json:"pattern_name"`
	State               model.PatternState `json:"state"`
	TotalSteps          int                `json:"total_steps"`
	CompletedSteps      int                `json:"completed_steps"`
	FailedSteps         int                `json:"failed_steps"`
	InProgressSteps     int                `json:"in_progress_steps"`
	SkippedSteps        int                `json:"skipped_steps"`
	ProgressPercentage  float64            `json:"progress_percentage"`
	CurrentStage        string             `json:"current_stage"`
	EstimatedCompletion time.Time          `json:"estimated_completion"`
}

// run is one live pattern execution. Step status and result writes are
// serialized through mu; the scheduler goroutine owns the control flow.
type run struct {
	mu      sync.Mutex
	pattern *model.ThinkingPattern
	state   model.PatternState
	cancel  context.CancelFunc
	done    chan struct{}
}

// Engine schedules and tracks pattern runs. Patterns from concurrent
// campaigns run independently.
type Engine struct {
	mu       sync.Mutex
	runs     map[string]*run
	recovery *recovery.Engine

	nowFunc func() time.Time
}

// NewEngine creates a thinking engine routing step failures through the
// recovery engine.
func NewEngine(rec *recovery.Engine) *Engine {
	return &Engine{
		runs:     make(map[string]*run),
		recovery: rec,
		nowFunc:  time.Now,
	}
}

// StartPattern validates the pattern DAG and begins executing it. Returns
// the pattern run ID.
func (e *Engine) StartPattern(ctx context.Context, pattern *model.ThinkingPattern, exec Executor) (string, error) {
	if len(pattern.Steps) == 0 {
		return "", eris.New("thinking: pattern has no steps")
	}
	if err := validateDAG(pattern); err != nil {
		return "", err
	}

	patternID := "pattern_" + uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		pattern: pattern,
		state:   model.PatternRunning,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	e.runs[patternID] = r
	e.mu.Unlock()

	zap.L().Info("started thinking pattern",
		zap.String("pattern_id", patternID),
		zap.String("pattern_name", pattern.Name),
		zap.Int("total_steps", len(pattern.Steps)),
	)

	go e.schedule(runCtx, patternID, r, exec)
	return patternID, nil
}

// validateDAG rejects unknown dependencies and cycles.
func validateDAG(pattern *model.ThinkingPattern) error {
	ids := make(map[string]bool, len(pattern.Steps))
	for _, s := range pattern.Steps {
		if ids[s.ID] {
			return eris.Errorf("thinking: duplicate step id %q", s.ID)
		}
		ids[s.ID] = true
	}
	for _, s := range pattern.Steps {
		for _, dep := range s.DependsOn {
			if !ids[dep] {
				return eris.Errorf("thinking: step %q depends on unknown step %q", s.ID, dep)
			}
		}
	}

	// Kahn's algorithm: all steps must be orderable.
	indegree := make(map[string]int, len(pattern.Steps))
	for _, s := range pattern.Steps {
		indegree[s.ID] = len(s.DependsOn)
	}
	queue := make([]string, 0, len(pattern.Steps))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited++
		for _, child := range pattern.Dependents(cur) {
			// Dependents is transitive; only decrement direct edges.
			step := pattern.Step(child)
			for _, dep := range step.DependsOn {
				if dep != cur {
					continue
				}
				indegree[child]--
				if indegree[child] == 0 {
					queue = append(queue, child)
				}
			}
		}
	}
	if visited != len(pattern.Steps) {
		return eris.New("thinking: pattern contains a dependency cycle")
	}
	return nil
}

type stepOutcome struct {
	step   *model.ThinkingStep
	result map[string]any
	err    error
}

// schedule is the scheduler loop for one pattern run. It launches every
// runnable step (all dependencies completed), highest priority first with
// declaration order as the tie-break, and re-evaluates on each completion.
func (e *Engine) schedule(ctx context.Context, patternID string, r *run, exec Executor) {
	defer close(r.done)

	outcomes := make(chan stepOutcome)
	running := 0

	for {
		if ctx.Err() != nil {
			e.drainAndAbort(patternID, r, outcomes, running)
			return
		}

		for _, step := range e.runnable(r) {
			step := step
			e.markInProgress(r, step)
			running++
			go e.executeStep(ctx, patternID, r, step, exec, outcomes)
		}

		if running == 0 {
			e.finalize(patternID, r)
			return
		}

		select {
		case <-ctx.Done():
			e.drainAndAbort(patternID, r, outcomes, running)
			return
		case out := <-outcomes:
			running--
			e.recordOutcome(patternID, r, out)
		}
	}
}

// runnable returns pending steps whose dependencies are all completed,
// highest priority first, declaration order as tie-break.
func (e *Engine) runnable(r *run) []*model.ThinkingStep {
	r.mu.Lock()
	defer r.mu.Unlock()

	type candidate struct {
		step  *model.ThinkingStep
		index int
	}
	var out []candidate
	for i, step := range r.pattern.Steps {
		if step.Status != model.StepPending {
			continue
		}
		ready := true
		for _, dep := range step.DependsOn {
			if r.pattern.Step(dep).Status != model.StepCompleted {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, candidate{step, i})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].step.Priority != out[j].step.Priority {
			return out[i].step.Priority > out[j].step.Priority
		}
		return out[i].index < out[j].index
	})

	steps := make([]*model.ThinkingStep, len(out))
	for i, c := range out {
		steps[i] = c.step
	}
	return steps
}

func (e *Engine) markInProgress(r *run, step *model.ThinkingStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.Status = model.StepInProgress
	step.StartedAt = e.nowFunc()
}

func (e *Engine) executeStep(ctx context.Context, patternID string, r *run, step *model.ThinkingStep, exec Executor, outcomes chan<- stepOutcome) {
	result, err := exec.ExecuteStep(ctx, r.pattern, step)
	if err != nil && e.recovery != nil {
		// Recovery handlers may sleep (retry pauses, backoff), so they run
		// here in the worker and never stall the scheduler loop.
		e.recovery.HandleError(ctx, err, recovery.ErrorContext{
			CampaignID: r.pattern.Context.CampaignID,
			StepID:     step.ID,
			Component:  "thinking-engine",
			Operation:  string(step.Stage),
		})
	}
	outcomes <- stepOutcome{step: step, result: result, err: err}
}

func (e *Engine) recordOutcome(patternID string, r *run, out stepOutcome) {
	now := e.nowFunc()

	r.mu.Lock()
	step := out.step
	step.CompletedAt = now
	step.ActualDuration = now.Sub(step.StartedAt)

	if out.err == nil {
		step.Status = model.StepCompleted
		step.Result = out.result
		r.mu.Unlock()

		zap.L().Info("completed thinking step",
			zap.String("pattern_id", patternID),
			zap.String("step_id", step.ID),
			zap.String("stage", string(step.Stage)),
			zap.Duration("duration", step.ActualDuration),
		)
		return
	}

	step.Status = model.StepFailed
	step.Errors = append(step.Errors, out.err.Error())
	critical := step.Critical

	// Dependents of a failed step can never become runnable; skip them so
	// the pattern can settle.
	skipped := e.skipDependentsLocked(r, step.ID)
	if critical {
		r.state = model.PatternAborted
	}
	r.mu.Unlock()

	zap.L().Error("failed thinking step",
		zap.String("pattern_id", patternID),
		zap.String("step_id", step.ID),
		zap.Bool("critical", critical),
		zap.Int("skipped_dependents", skipped),
		zap.Error(out.err),
	)

	if critical {
		r.cancel()
	}
}

// skipDependentsLocked marks every pending transitive dependent of stepID as
// skipped. Callers must hold r.mu.
func (e *Engine) skipDependentsLocked(r *run, stepID string) int {
	skipped := 0
	for _, depID := range r.pattern.Dependents(stepID) {
		dep := r.pattern.Step(depID)
		if dep.Status == model.StepPending {
			dep.Status = model.StepSkipped
			skipped++
		}
	}
	return skipped
}

// finalize sets the terminal pattern state once no step is running or
// runnable.
func (e *Engine) finalize(patternID string, r *run) {
	r.mu.Lock()
	if r.state == model.PatternRunning {
		failed := false
		for _, step := range r.pattern.Steps {
			// Pending steps at settle time are unreachable; skip them.
			if step.Status == model.StepPending {
				step.Status = model.StepSkipped
			}
			if step.Status == model.StepFailed {
				failed = true
			}
		}
		if failed {
			r.state = model.PatternPartiallyFailed
		} else {
			r.state = model.PatternAllCompleted
		}
	}
	state := r.state
	r.mu.Unlock()

	zap.L().Info("thinking pattern finished",
		zap.String("pattern_id", patternID),
		zap.String("state", string(state)),
	)
}

// drainAndAbort waits out in-flight steps after cancellation, then marks
// remaining pending steps skipped and the pattern aborted.
func (e *Engine) drainAndAbort(patternID string, r *run, outcomes <-chan stepOutcome, running int) {
	for i := 0; i < running; i++ {
		out := <-outcomes
		r.mu.Lock()
		if out.err == nil {
			out.step.Status = model.StepCompleted
			out.step.Result = out.result
		} else {
			out.step.Status = model.StepFailed
			out.step.Errors = append(out.step.Errors, out.err.Error())
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	for _, step := range r.pattern.Steps {
		if step.Status == model.StepPending {
			step.Status = model.StepSkipped
		}
	}
	r.state = model.PatternAborted
	r.mu.Unlock()

	zap.L().Info("thinking pattern aborted", zap.String("pattern_id", patternID))
}

// Adjust merges adjustments into every pending step of a live pattern so
// later stages run with mid-flight optimization changes. In-flight and
// settled steps are left alone. Returns the number of steps adjusted.
func (e *Engine) Adjust(patternID string, adjustments map[string]any) (int, error) {
	e.mu.Lock()
	r, ok := e.runs[patternID]
	e.mu.Unlock()
	if !ok {
		return 0, eris.Errorf("thinking: pattern %q not found", patternID)
	}
	if len(adjustments) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	adjusted := 0
	for _, step := range r.pattern.Steps {
		if step.Status != model.StepPending {
			continue
		}
		if step.Adjustments == nil {
			step.Adjustments = make(map[string]any, len(adjustments))
		}
		for k, v := range adjustments {
			step.Adjustments[k] = v
		}
		adjusted++
	}

	zap.L().Info("adjusted pending thinking steps",
		zap.String("pattern_id", patternID),
		zap.Int("adjusted_steps", adjusted),
	)
	return adjusted, nil
}

// Status reports progress for a pattern run.
func (e *Engine) Status(patternID string) (Status, error) {
	e.mu.Lock()
	r, ok := e.runs[patternID]
	e.mu.Unlock()
	if !ok {
		return Status{}, eris.Errorf("thinking: pattern %q not found", patternID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		PatternID:   patternID,
		PatternName: r.pattern.Name,
		State:       r.state,
		TotalSteps:  len(r.pattern.Steps),
	}

	var remaining time.Duration
	currentStage := "completed"
	stageFound := false
	for _, step := range r.pattern.Steps {
		switch step.Status {
		case model.StepCompleted:
			st.CompletedSteps++
		case model.StepFailed:
			st.FailedSteps++
		case model.StepInProgress:
			st.InProgressSteps++
		case model.StepSkipped:
			st.SkippedSteps++
		}
		if !step.Status.Terminal() {
			remaining += step.EstimatedDuration
			if !stageFound {
				currentStage = string(step.Stage)
				stageFound = true
			}
		}
	}
	st.ProgressPercentage = float64(st.CompletedSteps) / float64(st.TotalSteps) * 100
	st.CurrentStage = currentStage
	st.EstimatedCompletion = e.nowFunc().Add(remaining)
	return st, nil
}

// Stop cancels a pattern run: in-flight steps are interrupted and pending
// steps are skipped. Returns false for unknown patterns.
func (e *Engine) Stop(patternID string) bool {
	e.mu.Lock()
	r, ok := e.runs[patternID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	r.cancel()
	return true
}

// Wait blocks until the pattern run settles. Primarily for tests and
// synchronous callers.
func (e *Engine) Wait(patternID string) {
	e.mu.Lock()
	r, ok := e.runs[patternID]
	e.mu.Unlock()
	if !ok {
		return
	}
	<-r.done
}
