package thinking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/reengage-labs/campaign-cli/internal/model"
	"github.com/reengage-labs/campaign-cli/internal/recovery"
	"github.com/reengage-labs/campaign-cli/internal/resilience"
)

func testContext() model.ThinkingContext {
	return model.ThinkingContext{
		CampaignID:         "camp-1",
		TargetAudienceSize: 610,
		ROITarget:          2250,
		BudgetLimit:        5000,
	}
}

// diamond is a four-step DAG: a -> (b, c) -> d.
func diamond(bCritical bool) *model.ThinkingPattern {
	return &model.ThinkingPattern{
		Name: "diamond",
		Steps: []*model.ThinkingStep{
			{ID: "a", Stage: model.StageAnalysis, Priority: model.PriorityCritical, Critical: true, Status: model.StepPending, EstimatedDuration: time.Minute},
			{ID: "b", Stage: model.StagePlanning, DependsOn: []string{"a"}, Priority: model.PriorityHigh, Critical: bCritical, Status: model.StepPending, EstimatedDuration: time.Minute},
			{ID: "c", Stage: model.StagePlanning, DependsOn: []string{"a"}, Priority: model.PriorityMedium, Status: model.StepPending, EstimatedDuration: time.Minute},
			{ID: "d", Stage: model.StageExecution, DependsOn: []string{"b", "c"}, Priority: model.PriorityCritical, Critical: true, Status: model.StepPending, EstimatedDuration: time.Minute},
		},
		Context: testContext(),
	}
}

type recordingExecutor struct {
	mu      sync.Mutex
	started []string
	fail    map[string]error
	block   map[string]struct{}
	delay   map[string]time.Duration
}

func (r *recordingExecutor) ExecuteStep(ctx context.Context, _ *model.ThinkingPattern, step *model.ThinkingStep) (map[string]any, error) {
	r.mu.Lock()
	r.started = append(r.started, step.ID)
	r.mu.Unlock()

	if _, ok := r.block[step.ID]; ok {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d, ok := r.delay[step.ID]; ok {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	if err, ok := r.fail[step.ID]; ok {
		return nil, err
	}
	return map[string]any{"step": step.ID}, nil
}

func (r *recordingExecutor) startedBefore(t *testing.T, first, second string) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	fi, si := -1, -1
	for i, id := range r.started {
		if id == first {
			fi = i
		}
		if id == second {
			si = i
		}
	}
	if fi == -1 || si == -1 {
		t.Fatalf("steps %q/%q not both started: %v", first, second, r.started)
	}
	if fi > si {
		t.Errorf("%q started after %q: %v", first, second, r.started)
	}
}

func TestStartPattern_RunsDAGToCompletion(t *testing.T) {
	e := NewEngine(nil)
	exec := &recordingExecutor{}
	pattern := diamond(false)

	id, err := e.StartPattern(context.Background(), pattern, exec)
	if err != nil {
		t.Fatal(err)
	}
	e.Wait(id)

	for _, step := range pattern.Steps {
		if step.Status != model.StepCompleted {
			t.Errorf("step %q = %s, want completed", step.ID, step.Status)
		}
	}

	exec.startedBefore(t, "a", "b")
	exec.startedBefore(t, "a", "c")
	exec.startedBefore(t, "b", "d")
	exec.startedBefore(t, "c", "d")

	st, err := e.Status(id)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != model.PatternAllCompleted {
		t.Errorf("state = %s, want all_completed", st.State)
	}
	if st.ProgressPercentage != 100 {
		t.Errorf("progress = %v, want 100", st.ProgressPercentage)
	}
	if st.CurrentStage != "completed" {
		t.Errorf("current stage = %q, want completed", st.CurrentStage)
	}
}

func TestStartPattern_CriticalFailureAbortsAndSkipsDependents(t *testing.T) {
	e := NewEngine(nil)
	exec := &recordingExecutor{fail: map[string]error{"b": errors.New("segmentation store unreachable")}}
	pattern := diamond(true)

	id, err := e.StartPattern(context.Background(), pattern, exec)
	if err != nil {
		t.Fatal(err)
	}
	e.Wait(id)

	if got := pattern.Step("b").Status; got != model.StepFailed {
		t.Errorf("b = %s, want failed", got)
	}
	if got := pattern.Step("d").Status; got != model.StepSkipped {
		t.Errorf("d = %s, want skipped", got)
	}

	st, _ := e.Status(id)
	if st.State != model.PatternAborted {
		t.Errorf("state = %s, want aborted", st.State)
	}
	if st.FailedSteps != 1 {
		t.Errorf("failed steps = %d, want 1", st.FailedSteps)
	}
}

func TestStartPattern_NonCriticalFailureContinuesOtherBranches(t *testing.T) {
	e := NewEngine(nil)
	exec := &recordingExecutor{fail: map[string]error{"b": errors.New("timing model diverged")}}
	pattern := diamond(false)

	id, err := e.StartPattern(context.Background(), pattern, exec)
	if err != nil {
		t.Fatal(err)
	}
	e.Wait(id)

	if got := pattern.Step("c").Status; got != model.StepCompleted {
		t.Errorf("independent branch c = %s, want completed", got)
	}
	if got := pattern.Step("d").Status; got != model.StepSkipped {
		t.Errorf("dependent d = %s, want skipped", got)
	}

	st, _ := e.Status(id)
	if st.State != model.PatternPartiallyFailed {
		t.Errorf("state = %s, want partially_failed", st.State)
	}
}

func TestStartPattern_RejectsInvalidDAGs(t *testing.T) {
	e := NewEngine(nil)
	exec := &recordingExecutor{}

	cases := []struct {
		name  string
		steps []*model.ThinkingStep
	}{
		{"unknown dependency", []*model.ThinkingStep{
			{ID: "a", DependsOn: []string{"ghost"}, Status: model.StepPending},
		}},
		{"cycle", []*model.ThinkingStep{
			{ID: "a", DependsOn: []string{"b"}, Status: model.StepPending},
			{ID: "b", DependsOn: []string{"a"}, Status: model.StepPending},
		}},
		{"duplicate id", []*model.ThinkingStep{
			{ID: "a", Status: model.StepPending},
			{ID: "a", Status: model.StepPending},
		}},
		{"empty", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.StartPattern(context.Background(), &model.ThinkingPattern{Name: tc.name, Steps: tc.steps}, exec)
			if err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStop_SkipsPendingAndAborts(t *testing.T) {
	e := NewEngine(nil)
	exec := &recordingExecutor{block: map[string]struct{}{"a": {}}}
	pattern := diamond(false)

	id, err := e.StartPattern(context.Background(), pattern, exec)
	if err != nil {
		t.Fatal(err)
	}

	// Let the blocked root step start before stopping.
	deadline := time.Now().Add(2 * time.Second)
	for {
		exec.mu.Lock()
		started := len(exec.started) > 0
		exec.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("step a never started")
		}
		time.Sleep(time.Millisecond)
	}

	if !e.Stop(id) {
		t.Fatal("Stop returned false for live pattern")
	}
	e.Wait(id)

	st, _ := e.Status(id)
	if st.State != model.PatternAborted {
		t.Errorf("state = %s, want aborted", st.State)
	}
	for _, stepID := range []string{"b", "c", "d"} {
		if got := pattern.Step(stepID).Status; got != model.StepSkipped {
			t.Errorf("step %q = %s, want skipped", stepID, got)
		}
	}
}

func TestAdjust_MergesIntoPendingSteps(t *testing.T) {
	e := NewEngine(nil)
	exec := &recordingExecutor{block: map[string]struct{}{"a": {}}}
	pattern := diamond(false)

	id, err := e.StartPattern(context.Background(), pattern, exec)
	if err != nil {
		t.Fatal(err)
	}

	// Wait for the blocked root to start so b, c, d are still pending.
	deadline := time.Now().Add(2 * time.Second)
	for {
		exec.mu.Lock()
		started := len(exec.started) > 0
		exec.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("step a never started")
		}
		time.Sleep(time.Millisecond)
	}

	n, err := e.Adjust(id, map[string]any{"optimize_message_timing": []string{"shift_to_earlier_hours"}})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("adjusted = %d, want 3 pending steps", n)
	}
	for _, stepID := range []string{"b", "c", "d"} {
		if pattern.Step(stepID).Adjustments["optimize_message_timing"] == nil {
			t.Errorf("pending step %q missing adjustment", stepID)
		}
	}
	if pattern.Step("a").Adjustments != nil {
		t.Error("in-flight step a must not be adjusted")
	}

	if n, err := e.Adjust(id, nil); err != nil || n != 0 {
		t.Errorf("empty adjustments = (%d, %v), want (0, nil)", n, err)
	}

	e.Stop(id)
	e.Wait(id)
}

func TestAdjust_UnknownPattern(t *testing.T) {
	e := NewEngine(nil)
	if _, err := e.Adjust("pattern_missing", map[string]any{"x": 1}); err == nil {
		t.Error("Adjust should fail for unknown pattern")
	}
}

func TestStartPattern_RecoveryDoesNotStallScheduler(t *testing.T) {
	rec := recovery.NewEngine(resilience.NewRegistry(resilience.DefaultCircuitBreakerConfig()))
	e := NewEngine(rec)

	// "flaky" fails with an error whose recovery handler pauses for a full
	// second. "followup" only depends on "feed", so it must start as soon as
	// feed's 150ms finish is recorded, not after flaky's recovery pause.
	exec := &recordingExecutor{
		fail:  map[string]error{"flaky": errors.New("open roster.xlsx: no such file or directory")},
		delay: map[string]time.Duration{"feed": 150 * time.Millisecond},
	}
	pattern := &model.ThinkingPattern{
		Name: "staggered",
		Steps: []*model.ThinkingStep{
			{ID: "flaky", Stage: model.StageAnalysis, Priority: model.PriorityHigh, Status: model.StepPending},
			{ID: "feed", Stage: model.StageAnalysis, Priority: model.PriorityMedium, Status: model.StepPending},
			{ID: "followup", Stage: model.StagePlanning, DependsOn: []string{"feed"}, Priority: model.PriorityMedium, Status: model.StepPending},
		},
		Context: testContext(),
	}

	start := time.Now()
	id, err := e.StartPattern(context.Background(), pattern, exec)
	if err != nil {
		t.Fatal(err)
	}
	e.Wait(id)

	if got := pattern.Step("followup").Status; got != model.StepCompleted {
		t.Fatalf("followup = %s, want completed", got)
	}
	if gap := pattern.Step("followup").StartedAt.Sub(start); gap >= 700*time.Millisecond {
		t.Errorf("followup started %v after launch; scheduler stalled behind recovery", gap)
	}
}

func TestStop_UnknownPattern(t *testing.T) {
	e := NewEngine(nil)
	if e.Stop("pattern_missing") {
		t.Error("Stop should return false for unknown pattern")
	}
	if _, err := e.Status("pattern_missing"); err == nil {
		t.Error("Status should fail for unknown pattern")
	}
}

func TestRunnable_PriorityThenDeclarationOrder(t *testing.T) {
	e := NewEngine(nil)
	pattern := &model.ThinkingPattern{
		Steps: []*model.ThinkingStep{
			{ID: "low", Priority: model.PriorityLow, Status: model.StepPending},
			{ID: "high-first", Priority: model.PriorityHigh, Status: model.StepPending},
			{ID: "critical", Priority: model.PriorityCritical, Status: model.StepPending},
			{ID: "high-second", Priority: model.PriorityHigh, Status: model.StepPending},
			{ID: "gated", Priority: model.PriorityCritical, DependsOn: []string{"low"}, Status: model.StepPending},
		},
	}
	r := &run{pattern: pattern, state: model.PatternRunning}

	got := e.runnable(r)
	want := []string{"critical", "high-first", "high-second", "low"}
	if len(got) != len(want) {
		t.Fatalf("runnable = %d steps, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("runnable[%d] = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestStatus_EstimatedCompletionSumsRemainingDurations(t *testing.T) {
	e := NewEngine(nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.nowFunc = func() time.Time { return now }

	pattern := diamond(false)
	pattern.Step("a").Status = model.StepCompleted
	pattern.Step("b").Status = model.StepInProgress

	e.mu.Lock()
	e.runs["pattern_x"] = &run{pattern: pattern, state: model.PatternRunning}
	e.mu.Unlock()

	st, err := e.Status("pattern_x")
	if err != nil {
		t.Fatal(err)
	}
	// b in progress + c, d pending: three minutes remaining.
	if want := now.Add(3 * time.Minute); !st.EstimatedCompletion.Equal(want) {
		t.Errorf("estimated completion = %v, want %v", st.EstimatedCompletion, want)
	}
	if st.CurrentStage != string(model.StagePlanning) {
		t.Errorf("current stage = %q, want planning", st.CurrentStage)
	}
	if st.CompletedSteps != 1 || st.InProgressSteps != 1 {
		t.Errorf("counts = %d completed / %d in progress", st.CompletedSteps, st.InProgressSteps)
	}
}
