package model

// PatternState is the aggregate state of a thinking pattern run.
type PatternState string

const (
	// PatternRunning means at least one step is pending or in progress.
	PatternRunning PatternState = "running"
	// PatternAllCompleted means every step finished successfully.
	PatternAllCompleted PatternState = "all_completed"
	// PatternPartiallyFailed means non-critical steps failed but independent
	// branches ran to completion.
	PatternPartiallyFailed PatternState = "partially_failed"
	// PatternAborted means a critical step failed (or the run was stopped)
	// and remaining dependents were skipped.
	PatternAborted PatternState = "aborted"
)

// Terminal reports whether the pattern state is final.
func (s PatternState) Terminal() bool {
	return s != PatternRunning
}

// ThinkingPattern is a named DAG of steps representing one campaign's
// sequential-thinking plan. A pattern owns its steps exclusively and lives
// for exactly one campaign run.
type ThinkingPattern struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	Steps                []*ThinkingStep    `json:"steps"`
	Context              ThinkingContext    `json:"context"`
	SuccessCriteria      map[string]float64 `json:"success_criteria"`
	FailureConditions    []string           `json:"failure_conditions"`
	OptimizationTriggers []string           `json:"optimization_triggers"`
}

// Step returns the step with the given id, or nil.
func (p *ThinkingPattern) Step(id string) *ThinkingStep {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Dependents returns the ids of steps that (transitively) depend on stepID.
func (p *ThinkingPattern) Dependents(stepID string) []string {
	direct := make(map[string][]string, len(p.Steps))
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			direct[dep] = append(direct[dep], s.ID)
		}
	}

	seen := make(map[string]bool)
	queue := []string{stepID}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range direct[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}
