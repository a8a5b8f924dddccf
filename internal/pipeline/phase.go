package pipeline

import (
	"time"

	"go.uber.org/zap"
)

// PhaseStatus is the outcome of one pipeline phase.
type PhaseStatus string

const (
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusSkipped  PhaseStatus = "skipped"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult records one phase of a run.
type PhaseResult struct {
	Name     string        `json:"name"`
	Status   PhaseStatus   `json:"status"`
	Duration time.Duration `json:"durationNs"`
	Error    string        `json:"error,omitempty"`
}

type phaseTracker struct {
	log    *zap.Logger
	phases []PhaseResult
}

// track times fn and records its outcome. fn reports skipped when it had
// nothing to do.
func (t *phaseTracker) track(name string, fn func() (skipped bool, err error)) error {
	start := time.Now()
	skipped, err := fn()
	pr := PhaseResult{Name: name, Duration: time.Since(start), Status: PhaseStatusComplete}

	switch {
	case err != nil:
		pr.Status = PhaseStatusFailed
		pr.Error = err.Error()
		t.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Duration("duration", pr.Duration),
			zap.Error(err),
		)
	case skipped:
		pr.Status = PhaseStatusSkipped
		t.log.Warn("pipeline: phase skipped", zap.String("phase", name))
	default:
		t.log.Debug("pipeline: phase complete",
			zap.String("phase", name),
			zap.Duration("duration", pr.Duration),
		)
	}

	t.phases = append(t.phases, pr)
	return err
}
