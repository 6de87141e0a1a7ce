package jobs

import (
	"context"
	"fmt"

	"mmlens/internal/usecase"
	"mmlens/pkg/logger"
	"mmlens/pkg/queue"
	"mmlens/pkg/util"
)

// RunDiagnosticsJob executes a daily cycle or a single-ticker run from a
// queued request, so API callers and schedulers do not block on the cycle.
type RunDiagnosticsJob struct {
	orch *usecase.Orchestrator
	log  *logger.Logger
}

func NewRunDiagnosticsJob(orch *usecase.Orchestrator, log *logger.Logger) *RunDiagnosticsJob {
	return &RunDiagnosticsJob{orch: orch, log: log}
}

var _ queue.Job = (*RunDiagnosticsJob)(nil)

// TypeDiagnosticsRun is the queue message type this job consumes.
const TypeDiagnosticsRun = "diagnostics.run"

func (j *RunDiagnosticsJob) Name() string { return "run_diagnostics" }
func (j *RunDiagnosticsJob) Type() string { return TypeDiagnosticsRun }

type runPayload struct {
	Date   string `json:"date"`
	Ticker string `json:"ticker"`
}

func (j *RunDiagnosticsJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[runPayload](payload)
	if err != nil {
		return fmt.Errorf("run_diagnostics payload: %w", err)
	}
	date, ok := util.ParseDate(p.Date)
	if !ok {
		return fmt.Errorf("run_diagnostics: invalid date %q", p.Date)
	}

	if p.Ticker != "" {
		if _, err := j.orch.RunSingle(ctx, p.Ticker, date); err != nil {
			return err
		}
		j.log.Info("queued single diagnostic done",
			logger.String("ticker", p.Ticker),
			logger.String("date", p.Date),
		)
		return nil
	}

	res, err := j.orch.RunCycle(ctx, date)
	if err != nil {
		return err
	}
	j.log.Info("queued cycle done",
		logger.String("date", res.Snapshot.Date),
		logger.Int("diagnostics", len(res.Diagnostics)),
		logger.Int("focus", len(res.Snapshot.Focus)),
	)
	return nil
}
