// Package pipeline composes the batch redaction run: ledger-driven
// filtering, concurrent batch dispatch, result persistence, and export.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/arclight-io/scrubber/internal/config"
	"github.com/arclight-io/scrubber/internal/export"
	"github.com/arclight-io/scrubber/internal/ledger"
	"github.com/arclight-io/scrubber/internal/messages"
	"github.com/arclight-io/scrubber/internal/scheduler"
	"github.com/arclight-io/scrubber/pkg/detection"
	"github.com/arclight-io/scrubber/pkg/storage"
)

// phase names the run's state machine stages, logged at each transition.
type phase string

const (
	phaseQuerying    phase = "querying"
	phaseFiltering   phase = "filtering"
	phaseDispatching phase = "dispatching"
	phaseAggregating phase = "aggregating"
	phaseReporting   phase = "reporting"
	phaseDone        phase = "done"
)

// Summary reports a completed run's outcome.
type Summary struct {
	RunID     uuid.UUID
	Succeeded int
	Failed    int
	Progress  ledger.Progress
}

// Pipeline is a single-use batch redaction run over the source messages.
type Pipeline struct {
	cfg       *config.Config
	logger    *slog.Logger
	messages  messages.System
	ledger    ledger.System
	detector  detection.Detector
	artifacts storage.System
	runID     uuid.UUID
}

// New creates a pipeline from finalized configuration and the shared
// systems. artifacts may be nil when blob mirroring is not configured.
func New(
	cfg *config.Config,
	msgs messages.System,
	led ledger.System,
	detector detection.Detector,
	artifacts storage.System,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		logger:    logger.With("system", "pipeline"),
		messages:  msgs,
		ledger:    led,
		detector:  detector,
		artifacts: artifacts,
		runID:     uuid.New(),
	}
}

// Run executes the pipeline once. Failures below the message level never
// abort the run; the ledger's absence of a record is the durable signal for
// "needs retry".
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	p.logger.Info(
		"run starting",
		"run_id", p.runID,
		"tier", p.cfg.Pipeline.Tier,
		"batch_size", p.cfg.Pipeline.BatchSize,
		"cloud_mode", p.cfg.Pipeline.CloudMode,
	)

	initial, err := p.reportProgress(ctx)
	if err != nil {
		return nil, err
	}

	p.logPhase(phaseQuerying)
	all, err := p.messages.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query source messages: %w", err)
	}

	p.logPhase(phaseFiltering)
	keys, err := p.ledger.ProcessedKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	unprocessed := ledger.FilterUnprocessed(all, keys)

	// Nothing changed since the report above, so reuse it instead of
	// rescanning the ledger.
	if len(unprocessed) == 0 {
		p.logger.Info("no unprocessed messages found")
		p.logPhase(phaseDone)
		return &Summary{RunID: p.runID, Progress: initial}, nil
	}
	p.logger.Info("unprocessed messages found", "count", len(unprocessed))

	p.logPhase(phaseDispatching)
	result, err := p.dispatch(ctx, unprocessed)
	if err != nil {
		return nil, err
	}

	p.logPhase(phaseAggregating)
	if err := p.persist(ctx, result); err != nil {
		return nil, err
	}

	p.logPhase(phaseReporting)
	if len(result.Failed) > 0 {
		p.logger.Error(
			"messages failed to process; re-run to resume",
			"failed", len(result.Failed),
		)
	}

	progress, err := p.reportProgress(ctx)
	if err != nil {
		return nil, err
	}

	p.logPhase(phaseDone)
	return &Summary{
		RunID:     p.runID,
		Succeeded: len(result.Succeeded),
		Failed:    len(result.Failed),
		Progress:  progress,
	}, nil
}

func (p *Pipeline) dispatch(ctx context.Context, unprocessed []messages.Message) (*scheduler.Result, error) {
	batches := scheduler.Partition(unprocessed, p.cfg.Pipeline.BatchSize)
	bar := progressbar.NewOptions(
		len(batches),
		progressbar.OptionSetDescription("processing batches"),
		progressbar.OptionSetWriter(progressWriter()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	sched := scheduler.New(p.detector, scheduler.Options{
		BatchSize:       p.cfg.Pipeline.BatchSize,
		Tier:            p.cfg.Pipeline.Tier,
		Language:        p.cfg.Pipeline.Language,
		OnBatchComplete: func() { _ = bar.Add(1) },
	}, p.logger)

	result, err := sched.Process(ctx, unprocessed)
	if err != nil {
		return nil, fmt.Errorf("batch processing aborted: %w", err)
	}
	_ = bar.Finish()
	return result, nil
}

// persist stores successes according to the output mode and always records
// the ledger for succeeded messages before exporting failures. Store-write
// failures are fatal to persistence but leave the ledger consistent: only
// messages recorded in the ledger are considered processed.
func (p *Pipeline) persist(ctx context.Context, result *scheduler.Result) error {
	if len(result.Succeeded) > 0 {
		if p.cfg.Pipeline.CloudMode {
			if err := p.messages.SaveCleaned(ctx, result.Succeeded); err != nil {
				return err
			}
		} else {
			if err := export.WriteRedacted(p.cfg.Pipeline.RedactedOutput, result.Succeeded); err != nil {
				return err
			}
			p.logger.Info("redacted messages written", "path", p.cfg.Pipeline.RedactedOutput)
		}

		if err := p.ledger.RecordProcessed(ctx, result.Succeeded); err != nil {
			return err
		}

		if p.artifacts != nil {
			if err := export.MirrorRedacted(ctx, p.artifacts, p.runID.String(), result.Succeeded); err != nil {
				p.logger.Error("artifact mirror failed", "error", err)
			}
		}
	}

	if len(result.Failed) > 0 {
		now := time.Now().UTC()
		if err := export.WriteFailed(p.cfg.Pipeline.FailedOutput, result.Failed, now); err != nil {
			return err
		}
		p.logger.Info("failed-message metadata written", "path", p.cfg.Pipeline.FailedOutput)

		if p.artifacts != nil {
			if err := export.MirrorFailed(ctx, p.artifacts, p.runID.String(), result.Failed, now); err != nil {
				p.logger.Error("artifact mirror failed", "error", err)
			}
		}
	}

	return nil
}

func (p *Pipeline) reportProgress(ctx context.Context) (ledger.Progress, error) {
	total, err := p.messages.Count(ctx)
	if err != nil {
		return ledger.Progress{}, fmt.Errorf("count source messages: %w", err)
	}

	keys, err := p.ledger.ProcessedKeys(ctx)
	if err != nil {
		return ledger.Progress{}, fmt.Errorf("scan ledger: %w", err)
	}

	progress := ledger.NewProgress(total, len(keys))
	p.logger.Info("overall progress", "status", progress.String())
	return progress, nil
}

func (p *Pipeline) logPhase(ph phase) {
	p.logger.Debug("phase transition", "phase", string(ph))
}
