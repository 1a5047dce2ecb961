// Package scheduler partitions unprocessed messages into fixed-size batches
// and drives them through the entity detector under a tier-sized concurrency
// bound, aggregating per-message successes and failures.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/arclight-io/scrubber/internal/messages"
	"github.com/arclight-io/scrubber/internal/redact"
	"github.com/arclight-io/scrubber/pkg/detection"
)

// Options configures a Scheduler.
type Options struct {
	// BatchSize is the number of documents per detection call.
	BatchSize int
	// Tier selects the concurrent-batch bound (see ConcurrentBatches).
	Tier string
	// Language is submitted with every document.
	Language string
	// OnBatchComplete, when set, is invoked once per completed batch in
	// completion order. Used to drive the progress indicator.
	OnBatchComplete func()
}

// Result aggregates a run's outcome. A message appears in exactly one of
// the two lists.
type Result struct {
	Succeeded []messages.Message
	Failed    []messages.Message
}

// Scheduler dispatches detection batches concurrently under an admission
// gate sized from the service tier.
type Scheduler struct {
	detector detection.Detector
	logger   *slog.Logger
	opts     Options
	inFlight int64
}

// New creates a batch scheduler.
func New(detector detection.Detector, opts Options, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		detector: detector,
		logger:   logger.With("system", "scheduler"),
		opts:     opts,
		inFlight: ConcurrentBatches(opts.Tier),
	}
}

// Partition splits msgs into ceil(len(msgs)/size) batches of at most size
// messages, covering every message exactly once in order.
func Partition(msgs []messages.Message, size int) [][]messages.Message {
	if size < 1 || len(msgs) == 0 {
		return nil
	}

	batches := make([][]messages.Message, 0, (len(msgs)+size-1)/size)
	for start := 0; start < len(msgs); start += size {
		end := min(start+size, len(msgs))
		batches = append(batches, msgs[start:end])
	}
	return batches
}

// Process dispatches all batches concurrently, bounded by the admission
// gate, and collects results as they complete. A transport failure marks the
// whole batch failed; a per-document error marks only that message failed.
// Only context cancellation aborts the run.
func (s *Scheduler) Process(ctx context.Context, msgs []messages.Message) (*Result, error) {
	batches := Partition(msgs, s.opts.BatchSize)

	s.logger.Info(
		"dispatching batches",
		"messages", len(msgs),
		"batches", len(batches),
		"batch_size", s.opts.BatchSize,
		"max_in_flight", s.inFlight,
	)

	var (
		mu     sync.Mutex
		result Result
	)
	gate := semaphore.NewWeighted(s.inFlight)
	g, gctx := errgroup.WithContext(ctx)

	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			succeeded, failed, err := s.processBatch(gctx, gate, batch)
			if err != nil {
				return err
			}

			mu.Lock()
			result.Succeeded = append(result.Succeeded, succeeded...)
			result.Failed = append(result.Failed, failed...)
			mu.Unlock()

			if s.opts.OnBatchComplete != nil {
				s.opts.OnBatchComplete()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info(
		"batch processing complete",
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return &result, nil
}

// processBatch holds an admission slot for the duration of the detector
// call only; result collection happens outside the gate. The returned error
// is non-nil only for context cancellation.
func (s *Scheduler) processBatch(
	ctx context.Context,
	gate *semaphore.Weighted,
	batch []messages.Message,
) (succeeded, failed []messages.Message, err error) {
	documents := make([]string, len(batch))
	for i := range batch {
		documents[i] = batch[i].Content
	}

	if err := gate.Acquire(ctx, 1); err != nil {
		return nil, nil, err
	}
	results, detectErr := s.detector.Detect(ctx, documents, s.opts.Language)
	gate.Release(1)

	if detectErr != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		s.logger.Error("batch detection call failed", "size", len(batch), "error", detectErr)
		return nil, batch, nil
	}

	now := time.Now().UTC()
	for i, doc := range results {
		msg := batch[i]
		if doc.Err != nil {
			s.logger.Error(
				"message detection failed",
				"message", msg.Key(),
				"error", doc.Err,
			)
			failed = append(failed, msg)
			continue
		}

		msg.ProcessedContent = redact.Apply(msg.Content, doc.Entities)
		msg.Entities = messages.FromDetected(doc.Entities)
		msg.ProcessedAt = now
		succeeded = append(succeeded, msg)
	}

	return succeeded, failed, nil
}
