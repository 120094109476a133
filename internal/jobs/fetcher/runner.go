package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yungbote/cvetrack-backend/internal/observability"
	"github.com/yungbote/cvetrack-backend/internal/platform/logger"
)

type Sender interface {
	Send(ctx context.Context, batch []json.RawMessage) error
}

// Runner drives the periodic fetch: sync, collect, split into batches, upload.
// Cycles run on one goroutine and never overlap.
type Runner struct {
	cfg     Config
	log     *logger.Logger
	syncer  Syncer
	sender  Sender
	metrics *observability.Metrics
}

func NewRunner(cfg Config, log *logger.Logger, syncer Syncer, sender Sender, metrics *observability.Metrics) *Runner {
	return &Runner{
		cfg:     cfg,
		log:     log.With("component", "FetchRunner"),
		syncer:  syncer,
		sender:  sender,
		metrics: metrics,
	}
}

// Run loops until ctx is cancelled. A failed cycle is logged and retried after the
// regular interval.
func (r *Runner) Run(ctx context.Context) error {
	if !sleep(ctx, r.cfg.StartupDelay) {
		return nil
	}
	for {
		if err := r.safeCycle(ctx); err != nil {
			r.log.Error("Error in fetch cycle", "error", err)
		}
		r.log.Info("Sleeping until next fetch", "interval", r.cfg.Interval)
		if !sleep(ctx, r.cfg.Interval) {
			r.log.Info("Fetch runner stopped")
			return nil
		}
	}
}

func (r *Runner) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fetch cycle panic: %v", rec)
		}
	}()
	return r.RunOnce(ctx)
}

// RunOnce performs a single cycle.
func (r *Runner) RunOnce(ctx context.Context) error {
	start := time.Now()
	docs := 0
	err := r.cycle(ctx, &docs)
	r.metrics.ObserveFetch(docs, err, time.Since(start))
	return err
}

func (r *Runner) cycle(ctx context.Context, docs *int) error {
	r.log.Info("Starting fetch cycle")
	if err := r.syncer.Sync(ctx); err != nil {
		return fmt.Errorf("sync repository: %w", err)
	}

	folder := filepath.Join(r.cfg.LocalPath, r.cfg.CVEFolder)
	if _, err := os.Stat(folder); err != nil {
		return fmt.Errorf("CVE folder %s does not exist: %w", folder, err)
	}

	records, err := Collect(ctx, r.log, folder, r.cfg.MaxConcurrentFiles)
	if err != nil {
		return fmt.Errorf("collect documents: %w", err)
	}
	*docs = len(records)
	r.log.Info("Collected CVE documents", "count", len(records), "folder", folder)

	if len(records) == 0 {
		return r.sender.Send(ctx, nil)
	}

	var failed int
	for _, batch := range Batches(records, r.cfg.BatchSize) {
		if err := r.sender.Send(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d batch uploads failed", failed)
	}
	return nil
}

// Batches splits records into consecutive chunks of at most size.
func Batches(records []json.RawMessage, size int) [][]json.RawMessage {
	if size < 1 {
		size = len(records)
	}
	var out [][]json.RawMessage
	for i := 0; i < len(records); i += size {
		end := i + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[i:end])
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
