package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Report summarizes one directory ingestion run.
type Report struct {
	JobID    string            `json:"job_id"`
	Total    int               `json:"total"`
	Ingested int               `json:"ingested"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Failures map[string]string `json:"failures,omitempty"`
}

// IngestDirectory ingests every matching image under dir, recursively.
// Files are processed in batches with the configured pacing so a bulk drop
// does not saturate the embedding backend. A failing file is logged, counted,
// and skipped; only a cancelled context aborts the run.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (*Report, error) {
	report := &Report{
		JobID:    uuid.New().String(),
		Failures: make(map[string]string),
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if matchExtension(path, p.cfg.Extensions) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	report.Total = len(paths)

	p.logger.Info("directory ingestion started",
		zap.String("job_id", report.JobID),
		zap.String("dir", dir),
		zap.Int("files", len(paths)),
		zap.Int("batch_size", p.cfg.BatchSize),
	)

	batchSize := p.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(paths)
	}
	for i, path := range paths {
		if i > 0 {
			delay := p.cfg.InterItemDelay
			if i%batchSize == 0 {
				delay = p.cfg.InterBatchDelay
			}
			if err := sleepCtx(ctx, delay); err != nil {
				return report, err
			}
		}

		ingested, err := p.IngestFile(ctx, path, nil)
		switch {
		case err != nil:
			report.Failed++
			report.Failures[path] = err.Error()
			p.logger.Warn("ingest failed, skipping file",
				zap.String("job_id", report.JobID),
				zap.String("path", path),
				zap.Error(err),
			)
		case ingested:
			report.Ingested++
		default:
			report.Skipped++
		}
	}

	p.logger.Info("directory ingestion finished",
		zap.String("job_id", report.JobID),
		zap.Int("ingested", report.Ingested),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
