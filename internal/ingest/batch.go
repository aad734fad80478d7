package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edgard/chatline/internal/webhook"
)

// BatchSummary reports the outcome of a batch processing run.
type BatchSummary struct {
	Processed int
	Applied   int
	Skipped   int
	Failed    int
}

// ProcessDirectory ingests every *.json payload document found in dir, in
// lexicographic filename order for determinism. Each document is normalized
// and ingested independently: a malformed payload or a store failure is
// logged, counted, and skipped, and the batch continues with the next file.
func (e *Engine) ProcessDirectory(ctx context.Context, dir string) (BatchSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to read payload directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	var summary BatchSummary
	for _, file := range files {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		e.processFile(ctx, file, &summary)
	}

	e.logger.InfoContext(ctx, "Batch processing finished",
		"dir", dir,
		"processed", summary.Processed,
		"applied", summary.Applied,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

// ProcessFile ingests a single payload document, updating no shared state on
// failure. Used by the watch loop of the batch CLI.
func (e *Engine) ProcessFile(ctx context.Context, path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read payload file %s: %w", path, err)
	}
	return e.ProcessRaw(ctx, raw)
}

func (e *Engine) processFile(ctx context.Context, file string, summary *BatchSummary) {
	summary.Processed++

	res, err := e.ProcessFile(ctx, file)
	if err != nil {
		summary.Failed++
		switch {
		case errors.Is(err, webhook.ErrMissingContact):
			e.logger.WarnContext(ctx, "Payload missing contact profile, skipping", "file", file, "error", err)
		case errors.Is(err, webhook.ErrMalformedPayload):
			e.logger.WarnContext(ctx, "Malformed payload, skipping", "file", file, "error", err)
		default:
			e.logger.ErrorContext(ctx, "Failed to ingest payload, continuing", "file", file, "error", err)
		}
		return
	}

	if res.Applied {
		summary.Applied++
	} else {
		summary.Skipped++
	}
	e.logger.InfoContext(ctx, "Payload processed", "file", file, "applied", res.Applied, "reason", res.Reason)
}
