package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/core/ports/driving"
	"github.com/driftline-labs/driftline/internal/logger"
	"github.com/driftline-labs/driftline/internal/ratelimit"
)

// IngestResult is the aggregate outcome of one ingest run.
// SuccessCount+FailCount never exceeds the number of items that
// entered the run.
type IngestResult struct {
	SuccessCount int
	FailCount    int
}

// BatchIngestor chunks discovered items into fixed-size batches, maps
// each batch to canonical records and submits it to the pipeline.
// Batches run strictly sequentially; enrichment within a batch runs
// concurrently, bounded by MaxConcurrentIngestions, with the shared
// rate limiter serialising the effective call budget.
type BatchIngestor struct {
	adapter  driven.SourceAdapter
	pipeline driven.IngestionPipeline
	limiter  *ratelimit.Limiter
	settings domain.ConnectorSettings
}

// NewBatchIngestor creates a batch ingestor.
func NewBatchIngestor(
	adapter driven.SourceAdapter,
	pipeline driven.IngestionPipeline,
	limiter *ratelimit.Limiter,
	settings domain.ConnectorSettings,
) *BatchIngestor {
	return &BatchIngestor{
		adapter:  adapter,
		pipeline: pipeline,
		limiter:  limiter,
		settings: settings.Normalised(),
	}
}

// Ingest processes items in discovery order. A batch-level submission
// failure counts the whole batch as failed and the loop continues; the
// run still completes. Rate-limit and cancellation errors abort the
// run and are returned alongside the counts accumulated so far.
func (b *BatchIngestor) Ingest(ctx context.Context, items []domain.DiscoveredItem, onProgress driving.ProgressFunc) (IngestResult, error) {
	var result IngestResult
	if len(items) == 0 {
		return result, nil
	}

	batchSize := b.settings.BatchSize
	totalBatches := (len(items) + batchSize - 1) / batchSize
	processed := 0

	for batchIndex := 0; batchIndex < totalBatches; batchIndex++ {
		start := batchIndex * batchSize
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batchItems := items[start:end]

		records, mapFailures, err := b.buildRecords(ctx, batchItems)
		if err != nil {
			return result, err
		}
		result.FailCount += mapFailures

		if len(records) > 0 {
			batch := domain.IngestionBatch{
				BatchIndex:   batchIndex,
				TotalBatches: totalBatches,
				Records:      records,
			}
			res, err := b.submit(ctx, batch)
			if err != nil {
				// Transport failure: the whole batch counts as failed
				// and the run continues with the next batch.
				logger.Warn("Batch %d/%d failed: %v", batchIndex+1, totalBatches, err)
				result.FailCount += len(records)
			} else {
				result.SuccessCount += res.Successful
				result.FailCount += res.Failed
			}
		}

		processed += len(batchItems)
		if onProgress != nil {
			onProgress(driving.Progress{
				ProcessedCount: processed,
				TotalCount:     len(items),
				SuccessCount:   result.SuccessCount,
				FailCount:      result.FailCount,
				BatchIndex:     batchIndex,
				TotalBatches:   totalBatches,
			})
		}
	}

	return result, nil
}

// buildRecords enriches and maps one batch of items. Enrichment runs
// concurrently, bounded by MaxConcurrentIngestions. Items that fail
// mapping or enrichment count as failed; rate-limit, auth and
// cancellation errors abort the batch.
func (b *BatchIngestor) buildRecords(ctx context.Context, items []domain.DiscoveredItem) ([]domain.CanonicalRecord, int, error) {
	type slot struct {
		record *domain.CanonicalRecord
		err    error
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]slot, len(items))
	sem := make(chan struct{}, b.settings.MaxConcurrentIngestions)

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				slots[i].err = ctx.Err()
				return
			}
			defer func() { <-sem }()

			record, err := b.buildOne(ctx, &items[i])
			slots[i] = slot{record: record, err: err}
			if err != nil && b.isAbortError(err) {
				cancel()
			}
		}(i)
	}
	wg.Wait()

	records := make([]domain.CanonicalRecord, 0, len(items))
	failed := 0
	for i := range slots {
		err := slots[i].err
		switch {
		case err == nil:
			records = append(records, *slots[i].record)
		case b.isAbortError(err):
			return nil, 0, err
		default:
			// Absorbed: counted, not thrown upward.
			logger.Debug("Skipping %s: %v", items[i].Path, err)
			failed++
		}
	}

	return records, failed, nil
}

// buildOne enriches a single item and maps it to a canonical record.
func (b *BatchIngestor) buildOne(ctx context.Context, item *domain.DiscoveredItem) (*domain.CanonicalRecord, error) {
	if !supportedContentType(item.ContentType) {
		return nil, &domain.ValidationError{
			ItemID: item.ID,
			Reason: "unsupported content type " + item.ContentType,
		}
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	detail, err := b.adapter.GetDetail(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	content := detail.Content
	if content == nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		content, err = b.adapter.FetchContent(ctx, item.ID)
		if err != nil {
			return nil, err
		}
	}

	metadata := make(map[string]any, len(detail.Metadata)+3)
	for k, v := range detail.Metadata {
		metadata[k] = v
	}
	metadata["path"] = item.Path
	metadata["modified_at"] = item.ModifiedAt.Format(time.RFC3339)
	if item.ContentType != "" {
		metadata["content_type"] = item.ContentType
	}

	return &domain.CanonicalRecord{
		ID:           item.ID,
		SourceID:     item.SourceID,
		SourceType:   b.adapter.SourceType(),
		Title:        item.DisplayName,
		Content:      string(content),
		Metadata:     metadata,
		ChunkSize:    b.settings.ChunkSize,
		ChunkOverlap: b.settings.ChunkOverlap,
	}, nil
}

// submit sends one batch to the pipeline under the retry policy.
func (b *BatchIngestor) submit(ctx context.Context, batch domain.IngestionBatch) (driven.BatchResult, error) {
	req := driven.BatchRequest{
		SourceID: b.adapter.SourceID(),
		Batch:    batch,
		Config: driven.PipelineConfig{
			ChunkSize:    b.settings.ChunkSize,
			ChunkOverlap: b.settings.ChunkOverlap,
		},
	}

	var lastErr error
	for attempt := 0; attempt < b.settings.Retry.Attempts(); attempt++ {
		if attempt > 0 && b.settings.Retry.Backoff > 0 {
			select {
			case <-ctx.Done():
				return driven.BatchResult{}, ctx.Err()
			case <-time.After(b.settings.Retry.Backoff):
			}
		}

		res, err := b.pipeline.IngestBatch(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}

	return driven.BatchResult{}, &domain.PipelineError{BatchIndex: batch.BatchIndex, Err: lastErr}
}

// isAbortError reports whether an enrichment error aborts the run
// rather than being absorbed as an item failure.
func (b *BatchIngestor) isAbortError(err error) bool {
	return domain.IsRateLimited(err) ||
		domain.IsAuthError(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// supportedContentType signals whether the engine forwards a content
// type to the pipeline. Anything text-like is supported; extraction of
// richer formats is out of scope.
func supportedContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))

	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	switch contentType {
	case "application/json", "application/xml", "application/yaml",
		"application/toml", "application/javascript", "application/x-sh":
		return true
	}
	return strings.HasSuffix(contentType, "+json") || strings.HasSuffix(contentType, "+xml")
}
