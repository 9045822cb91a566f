// Package httpapi implements the ingestion pipeline port against a
// remote HTTP ingestion service. Sources are registered with
// POST /v1/datasources and batches submitted with POST /v1/ingest.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/driftline-labs/driftline/internal/core/domain"
	"github.com/driftline-labs/driftline/internal/core/ports/driven"
	"github.com/driftline-labs/driftline/internal/logger"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

var _ driven.IngestionPipeline = (*Pipeline)(nil)

// Config holds remote pipeline configuration.
type Config struct {
	// BaseURL is the ingestion service root, without a trailing slash.
	BaseURL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Timeout overrides the request timeout. Zero means default.
	Timeout time.Duration
}

// Pipeline talks to a remote ingestion service over HTTP.
type Pipeline struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a remote pipeline client.
func New(cfg Config) (*Pipeline, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", domain.ErrInvalidInput)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Pipeline{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type registerRequest struct {
	SourceID    string `json:"source_id"`
	SourceType  string `json:"source_type"`
	DisplayName string `json:"display_name"`
}

type recordPayload struct {
	ID           string         `json:"id"`
	SourceID     string         `json:"source_id"`
	SourceType   string         `json:"source_type"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ChunkSize    int            `json:"chunk_size,omitempty"`
	ChunkOverlap int            `json:"chunk_overlap,omitempty"`
}

type ingestRequest struct {
	SourceID     string          `json:"source_id"`
	BatchIndex   int             `json:"batch_index"`
	TotalBatches int             `json:"total_batches"`
	Records      []recordPayload `json:"records"`
}

type ingestResponse struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// RegisterDataSource upserts the source with the remote service.
func (p *Pipeline) RegisterDataSource(ctx context.Context, descriptor driven.DataSourceDescriptor) error {
	body := registerRequest{
		SourceID:    descriptor.SourceID,
		SourceType:  descriptor.SourceType,
		DisplayName: descriptor.DisplayName,
	}

	resp, err := p.post(ctx, "/v1/datasources", body)
	if err != nil {
		return fmt.Errorf("register source: %w", err)
	}
	defer resp.Body.Close()

	if err := p.checkStatus(resp); err != nil {
		return fmt.Errorf("register source: %w", err)
	}

	logger.Debug("Registered source %s with pipeline at %s", descriptor.SourceID, p.baseURL)
	return nil
}

// IngestBatch submits one batch and returns the service's counts.
func (p *Pipeline) IngestBatch(ctx context.Context, req driven.BatchRequest) (driven.BatchResult, error) {
	body := ingestRequest{
		SourceID:     req.SourceID,
		BatchIndex:   req.Batch.BatchIndex,
		TotalBatches: req.Batch.TotalBatches,
		Records:      make([]recordPayload, 0, len(req.Batch.Records)),
	}
	for _, record := range req.Batch.Records {
		body.Records = append(body.Records, recordPayload{
			ID:           record.ID,
			SourceID:     record.SourceID,
			SourceType:   record.SourceType,
			Title:        record.Title,
			Content:      record.Content,
			Metadata:     record.Metadata,
			ChunkSize:    record.ChunkSize,
			ChunkOverlap: record.ChunkOverlap,
		})
	}

	resp, err := p.post(ctx, "/v1/ingest", body)
	if err != nil {
		return driven.BatchResult{}, fmt.Errorf("ingest batch %d: %w", req.Batch.BatchIndex, err)
	}
	defer resp.Body.Close()

	if err := p.checkStatus(resp); err != nil {
		return driven.BatchResult{}, fmt.Errorf("ingest batch %d: %w", req.Batch.BatchIndex, err)
	}

	var parsed ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return driven.BatchResult{}, fmt.Errorf("ingest batch %d: decode response: %w", req.Batch.BatchIndex, err)
	}

	return driven.BatchResult{Successful: parsed.Successful, Failed: parsed.Failed}, nil
}

func (p *Pipeline) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	return p.client.Do(req)
}

// checkStatus maps HTTP failure statuses to domain errors. The body is
// consumed on failure so the caller can always defer Close.
func (p *Pipeline) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrAuthInvalid, bytes.TrimSpace(detail))

	case http.StatusTooManyRequests:
		return &domain.RateLimitError{RetryAfter: retryAfter(resp)}

	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
}

// retryAfter parses the Retry-After header, accepting both delay
// seconds and HTTP dates.
func retryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
