package material

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrExtractorDisabled is returned when no extraction service is configured.
var ErrExtractorDisabled = errors.New("text extraction is not configured")

// ErrExtractedTooLarge is returned when the extracted text exceeds the
// extractor's size limit.
var ErrExtractedTooLarge = errors.New("extracted text exceeds size limit")

// maxExtractedBytes caps the text read back from the extractor.
const maxExtractedBytes = 8 << 20

// TikaExtractor calls an Apache Tika server (PUT /tika) to turn PDFs into
// plain text.
type TikaExtractor struct {
	baseURL  string
	client   *http.Client
	maxBytes int64
}

// TikaOption configures a TikaExtractor.
type TikaOption func(*TikaExtractor)

// WithTikaHTTPClient sets a custom HTTP client.
func WithTikaHTTPClient(client *http.Client) TikaOption {
	return func(e *TikaExtractor) {
		e.client = client
	}
}

// WithTikaMaxBytes sets the largest extracted text accepted.
func WithTikaMaxBytes(n int64) TikaOption {
	return func(e *TikaExtractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// NewTikaExtractor creates an extractor for the server at baseURL.
func NewTikaExtractor(baseURL string, opts ...TikaOption) *TikaExtractor {
	e := &TikaExtractor{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   http.DefaultClient,
		maxBytes: maxExtractedBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *TikaExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if e == nil || e.baseURL == "" {
		return "", ErrExtractorDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.baseURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body[:min(len(body), 512)])))
	}
	if int64(len(body)) > e.maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrExtractedTooLarge, e.maxBytes)
	}
	return string(body), nil
}

// HealthCheck asks the Tika server for its version banner.
func (e *TikaExtractor) HealthCheck(ctx context.Context) error {
	if e == nil || e.baseURL == "" {
		return ErrExtractorDisabled
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/version", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("tika health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tika health check returned status %d", resp.StatusCode)
	}
	return nil
}
