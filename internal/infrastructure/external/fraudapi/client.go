package fraudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"go.uber.org/zap"
)

// FormField is the multipart field the fraud detection service reads the document from
const FormField = "file"

// statusSuccess is the body status of a processed document
const statusSuccess = "success"

// maxErrorBody bounds how much of a failed response is kept for logging
const maxErrorBody = 512

var (
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded into a verdict
	ErrMalformedResponse = port.ErrMalformedResponse

	// ErrProcessingFailed is returned when the service answers 2xx but reports a failure
	ErrProcessingFailed = port.ErrProcessingFailed
)

// StatusError is returned for non-2xx responses
type StatusError = port.StatusError

// TransportError is returned when the request never produced a response.
// It matches port.ErrServiceUnreachable and unwraps to the cause.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fraud detection request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is port.ErrServiceUnreachable
func (e *TransportError) Is(target error) bool {
	return target == port.ErrServiceUnreachable
}

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds fraud detection client settings
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client posts claim documents to the fraud detection service
type Client struct {
	endpoint   string
	httpClient HTTPClient
	logger     *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient replaces the default net/http client
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new fraud detection client
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type uploadResponse struct {
	Status        string                `json:"status"`
	ExtractedData *entity.ExtractedData `json:"extractedData"`
}

type errorResponse struct {
	Detail interface{} `json:"detail"`
}

// Analyze uploads one document as a single-part multipart body and decodes the verdict
func (c *Client) Analyze(ctx context.Context, doc entity.Document) (*entity.ExtractedData, error) {
	body, contentType, err := encodeDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Submitting document for fraud detection",
		zap.String("file_name", doc.Name),
		zap.Int64("size", doc.Size()),
		zap.String("endpoint", c.endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Fraud detection request failed",
			zap.String("file_name", doc.Name),
			zap.Error(err))
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Failed to read fraud detection response",
			zap.String("file_name", doc.Name),
			zap.Error(err))
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(raw)
		c.logger.Error("Fraud detection service returned error status",
			zap.String("file_name", doc.Name),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail))
		return nil, &StatusError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.logger.Error("Failed to decode fraud detection response",
			zap.String("file_name", doc.Name),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if parsed.Status != statusSuccess {
		c.logger.Error("Fraud detection service reported failure",
			zap.String("file_name", doc.Name),
			zap.String("status", parsed.Status))
		return nil, fmt.Errorf("%w: status %q", ErrProcessingFailed, parsed.Status)
	}

	if parsed.ExtractedData == nil || !entity.IsAnalyzedFraudStatus(parsed.ExtractedData.FraudStatus) {
		c.logger.Error("Fraud detection response has no usable verdict",
			zap.String("file_name", doc.Name))
		return nil, fmt.Errorf("%w: missing or unknown fraudStatus", ErrMalformedResponse)
	}

	return parsed.ExtractedData, nil
}

func encodeDocument(doc entity.Document) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	mediaType := doc.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, doc.Name))
	header.Set("Content-Type", mediaType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

// errorDetail extracts the service's "detail" message, falling back to a truncated body
func errorDetail(raw []byte) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Detail != nil {
		if s, ok := er.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(er.Detail); err == nil {
			return string(b)
		}
	}

	text := strings.TrimSpace(string(raw))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}

var _ port.FraudDetectionClient = (*Client)(nil)
