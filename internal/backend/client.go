package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"visuallab/internal/services"
	"visuallab/internal/summary"
)

const (
	OperationUpload   = "upload"
	OperationTrain    = "train"
	OperationDownload = "download"

	// RequestIDHeader carries the correlation identifier of one backend call.
	RequestIDHeader = "X-Request-ID"

	defaultMaxResponseBytes = 256 << 20
)

// FileHandle is a named byte source; *os.File satisfies it.
type FileHandle interface {
	Name() string
	io.Reader
}

// IsNilHandle reports whether file is absent, including a typed nil such as
// (*os.File)(nil) stored in the interface.
func IsNilHandle(file FileHandle) bool {
	if file == nil {
		return true
	}
	v := reflect.ValueOf(file)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Service is the transport contract the orchestrator depends on.
type Service interface {
	IngestDataset(ctx context.Context, file FileHandle) (summary.Dataset, error)
	StartTraining(ctx context.Context) (summary.Metrics, error)
	FetchArtifact(ctx context.Context) ([]byte, error)
}

// Config describes how to reach the processing service.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	MaxResponseBytes int64
	PreviewLimit     int
	UserAgent        string
}

// Client talks to the processing service over HTTP.
type Client struct {
	base         *url.URL
	http         *http.Client
	maxBytes     int64
	previewLimit int
	userAgent    string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// New constructs a backend client.
func New(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("backend: base url required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", raw)
	}
	base.RawQuery = ""
	base.Fragment = ""

	client := &Client{
		base:         base,
		http:         &http.Client{Timeout: cfg.Timeout},
		maxBytes:     cfg.MaxResponseBytes,
		previewLimit: cfg.PreviewLimit,
		userAgent:    strings.TrimSpace(cfg.UserAgent),
	}
	if client.maxBytes <= 0 {
		client.maxBytes = defaultMaxResponseBytes
	}
	if client.previewLimit <= 0 {
		client.previewLimit = summary.DefaultPreviewLimit
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// BaseURL returns the service root the client resolves endpoints against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// IngestDataset uploads the file as multipart field "file" and returns the
// profiled summary with its preview normalized.
func (c *Client) IngestDataset(ctx context.Context, file FileHandle) (summary.Dataset, error) {
	if IsNilHandle(file) {
		return summary.Dataset{}, services.Wrap(services.KindPrecondition, OperationUpload, "no file provided", nil)
	}

	stream := NewMultipartStream("file", filepath.Base(file.Name()), file)
	payload, _, err := c.do(ctx, OperationUpload, http.MethodPost, "/upload", stream.Body(), stream.ContentType())
	if writeErr := stream.Wait(); writeErr != nil {
		return summary.Dataset{}, services.Wrap(services.KindNetwork, OperationUpload, "stream dataset file", writeErr)
	}
	if err != nil {
		return summary.Dataset{}, err
	}
	return decodeDataset(payload, c.previewLimit)
}

// StartTraining asks the service to train on the last uploaded dataset.
func (c *Client) StartTraining(ctx context.Context) (summary.Metrics, error) {
	payload, _, err := c.do(ctx, OperationTrain, http.MethodPost, "/train", nil, "")
	if err != nil {
		return summary.Metrics{}, err
	}
	if msg, ok := errorEnvelope(payload); ok {
		return summary.Metrics{}, services.Wrap(services.KindPrecondition, OperationTrain, msg, nil)
	}
	var metrics summary.Metrics
	if err := json.Unmarshal(payload, &metrics); err != nil {
		return summary.Metrics{}, services.Wrap(services.KindMalformedResponse, OperationTrain, "decode metrics", err)
	}
	if err := metrics.Validate(); err != nil {
		return summary.Metrics{}, services.Wrap(services.KindMalformedResponse, OperationTrain, "invalid metrics", err)
	}
	return metrics, nil
}

// FetchArtifact downloads the serialized model blob.
func (c *Client) FetchArtifact(ctx context.Context) ([]byte, error) {
	payload, contentType, err := c.do(ctx, OperationDownload, http.MethodGet, "/download", nil, "")
	if err != nil {
		return nil, err
	}
	if isJSON(contentType) {
		if msg, ok := errorEnvelope(payload); ok {
			return nil, services.Wrap(services.KindPrecondition, OperationDownload, msg, nil)
		}
		return nil, services.Wrap(services.KindMalformedResponse, OperationDownload, "expected binary artifact, got JSON", nil)
	}
	if len(payload) == 0 {
		return nil, services.Wrap(services.KindMalformedResponse, OperationDownload, "empty artifact", nil)
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body io.Reader, contentType string) ([]byte, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, "", services.Wrap(services.KindNetwork, operation, "build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", services.Wrap(services.KindNetwork, operation, "request cancelled", ctxErr)
		}
		return nil, "", services.Wrap(services.KindNetwork, operation, "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", services.Wrap(services.KindNetwork, operation, "read response", err)
	}
	if int64(len(payload)) > c.maxBytes {
		return nil, "", services.Wrap(services.KindMalformedResponse, operation, fmt.Sprintf("response exceeds %d bytes", c.maxBytes), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", services.ServerError(operation, resp.StatusCode, serverMessage(payload))
	}
	return payload, resp.Header.Get("Content-Type"), nil
}

// errorEnvelope recognizes the service's {"error": "..."} precondition reply.
func errorEnvelope(payload []byte) (string, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", false
	}
	raw, ok := envelope["error"]
	if !ok {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil || strings.TrimSpace(msg) == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return strings.TrimSpace(msg), true
}

func serverMessage(payload []byte) string {
	if msg, ok := errorEnvelope(payload); ok {
		return msg
	}
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(payload, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	text := strings.TrimSpace(string(payload))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "request rejected"
	}
	return text
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
