package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"visuallab/internal/backend"
	"visuallab/internal/services"
)

// ErrUnavailable reports that no daemon answered on the control address.
var ErrUnavailable = errors.New("control API unavailable")

// Client calls the daemon control API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// NewClient builds a client for bind ("host:port" or a URL).
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse control address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		// Intents block until the backend answers and wait long-polls, so
		// deadlines come from the caller's context.
		http:  &http.Client{},
		token: strings.TrimSpace(token),
	}, nil
}

// State fetches the current snapshot.
func (c *Client) State(ctx context.Context) (StateResponse, error) {
	var out StateResponse
	err := c.do(ctx, http.MethodGet, "/api/state", nil, nil, "", &out)
	return out, err
}

// Wait long-polls for a snapshot newer than since. A zero timeout uses the
// server default.
func (c *Client) Wait(ctx context.Context, since uint64, timeout time.Duration) (StateResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	if timeout > 0 {
		query.Set("timeout", strconv.FormatInt(waitSeconds(timeout), 10))
	}
	var out StateResponse
	err := c.do(ctx, http.MethodGet, "/api/state/wait", query, nil, "", &out)
	return out, err
}

// waitSeconds converts a long-poll duration to the whole seconds the server
// accepts, rounding up so short waits are not mistaken for "use the default".
func waitSeconds(timeout time.Duration) int64 {
	secs := int64(timeout / time.Second)
	if timeout%time.Second != 0 {
		secs++
	}
	return secs
}

// Upload sends the file at path as the new dataset.
func (c *Client) Upload(ctx context.Context, path string) (StateResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		return StateResponse{}, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	stream := backend.NewMultipartStream("file", filepath.Base(path), file)
	var out StateResponse
	err = c.do(ctx, http.MethodPost, "/api/upload", nil, stream.Body(), stream.ContentType(), &out)
	if writeErr := stream.Wait(); writeErr != nil {
		return StateResponse{}, fmt.Errorf("upload dataset: %w", writeErr)
	}
	return out, err
}

// Train starts training and returns once the result is applied.
func (c *Client) Train(ctx context.Context) (StateResponse, error) {
	var out StateResponse
	err := c.do(ctx, http.MethodPost, "/api/train", nil, nil, "", &out)
	return out, err
}

// Download fetches and persists the artifact on the daemon host.
func (c *Client) Download(ctx context.Context) (StateResponse, error) {
	var out StateResponse
	err := c.do(ctx, http.MethodPost, "/api/download", nil, nil, "", &out)
	return out, err
}

// Navigate changes the active stage.
func (c *Client) Navigate(ctx context.Context, stage string) (StateResponse, error) {
	payload, err := json.Marshal(NavigateRequest{Stage: stage})
	if err != nil {
		return StateResponse{}, err
	}
	var out StateResponse
	err = c.do(ctx, http.MethodPost, "/api/navigate", nil, bytes.NewReader(payload), "application/json", &out)
	return out, err
}

// History returns up to limit journal entries.
func (c *Client) History(ctx context.Context, limit int) (HistoryResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out HistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/history", query, nil, "", &out)
	return out, err
}

// ClearHistory removes all journal entries.
func (c *Client) ClearHistory(ctx context.Context) (ClearResponse, error) {
	var out ClearResponse
	err := c.do(ctx, http.MethodDelete, "/api/history", nil, nil, "", &out)
	return out, err
}

// Status reports daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, "", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if IsUnavailable(err) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
	}
	if payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}
	if kind, ok := services.ParseKind(payload.Kind); ok {
		return services.Wrap(kind, "", payload.Error, nil)
	}
	return fmt.Errorf("control API returned status %d: %s", resp.StatusCode, payload.Error)
}

// IsUnavailable reports whether err means no daemon is listening.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
