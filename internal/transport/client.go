// Package transport is the HTTP collaborator consumed by the engine: size
// probes, whole-stream fetches and ranged fetches, each as a single attempt
// with a classified error. Retry and backoff policy belongs to the engine.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds a whole request, header to last body byte.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// MaxIdlePerHost sets connection reuse per mirror host.
	MaxIdlePerHost int
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:        30 * time.Second,
		UserAgent:      "metalinkdl/1.0",
		MaxIdlePerHost: 16,
	}
}

// FileInfo is the result of a HEAD probe.
type FileInfo struct {
	// Size is -1 when the server did not declare a Content-Length.
	Size          int64
	AcceptsRanges bool
}

// Response is an open byte stream from a mirror. Ranged is true when the
// server honored the requested byte range.
type Response struct {
	Body          io.ReadCloser
	ContentLength int64
	Ranged        bool
}

type Client struct {
	client *http.Client
	opts   Options
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.MaxIdlePerHost <= 0 {
		opts.MaxIdlePerHost = DefaultOptions().MaxIdlePerHost
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdlePerHost,
		MaxIdleConns:        opts.MaxIdlePerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		// Range requests need raw bytes.
		DisableCompression: true,
	}

	return &Client{
		client: &http.Client{Transport: transport, Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Head probes a mirror for size and range capability.
func (c *Client) Head(ctx context.Context, url string) (*FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Classify(url, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTPStatus, Status: resp.StatusCode, URL: url}
	}

	return &FileInfo{
		Size:          resp.ContentLength,
		AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

// Get opens the whole file as a stream.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.decorate(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Classify(url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &Error{Kind: KindHTTPStatus, Status: resp.StatusCode, URL: url}
	}

	return &Response{Body: resp.Body, ContentLength: resp.ContentLength}, nil
}

// GetRange requests the inclusive byte range [start, end]. A server that
// ignores the Range header gets its body closed and ErrRangeNotSupported
// back, so the caller can demote the mirror to whole-stream mode.
func (c *Client) GetRange(ctx context.Context, url string, start, end int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.decorate(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Classify(url, err)
	}

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		return &Response{Body: resp.Body, ContentLength: resp.ContentLength, Ranged: true}, nil

	case resp.StatusCode == http.StatusOK:
		// Some servers answer 200 with a Content-Range anyway; accept that
		// as a honored range. A plain 200 means ranges are unsupported.
		if resp.Header.Get("Content-Range") != "" {
			return &Response{Body: resp.Body, ContentLength: resp.ContentLength, Ranged: true}, nil
		}
		resp.Body.Close()
		return nil, ErrRangeNotSupported

	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, ErrRangeNotSupported

	default:
		resp.Body.Close()
		return nil, &Error{Kind: KindHTTPStatus, Status: resp.StatusCode, URL: url}
	}
}

func (c *Client) decorate(req *http.Request) {
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
}
