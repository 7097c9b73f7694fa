// Package enhance wraps the neural enhancement collaborator.
//
// The model itself (face restoration + background upsampling) lives in a
// separate inference backend; this package only knows its HTTP contract
// and its cost profile. The returned image is always upscaled by the
// fixed internal factor relative to the input.
package enhance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Versions are the supported model checkpoints.
var Versions = map[string]bool{
	"v1.2": true,
	"v1.3": true,
	"v1.4": true,
}

// ErrBackend covers any failure of the enhancement backend. Callers log
// the wrapped detail but must not surface it beyond a generic message.
var ErrBackend = errors.New("enhancement backend error")

// Enhancer is the opaque enhancement function. Implementations restore
// faces and upsample the background, returning the result at a fixed 2x
// over the input dimensions. No side effects on quota or auth state.
type Enhancer interface {
	Enhance(ctx context.Context, img image.Image, version string) (image.Image, error)
}

// Client talks to the inference backend over HTTP. It is safe for
// concurrent use; the backend serializes or pools model work on its side,
// so no request-level locking happens here.
type Client struct {
	baseURL        string
	defaultVersion string
	httpClient     *http.Client
	logger         *zap.Logger

	warmOnce sync.Once
}

// NewClient builds a backend client. The timeout bounds one full
// enhancement round trip.
func NewClient(baseURL, defaultVersion string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:        baseURL,
		defaultVersion: defaultVersion,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logger,
	}
}

// Warm asks the backend to load its default checkpoint. Called once at
// startup; a failure is logged and retried implicitly by the first real
// request, so startup never blocks on model weights.
func (c *Client) Warm(ctx context.Context) {
	c.warmOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/warmup", nil)
		if err != nil {
			return
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("model warm-up failed, deferring to first request", zap.Error(err))
			return
		}
		resp.Body.Close()
		c.logger.Info("enhancement backend warmed", zap.Int("status", resp.StatusCode))
	})
}

// Enhance sends the pre-shaped image to the backend and decodes the
// restored result. The wire format is PNG both ways.
func (c *Client) Enhance(ctx context.Context, img image.Image, version string) (image.Image, error) {
	if !Versions[version] {
		version = c.defaultVersion
	}

	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, fmt.Errorf("%w: encode input: %v", ErrBackend, err)
	}

	endpoint := c.baseURL + "/restore?version=" + url.QueryEscape(version)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "image/png")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrBackend, resp.StatusCode, detail)
	}

	restored, err := png.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", ErrBackend, err)
	}

	c.logger.Debug("enhancement complete",
		zap.String("version", version),
		zap.Duration("latency", time.Since(start)))

	return restored, nil
}
