package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds the content-length probe.
const DefaultProbeTimeout = 15 * time.Second

// LengthResolver determines the byte size of a source payload without
// downloading its body.
type LengthResolver interface {
	Resolve(ctx context.Context, sourceURL string) (int64, error)
}

// HeadProber resolves content length with an HTTP HEAD request.
type HeadProber struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewHeadProber creates a prober. A timeout <= 0 falls back to
// DefaultProbeTimeout.
func NewHeadProber(timeout time.Duration, logger *zap.Logger) *HeadProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeadProber{client: &http.Client{}, timeout: timeout, logger: logger}
}

// Resolve issues a HEAD probe and returns the source's reported length.
// Fails with ProbeTimeout on expiry and SizeUnavailable when the source
// does not report a length; neither is retried by the orchestrator.
func (p *HeadProber) Resolve(ctx context.Context, sourceURL string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sourceURL, nil)
	if err != nil {
		return 0, &Error{Kind: KindSizeUnavailable, Err: fmt.Errorf("create probe request: %w", err)}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, &Error{Kind: KindProbeTimeout, Err: err}
		}
		return 0, &Error{Kind: KindSizeUnavailable, Err: fmt.Errorf("probe: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &Error{Kind: KindSizeUnavailable, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength < 0 {
		p.logger.Debug("source reported no content length", zap.String("source_url", sourceURL))
		return 0, &Error{Kind: KindSizeUnavailable, StatusCode: resp.StatusCode}
	}
	return resp.ContentLength, nil
}
