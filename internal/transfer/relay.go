package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vodbridge/backend/internal/models"
)

const (
	// DefaultIdleTimeout aborts an attempt after this much source-read
	// inactivity.
	DefaultIdleTimeout = 60 * time.Second
	// maxCapturedBody caps how much of the destination response is kept
	// for diagnostics.
	maxCapturedBody = 1 << 20
)

// Transfer is one fully-specified relay attempt: every field resolved
// before the attempt starts.
type Transfer struct {
	SourceURL      string
	DestinationURL string
	AuthToken      string
	ContentType    string
	ContentLength  int64
}

// Relayer performs exactly one download-to-upload attempt. No retry logic
// lives behind this interface.
type Relayer interface {
	Relay(ctx context.Context, t Transfer) (*models.UploadResult, error)
}

// HTTPRelay pipes a source GET body directly into a destination PUT body,
// so only bounded chunks of the payload are ever resident in memory.
// Source redirects are followed transparently (client default, 10 hops);
// the body is read from the final response only, so a redirect can never
// interrupt an in-flight stream.
type HTTPRelay struct {
	client      *http.Client
	idleTimeout time.Duration
	logger      *zap.Logger
}

// NewHTTPRelay creates a relay. An idleTimeout <= 0 falls back to
// DefaultIdleTimeout.
func NewHTTPRelay(idleTimeout time.Duration, logger *zap.Logger) *HTTPRelay {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPRelay{client: &http.Client{}, idleTimeout: idleTimeout, logger: logger}
}

// Relay performs one attempt and returns either the destination's terminal
// success or a classified *Error.
func (r *HTTPRelay) Relay(ctx context.Context, t Transfer) (*models.UploadResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, err := r.openSource(ctx, t.SourceURL)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	watchdog := newIdleWatchdogReader(src, r.idleTimeout, cancel)
	defer watchdog.stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.DestinationURL, watchdog)
	if err != nil {
		return nil, &Error{Kind: KindUpstreamRejected, Err: fmt.Errorf("create upload request: %w", err)}
	}
	req.ContentLength = t.ContentLength
	req.Header.Set("Authorization", "Bearer "+t.AuthToken)
	req.Header.Set("Content-Type", t.ContentType)

	resp, err := r.client.Do(req)
	if err != nil {
		if watchdog.expired() {
			return nil, &Error{Kind: KindSourceTimeout, Retryable: true, Err: err}
		}
		return nil, &Error{Kind: KindTransport, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxCapturedBody))
	return interpretResponse(resp.StatusCode, body)
}

// openSource opens the read stream. Any error-range status aborts the
// attempt without transferring a byte.
func (r *HTTPRelay) openSource(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindSourceFetchFailed, Err: fmt.Errorf("create download request: %w", err)}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Retryable: true, Err: fmt.Errorf("download: %w", err)}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &Error{Kind: KindSourceFetchFailed, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// interpretResponse maps the destination's final status into a result or a
// classified failure.
func interpretResponse(status int, body []byte) (*models.UploadResult, error) {
	switch {
	case status >= 200 && status <= 299:
		return &models.UploadResult{
			StatusCode: status,
			AssignedID: extractAssignedID(body),
			RawBody:    string(body),
		}, nil
	case status == http.StatusPermanentRedirect:
		// 308 Resume Incomplete. Chunked resume is not implemented, so a
		// retry restarts the whole transfer from byte 0.
		return nil, &Error{Kind: KindResumeIncomplete, Retryable: true, StatusCode: status, Body: string(body)}
	case status >= 500:
		return nil, &Error{Kind: KindUpstreamServerError, Retryable: true, StatusCode: status, Body: string(body)}
	default:
		return nil, &Error{Kind: KindUpstreamRejected, StatusCode: status, Body: string(body)}
	}
}

// extractAssignedID best-effort parses the destination-assigned identifier
// from a JSON success body. Parse failures degrade to an absent id, never
// to a failed attempt.
func extractAssignedID(body []byte) string {
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.ID
}

// idleWatchdogReader cancels the attempt when no byte has been read from
// the source for the configured duration.
type idleWatchdogReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
	fired   atomic.Bool
}

func newIdleWatchdogReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleWatchdogReader {
	w := &idleWatchdogReader{r: r, timeout: timeout}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		cancel()
	})
	return w
}

func (w *idleWatchdogReader) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	if !w.fired.Load() {
		w.timer.Reset(w.timeout)
	}
	return n, err
}

func (w *idleWatchdogReader) stop()         { w.timer.Stop() }
func (w *idleWatchdogReader) expired() bool { return w.fired.Load() }
