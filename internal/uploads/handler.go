// Package uploads is the HTTP route layer over the transfer core: request
// validation, job submission and polling.
package uploads

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vodbridge/backend/internal/auth"
	"github.com/vodbridge/backend/internal/jobs"
	"github.com/vodbridge/backend/internal/models"
	"github.com/vodbridge/backend/internal/transfer"
	"github.com/vodbridge/backend/pkg/response"
)

// Handler handles transfer submission and job polling.
type Handler struct {
	orch   *transfer.Orchestrator
	store  jobs.Store
	tokens auth.TokenProvider // optional server-side credentials; nil when not configured
	logger *zap.Logger
}

// NewHandler creates an uploads handler. tokens may be nil; requests must
// then carry an inline bearer token.
func NewHandler(orch *transfer.Orchestrator, store jobs.Store, tokens auth.TokenProvider, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orch: orch, store: store, tokens: tokens, logger: logger}
}

// Submit handles POST /uploads. Validation failures create no job.
// Asynchronous requests get 202 with a poll URL; synchronous requests hold
// the connection until the job is terminal and receive the full job.
func (h *Handler) Submit(c *gin.Context) {
	var req models.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.SourceURL == "" {
		response.BadRequest(c, "source_url required")
		return
	}
	if req.DestinationURL == "" {
		response.BadRequest(c, "destination_url required")
		return
	}
	if req.ContentLength != nil && *req.ContentLength < 0 {
		response.BadRequest(c, "content_length must be non-negative")
		return
	}

	token, err := h.resolveToken(c, req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	job, err := h.orch.Submit(c.Request.Context(), req, token)
	if err != nil {
		h.logger.Error("submit failed", zap.Error(err), zap.String("source_url", req.SourceURL))
		response.Internal(c, "failed to accept transfer")
		return
	}

	if req.Synchronous {
		response.OK(c, job)
		return
	}
	response.Accepted(c, gin.H{
		"job_id":   job.ID,
		"status":   "accepted",
		"poll_url": "/uploads/" + job.ID.String(),
	})
}

// Poll handles GET /uploads/:id. Returns the current job snapshot, or 404
// when the id is unknown or its record has been evicted.
func (h *Handler) Poll(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid job id")
		return
	}
	job, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			response.NotFound(c, "job not found")
			return
		}
		h.logger.Error("poll failed", zap.Error(err), zap.String("job_id", id.String()))
		response.Internal(c, "failed to load job")
		return
	}
	response.OK(c, job)
}

// resolveToken picks the inline bearer token when present, otherwise falls
// back to the server-side credential exchange.
func (h *Handler) resolveToken(c *gin.Context, req models.UploadRequest) (string, error) {
	if req.AuthToken != "" {
		return req.AuthToken, nil
	}
	if h.tokens == nil {
		return "", errors.New("auth_token required (no server-side credentials configured)")
	}
	token, err := h.tokens.Token(c.Request.Context())
	if err != nil {
		h.logger.Error("token exchange failed", zap.Error(err))
		return "", errors.New("credential exchange failed")
	}
	return token, nil
}
