package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents transfer job lifecycle.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusUploading   JobStatus = "uploading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether s is a final status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses along the forward-only lifecycle path.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusDownloading:
		return 1
	case JobStatusUploading:
		return 2
	case JobStatusCompleted, JobStatusFailed:
		return 3
	}
	return -1
}

// CanAdvanceTo reports whether a transition from s to next is a legal
// forward move. Terminal states accept no further transitions; uploading
// may repeat itself across retry attempts.
func (s JobStatus) CanAdvanceTo(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	if s == JobStatusUploading && next == JobStatusUploading {
		return true
	}
	return next.rank() > s.rank()
}

// UploadRequest describes one source-to-destination transfer. Immutable
// once accepted.
type UploadRequest struct {
	SourceURL      string `json:"source_url"`
	DestinationURL string `json:"destination_url"`
	AuthToken      string `json:"auth_token,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	ContentLength  *int64 `json:"content_length,omitempty"`
	Synchronous    bool   `json:"synchronous,omitempty"`
}

// RequestSnapshot is the subset of the request kept on the job for
// observability. The auth token is never retained.
type RequestSnapshot struct {
	SourceURL      string `json:"source_url"`
	DestinationURL string `json:"destination_url"`
	ContentType    string `json:"content_type,omitempty"`
	ContentLength  *int64 `json:"content_length,omitempty"`
}

// UploadResult holds the destination's terminal success response.
type UploadResult struct {
	StatusCode int    `json:"status_code"`
	AssignedID string `json:"assigned_id,omitempty"`
	RawBody    string `json:"raw_body,omitempty"`
}

// JobError holds a terminal failure.
type JobError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Job is one tracked transfer (source URL → resumable upload endpoint).
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Status      JobStatus       `json:"status"`
	Request     RequestSnapshot `json:"request"`
	Result      *UploadResult   `json:"result,omitempty"`
	Error       *JobError       `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewJob creates a pending job for the given request.
func NewJob(req UploadRequest) *Job {
	return &Job{
		ID:     uuid.New(),
		Status: JobStatusPending,
		Request: RequestSnapshot{
			SourceURL:      req.SourceURL,
			DestinationURL: req.DestinationURL,
			ContentType:    req.ContentType,
			ContentLength:  req.ContentLength,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy safe to hand to readers while the original
// keeps being mutated by the orchestrator.
func (j *Job) Clone() *Job {
	c := *j
	if j.Request.ContentLength != nil {
		v := *j.Request.ContentLength
		c.Request.ContentLength = &v
	}
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
