package uploads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vodbridge/backend/internal/auth"
	"github.com/vodbridge/backend/internal/jobs"
	"github.com/vodbridge/backend/internal/models"
	"github.com/vodbridge/backend/internal/transfer"
	"github.com/vodbridge/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(store jobs.Store, tokens auth.TokenProvider) *gin.Engine {
	prober := transfer.NewHeadProber(time.Second, nil)
	relay := transfer.NewHTTPRelay(time.Minute, nil)
	orch := transfer.NewOrchestrator(store, prober, relay, transfer.Config{
		MaxAttempts: 3,
		BackoffBase: 0,
		BackoffCap:  time.Millisecond,
	}, nil)
	h := NewHandler(orch, store, tokens, nil)

	r := gin.New()
	r.POST("/uploads", h.Submit)
	r.GET("/uploads/:id", h.Poll)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func dataMap(t *testing.T, envelope response.Body) map[string]any {
	t.Helper()
	m, ok := envelope.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %#v", envelope.Data)
	return m
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	store := jobs.NewMemoryStore(10)
	r := newRouter(store, nil)

	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"missing source", map[string]any{"destination_url": "http://d", "auth_token": "t"}, "source_url required"},
		{"missing destination", map[string]any{"source_url": "http://s", "auth_token": "t"}, "destination_url required"},
		{"missing token", map[string]any{"source_url": "http://s", "destination_url": "http://d"}, "auth_token required"},
		{"negative length", map[string]any{"source_url": "http://s", "destination_url": "http://d", "auth_token": "t", "content_length": -5}, "content_length"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, envelope := doJSON(t, r, http.MethodPost, "/uploads", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.False(t, envelope.Success)
			require.Contains(t, envelope.Error, tc.want)
		})
	}

	// Validation failures create no job.
	require.Equal(t, 0, store.Len())
}

func TestSubmitRejectsMalformedJSON(t *testing.T) {
	r := newRouter(jobs.NewMemoryStore(10), nil)
	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPollUnknownJob(t *testing.T) {
	r := newRouter(jobs.NewMemoryStore(10), nil)

	w, _ := doJSON(t, r, http.MethodGet, "/uploads/0e1ff09e-58b5-4cbe-a9ee-9606b2b1e34f", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w2, _ := doJSON(t, r, http.MethodGet, "/uploads/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w2.Code)
}

func TestSubmitAsyncEndToEnd(t *testing.T) {
	payload := strings.Repeat("v", 1000)
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, payload)
	}))
	defer src.Close()
	dst := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"vid-e2e"}`)
	}))
	defer dst.Close()

	store := jobs.NewMemoryStore(10)
	r := newRouter(store, nil)

	w, envelope := doJSON(t, r, http.MethodPost, "/uploads", map[string]any{
		"source_url":      src.URL,
		"destination_url": dst.URL,
		"auth_token":      "tok",
		"content_length":  1000,
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.True(t, envelope.Success)

	data := dataMap(t, envelope)
	jobID, _ := data["job_id"].(string)
	require.NotEmpty(t, jobID)
	require.Equal(t, "accepted", data["status"])
	require.Equal(t, "/uploads/"+jobID, data["poll_url"])

	var final map[string]any
	require.Eventually(t, func() bool {
		pw, penv := doJSON(t, r, http.MethodGet, fmt.Sprintf("/uploads/%s", jobID), nil)
		if pw.Code != http.StatusOK {
			return false
		}
		final = dataMap(t, penv)
		return final["status"] == string(models.JobStatusCompleted)
	}, 3*time.Second, 20*time.Millisecond)

	result, ok := final["result"].(map[string]any)
	require.True(t, ok, "completed job has no result: %#v", final)
	require.Equal(t, "vid-e2e", result["assigned_id"])
	require.Nil(t, final["error"])
}

func TestSubmitSyncReturnsTerminalJob(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "abcd")
	}))
	defer src.Close()
	dst := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"vid-sync"}`)
	}))
	defer dst.Close()

	r := newRouter(jobs.NewMemoryStore(10), nil)
	w, envelope := doJSON(t, r, http.MethodPost, "/uploads", map[string]any{
		"source_url":      src.URL,
		"destination_url": dst.URL,
		"auth_token":      "tok",
		"content_length":  4,
		"synchronous":     true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := dataMap(t, envelope)
	require.Equal(t, string(models.JobStatusCompleted), data["status"])
	result, ok := data["result"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "vid-sync", result["assigned_id"])
}

func TestSubmitSyncSurfacesFailureInline(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "abcd")
	}))
	defer src.Close()
	dst := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "no", http.StatusForbidden)
	}))
	defer dst.Close()

	r := newRouter(jobs.NewMemoryStore(10), nil)
	w, envelope := doJSON(t, r, http.MethodPost, "/uploads", map[string]any{
		"source_url":      src.URL,
		"destination_url": dst.URL,
		"auth_token":      "tok",
		"content_length":  4,
		"synchronous":     true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := dataMap(t, envelope)
	require.Equal(t, string(models.JobStatusFailed), data["status"])
	jerr, ok := data["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, string(transfer.KindUpstreamRejected), jerr["code"])
	require.Nil(t, data["result"])
}

func TestSubmitUsesServerSideTokenProvider(t *testing.T) {
	var gotAuth string
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "abcd")
	}))
	defer src.Close()
	dst := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"x"}`)
	}))
	defer dst.Close()

	r := newRouter(jobs.NewMemoryStore(10), auth.StaticToken("server-side-token"))
	w, _ := doJSON(t, r, http.MethodPost, "/uploads", map[string]any{
		"source_url":      src.URL,
		"destination_url": dst.URL,
		"content_length":  4,
		"synchronous":     true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Bearer server-side-token", gotAuth)
}
