package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
	"github.com/handarchive/video-analysis-service/internal/domain/port"
	"github.com/handarchive/video-analysis-service/internal/jobstore"
	"github.com/handarchive/video-analysis-service/internal/orchestrator"
)

type stubStorage struct{}

func (stubStorage) DownloadVideo(context.Context, string, string) error { return nil }
func (stubStorage) UploadClip(_ context.Context, key string, _ string) (string, error) {
	return "storage://clips/" + key, nil
}
func (stubStorage) DeleteClip(context.Context, string) error { return nil }

type stubExtractor struct{}

func (stubExtractor) ExtractClip(context.Context, string, entity.TimeSegment, string) error {
	return nil
}
func (stubExtractor) ProbeDuration(context.Context, string) (float64, error) { return 7200, nil }

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzeSegment(context.Context, string, entity.TimeSegment, entity.Platform) (*port.SegmentAnalysis, error) {
	return &port.SegmentAnalysis{Hands: []entity.Hand{}}, nil
}

func newTestServer(t *testing.T) (*Server, *jobstore.Store) {
	t.Helper()
	store := jobstore.New()
	orch := orchestrator.New(
		store, stubStorage{}, stubExtractor{}, stubAnalyzer{}, nil, nil, nil,
		zap.NewNop(),
		orchestrator.Config{
			TempDir:           t.TempDir(),
			MaxConcurrentJobs: 2,
			SegmentMaxRetries: 1,
			RetryBaseDelay:    time.Millisecond,
			MaxClipSeconds:    1800,
		},
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		orch.Close(ctx)
	})
	return New(store, orch, zap.NewNop()), store
}

func TestHandleAnalyzeAccepts(t *testing.T) {
	srv, store := newTestServer(t)

	body := `{
		"streamId": "stream-1",
		"videoRef": "storage://videos/ept/final.mp4",
		"segments": [{"start": 0, "end": 600, "type": "gameplay"}],
		"platform": "ept"
	}`
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "analysis started", resp.Message)

	// The accepted job is immediately visible to pollers.
	assert.Len(t, store.List(jobstore.Filter{}), 1)
}

func TestHandleAnalyzeRejects(t *testing.T) {
	srv, store := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing stream id", `{"videoRef": "storage://v/k", "segments": [{"start":0,"end":10}], "platform": "ept"}`},
		{"bad video scheme", `{"streamId": "s", "videoRef": "https://x/v.mp4", "segments": [{"start":0,"end":10}], "platform": "ept"}`},
		{"no segments", `{"streamId": "s", "videoRef": "storage://v/k", "segments": [], "platform": "ept"}`},
		{"overlapping segments", `{"streamId": "s", "videoRef": "storage://v/k", "segments": [{"start":0,"end":10},{"start":5,"end":15}], "platform": "ept"}`},
		{"unknown platform", `{"streamId": "s", "videoRef": "storage://v/k", "segments": [{"start":0,"end":10}], "platform": "ggpoker"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp analyzeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}

	assert.Empty(t, store.List(jobstore.Filter{}))
}

func TestHandleStatus(t *testing.T) {
	srv, store := newTestServer(t)

	job := store.Create("stream-1", "storage://videos/v.mp4", entity.PlatformTriton,
		[]entity.TimeSegment{{Start: 0, End: 60}})

	req := httptest.NewRequest(http.MethodGet, "/status/"+job.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Job)
	assert.Equal(t, job.ID.String(), resp.Job.ID)
	assert.Equal(t, entity.JobStatusPending, resp.Job.Status)
	assert.Equal(t, "stream-1", resp.Job.Metadata.StreamRef)
	assert.Empty(t, resp.Job.StartedAt)
	assert.NotEmpty(t, resp.Job.CreatedAt)
}

func TestHandleStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{
		"/status/9f9d2c51-0000-4e1a-b000-111111111111",
		"/status/not-a-uuid",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code, path)
		var resp statusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "job not found", resp.Error)
	}
}

func TestHandleStatusIncludesOutputWhenTerminal(t *testing.T) {
	srv, store := newTestServer(t)

	job := store.Create("stream-1", "storage://videos/v.mp4", entity.PlatformEPT,
		[]entity.TimeSegment{{Start: 0, End: 60}})
	require.True(t, store.MarkExecuting(job.ID))
	require.True(t, store.Complete(job.ID, &entity.AnalysisOutput{
		Hands: []entity.Hand{},
		SegmentResults: []entity.SegmentResult{
			{SegmentID: 0, Status: entity.SegmentCompleted},
		},
	}))

	req := httptest.NewRequest(http.MethodGet, "/status/"+job.ID.String(), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Job.Output)
	assert.NotNil(t, resp.Job.Output.Hands)
	assert.Len(t, resp.Job.Output.SegmentResults, 1)
	assert.NotEmpty(t, resp.Job.CompletedAt)
}

func TestHandleList(t *testing.T) {
	srv, store := newTestServer(t)

	a := store.Create("s1", "storage://v/a.mp4", entity.PlatformEPT, []entity.TimeSegment{{Start: 0, End: 60}})
	b := store.Create("s2", "storage://v/b.mp4", entity.PlatformEPT, []entity.TimeSegment{{Start: 0, End: 60}})
	require.True(t, store.MarkExecuting(b.ID))
	require.True(t, store.Complete(b.ID, &entity.AnalysisOutput{}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Jobs, 2)

	req = httptest.NewRequest(http.MethodGet, "/status?active=true", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, a.ID.String(), resp.Jobs[0].ID)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
