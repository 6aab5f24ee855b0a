package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
	"github.com/handarchive/video-analysis-service/internal/jobstore"
	"github.com/handarchive/video-analysis-service/internal/orchestrator"
)

type analyzeRequest struct {
	StreamID string               `json:"streamId"`
	VideoRef string               `json:"videoRef"`
	Segments []entity.TimeSegment `json:"segments"`
	Platform entity.Platform      `json:"platform"`
	Players  []string             `json:"players,omitempty"`
}

type analyzeResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// jobView is the stable wire schema for one job. Internal field layout may
// evolve; this projection must not.
type jobView struct {
	ID          string                 `json:"id"`
	Status      entity.JobStatus       `json:"status"`
	Metadata    entity.JobMetadata     `json:"metadata"`
	Output      *entity.AnalysisOutput `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   string                 `json:"createdAt"`
	StartedAt   string                 `json:"startedAt,omitempty"`
	CompletedAt string                 `json:"completedAt,omitempty"`
	UpdatedAt   string                 `json:"updatedAt"`
}

type statusResponse struct {
	Success bool     `json:"success"`
	Job     *jobView `json:"job,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type listResponse struct {
	Success bool      `json:"success"`
	Count   int       `json:"count"`
	Jobs    []jobView `json:"jobs"`
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func viewOf(job *entity.Job) jobView {
	v := jobView{
		ID:        job.ID.String(),
		Status:    job.Status,
		Metadata:  job.Metadata,
		Output:    job.Output,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(timeLayout),
		UpdatedAt: job.UpdatedAt.Format(timeLayout),
	}
	if job.StartedAt != nil {
		v.StartedAt = job.StartedAt.Format(timeLayout)
	}
	if job.CompletedAt != nil {
		v.CompletedAt = job.CompletedAt.Format(timeLayout)
	}
	return v
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, analyzeResponse{Success: false, Error: "invalid JSON body: " + err.Error()})
		return
	}

	jobID, err := s.orch.Submit(orchestrator.SubmitRequest{
		StreamID: req.StreamID,
		VideoURI: req.VideoRef,
		Segments: req.Segments,
		Platform: req.Platform,
		Players:  req.Players,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, analyzeResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, analyzeResponse{
		Success: true,
		JobID:   jobID.String(),
		Message: "analysis started",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("jobId"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, statusResponse{Success: false, Error: "job not found"})
		return
	}

	job, ok := s.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, statusResponse{Success: false, Error: "job not found"})
		return
	}

	view := viewOf(job)
	writeJSON(w, http.StatusOK, statusResponse{Success: true, Job: &view})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter := jobstore.Filter{}
	if r.URL.Query().Get("active") == "true" {
		filter.ActiveOnly = true
	}

	jobs := s.store.List(filter)
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, viewOf(job))
	}

	writeJSON(w, http.StatusOK, listResponse{Success: true, Count: len(views), Jobs: views})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already gone if encoding fails; nothing useful left to do.
	_ = json.NewEncoder(w).Encode(body)
}
