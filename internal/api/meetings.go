package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codelore/codelore/internal/store"
)

type meetingHandler struct {
	store     Store
	processor MeetingProcessor
	jobs      JobQueue
	logger    *slog.Logger
}

type createMeetingRequest struct {
	ProjectID  string `json:"projectId"`
	MeetingURL string `json:"meetingUrl"`
}

type meetingResponse struct {
	ID         uuid.UUID       `json:"id"`
	ProjectID  uuid.UUID       `json:"projectId"`
	Name       string          `json:"name"`
	MeetingURL string          `json:"meetingUrl"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	Issues     []issueResponse `json:"issues,omitempty"`
}

type issueResponse struct {
	Headline string `json:"headline"`
	Gist     string `json:"gist"`
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// create registers a meeting in PROCESSING state and queues transcription.
func (h *meetingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body", h.logger)
		return
	}
	if strings.TrimSpace(req.MeetingURL) == "" {
		WriteError(w, http.StatusBadRequest, "missing_url", "meetingUrl is required", h.logger)
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_project_id", "invalid project ID", h.logger)
		return
	}

	if _, err := h.store.GetProject(r.Context(), projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return
		}
		h.logger.Error("getting project", "project_id", projectID, "error", err)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get project", h.logger)
		return
	}

	m, err := h.store.CreateMeeting(r.Context(), projectID, req.MeetingURL)
	if err != nil {
		h.logger.Error("creating meeting", "project_id", projectID, "error", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create meeting", h.logger)
		return
	}

	meetingID := m.ID
	if err := h.jobs.Submit("process meeting", func(ctx context.Context) {
		if perr := h.processor.Process(ctx, meetingID); perr != nil {
			h.logger.Error("meeting processing failed", "meeting_id", meetingID, "error", perr)
		}
	}); err != nil {
		h.logger.Warn("could not queue meeting processing", "meeting_id", meetingID, "error", err)
	}

	WriteJSON(w, http.StatusCreated, meetingResponse{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		Name:       m.Name,
		MeetingURL: m.MeetingURL,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
	}, h.logger)
}

type processMeetingRequest struct {
	MeetingID  string `json:"meetingId"`
	ProjectID  string `json:"projectId"`
	MeetingURL string `json:"meetingUrl"`
}

// process transcribes a previously registered meeting inside the request,
// for callers that create the meeting record themselves. The processor
// enforces its own wall-clock ceiling, so the request cannot hang forever.
func (h *meetingHandler) process(w http.ResponseWriter, r *http.Request) {
	var req processMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body", h.logger)
		return
	}
	meetingID, err := uuid.Parse(req.MeetingID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_meeting_id", "invalid meeting ID", h.logger)
		return
	}

	if err := h.processor.Process(r.Context(), meetingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "meeting not found", h.logger)
			return
		}
		h.logger.Error("meeting processing failed", "meeting_id", meetingID, "error", err)
		WriteError(w, http.StatusInternalServerError, "process_failed", "failed to process meeting", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"success": true}, h.logger)
}

func (h *meetingHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid meeting ID", h.logger)
		return
	}

	m, err := h.store.GetMeeting(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "meeting not found", h.logger)
			return
		}
		h.logger.Error("getting meeting", "meeting_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get meeting", h.logger)
		return
	}

	resp := meetingResponse{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		Name:       m.Name,
		MeetingURL: m.MeetingURL,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
	}

	if m.Status == store.MeetingStatusCompleted {
		issues, err := h.store.ListMeetingIssues(r.Context(), id)
		if err != nil {
			h.logger.Error("listing meeting issues", "meeting_id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list issues", h.logger)
			return
		}
		for _, issue := range issues {
			resp.Issues = append(resp.Issues, issueResponse{
				Headline: issue.Headline,
				Gist:     issue.Gist,
				Summary:  issue.Summary,
				Start:    issue.Start,
				End:      issue.End,
			})
		}
	}

	WriteJSON(w, http.StatusOK, resp, h.logger)
}
